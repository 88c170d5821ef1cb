package service

import (
	"time"

	"agora.app/rounds/core/config"
	"agora.app/rounds/internal/events"
)

type Services struct {
	tx TxRunner
	lc lifecycle
}

func NewServices(tx TxRunner, cfg config.PlatformConfig, emitter events.Emitter) *Services {
	return NewServicesWithClock(tx, cfg, emitter, time.Now)
}

// NewServicesWithClock pins the clock. Tests use it to drive deadlines.
func NewServicesWithClock(tx TxRunner, cfg config.PlatformConfig, emitter events.Emitter, now func() time.Time) *Services {
	return &Services{
		tx: tx,
		lc: lifecycle{
			cfg:     cfg,
			emitter: emitter,
			invites: NewEventInviteLedger(emitter),
			now:     now,
		},
	}
}

func (s *Services) Discussions() DiscussionService {
	return NewDiscussionService(s.tx, s.lc)
}

func (s *Services) Rounds() RoundService {
	return NewRoundService(s.tx, s.lc)
}

func (s *Services) Voting() VotingService {
	return NewVotingService(s.tx, s.lc)
}

func (s *Services) Moderation() ModerationService {
	return NewModerationService(s.tx, s.lc)
}

func (s *Services) Observers() ObserverService {
	return NewObserverService(s.tx, s.lc)
}
