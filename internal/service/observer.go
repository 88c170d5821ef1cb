package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agora.app/rounds/common/logger"
	"agora.app/rounds/internal/engine"
	"agora.app/rounds/internal/events"
	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/store"
)

// ObserverService evaluates and applies observer reentry.
type ObserverService interface {
	ReentryStatus(ctx context.Context, discussionID, userID int64) (*ReentryStatus, error)
	Rejoin(ctx context.Context, discussionID, userID int64) (*model.Participant, error)
}

// ReentryStatus is the public shape of the reentry decision.
type ReentryStatus struct {
	Eligible bool       `json:"eligible"`
	Never    bool       `json:"never"`
	RetryAt  *time.Time `json:"retry_at,omitempty"`
}

type observerService struct {
	tx TxRunner
	lifecycle
}

func NewObserverService(tx TxRunner, lc lifecycle) ObserverService {
	return &observerService{tx: tx, lifecycle: lc}
}

func (s *observerService) ReentryStatus(ctx context.Context, discussionID, userID int64) (*ReentryStatus, error) {
	var out *ReentryStatus
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		decision, _, err := s.decide(ctx, stores, discussionID, userID)
		if err != nil {
			return err
		}
		out = &ReentryStatus{Eligible: decision.Eligible, Never: decision.Never, RetryAt: decision.RetryAt}
		return nil
	})
	return out, err
}

func (s *observerService) Rejoin(ctx context.Context, discussionID, userID int64) (*model.Participant, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &discussionID, UserID: &userID})

	var out *model.Participant
	err := s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		decision, p, err := s.decide(ctx, stores, discussionID, userID)
		if err != nil {
			return err
		}
		if decision.Never {
			return ErrNeverEligible
		}
		if !decision.Eligible {
			return ErrNotYetEligible
		}
		if p.Role.IsActive() {
			out = p
			return nil
		}

		p.Reactivate()
		if err := stores.Participants().Update(ctx, p); err != nil {
			return fmt.Errorf("updating participant: %w", err)
		}

		slog.InfoContext(ctx, "observer rejoined", "participant_id", p.ID)
		if err := s.emitter.Emit(ctx, events.Event{
			Type:         events.EventParticipantRejoined,
			DiscussionID: discussionID,
			UserID:       userID,
		}); err != nil {
			slog.WarnContext(ctx, "emitting participant rejoined", "error", err)
		}
		out = p
		return nil
	})
	return out, err
}

// decide assembles the rounds the decision table reads and evaluates it.
func (s *observerService) decide(ctx context.Context, stores StoreProvider, discussionID, userID int64) (engine.ReentryDecision, *model.Participant, error) {
	d, err := s.loadActive(ctx, stores, discussionID)
	if err != nil {
		return engine.ReentryDecision{}, nil, err
	}
	p, err := stores.Participants().GetByDiscussionAndUser(ctx, discussionID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.ReentryDecision{}, nil, ErrNotParticipant
		}
		return engine.ReentryDecision{}, nil, fmt.Errorf("getting participant: %w", err)
	}
	current, err := currentRound(ctx, stores, discussionID)
	if err != nil {
		return engine.ReentryDecision{}, nil, err
	}

	in := engine.ReentryInput{
		Participant:  p,
		CurrentRound: current,
		FloorMinutes: s.floorMinutes(d),
		Now:          s.now(),
	}
	if p.RemovedInRound != nil {
		if removal, err := stores.Rounds().GetByNumber(ctx, discussionID, *p.RemovedInRound); err == nil {
			in.RemovalRound = removal
		} else if !errors.Is(err, store.ErrNotFound) {
			return engine.ReentryDecision{}, nil, fmt.Errorf("getting removal round: %w", err)
		}
		if follow, err := stores.Rounds().GetByNumber(ctx, discussionID, *p.RemovedInRound+1); err == nil {
			in.FollowRound = follow
		} else if !errors.Is(err, store.ErrNotFound) {
			return engine.ReentryDecision{}, nil, fmt.Errorf("getting following round: %w", err)
		}
	}

	return engine.CanRejoin(in), p, nil
}
