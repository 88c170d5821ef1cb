package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agora.app/rounds/common/id"
	"agora.app/rounds/common/logger"
	"agora.app/rounds/internal/engine"
	"agora.app/rounds/internal/events"
	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/store"
)

// ModerationService handles the two removal mechanisms: mutual removal
// during collection, and the hidden quorum vote during the voting window.
type ModerationService interface {
	InitiateMutualRemoval(ctx context.Context, discussionID, initiatorUserID, targetUserID int64) error
	CastRemovalBallot(ctx context.Context, discussionID, voterUserID, targetUserID int64) error
	RemovalProgress(ctx context.Context, discussionID int64) (*RemovalProgress, error)
	EscalationStatus(ctx context.Context, discussionID, userID int64) (*EscalationStatus, error)
	ListEvents(ctx context.Context, discussionID int64) ([]model.ModerationEvent, error)
}

// RemovalProgress aggregates ballot counts per target without exposing
// voter identities.
type RemovalProgress struct {
	RoundNumber int             `json:"round_number"`
	Eligible    int             `json:"eligible"`
	VotesNeeded int             `json:"votes_needed"`
	Targets     []TargetBallots `json:"targets"`
}

type TargetBallots struct {
	TargetUserID int64 `json:"target_user_id"`
	Votes        int   `json:"votes"`
}

// EscalationStatus reports how close a participant stands to permanent
// observer status on both lifetime counters.
type EscalationStatus struct {
	RemovalsInitiated  int  `json:"removals_initiated"`
	MutualRemovalLimit int  `json:"mutual_removal_limit"`
	TimesRemoved       int  `json:"times_removed"`
	TimesRemovedLimit  int  `json:"times_removed_limit"`
	Permanent          bool `json:"permanent"`
}

type moderationService struct {
	tx TxRunner
	lifecycle
}

func NewModerationService(tx TxRunner, lc lifecycle) ModerationService {
	return &moderationService{tx: tx, lifecycle: lc}
}

func (s *moderationService) InitiateMutualRemoval(ctx context.Context, discussionID, initiatorUserID, targetUserID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &discussionID, UserID: &initiatorUserID})

	if initiatorUserID == targetUserID {
		return ErrSelfRemoval
	}

	return s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		if !r.AcceptingResponses() {
			return ErrRoundClosed
		}

		initiator, err := activeParticipant(ctx, stores, discussionID, initiatorUserID)
		if err != nil {
			return err
		}
		target, err := stores.Participants().GetByDiscussionAndUser(ctx, discussionID, targetUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotParticipant
			}
			return fmt.Errorf("getting target: %w", err)
		}
		if !target.Role.IsActive() {
			return ErrTargetNotRemovable
		}

		if initiator.RemovalsInitiated >= s.cfg.MutualRemovalLimit {
			return ErrRemovalLimitReached
		}
		exists, err := stores.ModerationEvents().MutualExists(ctx, discussionID, initiator.ID, target.ID)
		if err != nil {
			return fmt.Errorf("checking prior removal: %w", err)
		}
		if exists {
			return ErrAlreadyRemovedTarget
		}

		now := s.now()
		initiatorPosted, err := hasResponded(ctx, stores, r.ID, initiator.ID)
		if err != nil {
			return err
		}
		targetPosted, err := hasResponded(ctx, stores, r.ID, target.ID)
		if err != nil {
			return err
		}

		// Removal is mutual: both parties leave active status.
		initiator.RemovalsInitiated++
		initiator.MoveToObserver(model.CauseMutualRemoval, r.Number, initiatorPosted, now)
		if initiator.RemovalsInitiated >= s.cfg.MutualRemovalLimit {
			initiator.MakePermanent(model.CauseMutualRemoval, now)
		}

		target.TimesRemoved++
		target.MoveToObserver(model.CauseMutualRemoval, r.Number, targetPosted, now)
		if target.TimesRemoved >= s.cfg.TimesRemovedLimit {
			target.MakePermanent(model.CauseMutualRemoval, now)
		}

		if err := stores.Participants().Update(ctx, initiator); err != nil {
			return fmt.Errorf("updating initiator: %w", err)
		}
		if err := stores.Participants().Update(ctx, target); err != nil {
			return fmt.Errorf("updating target: %w", err)
		}
		for _, p := range []*model.Participant{initiator, target} {
			if p.Role != model.RolePermanentObserver {
				continue
			}
			if err := s.invites.ResetAcquired(ctx, discussionID, p.UserID); err != nil {
				slog.WarnContext(ctx, "resetting invite credits", "error", err, "user_id", p.UserID)
			}
			if err := s.emitter.Emit(ctx, events.Event{
				Type:         events.EventParticipantBarred,
				DiscussionID: discussionID,
				RoundID:      r.ID,
				RoundNumber:  r.Number,
				UserID:       p.UserID,
				Detail:       string(model.CauseMutualRemoval),
			}); err != nil {
				slog.WarnContext(ctx, "emitting participant barred", "error", err)
			}
		}

		if err := stores.ModerationEvents().Create(ctx, &model.ModerationEvent{
			ID:           id.New(),
			DiscussionID: discussionID,
			RoundID:      r.ID,
			ActionType:   model.ActionMutualRemoval,
			InitiatorID:  initiator.ID,
			TargetID:     target.ID,
			Permanent:    target.Role == model.RolePermanentObserver,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("recording moderation event: %w", err)
		}

		slog.InfoContext(ctx, "mutual removal",
			"round_number", r.Number,
			"initiator_id", initiator.ID,
			"target_id", target.ID,
			"initiator_permanent", initiator.Role == model.RolePermanentObserver,
			"target_permanent", target.Role == model.RolePermanentObserver,
		)
		for _, p := range []*model.Participant{initiator, target} {
			if err := s.emitter.Emit(ctx, events.Event{
				Type:         events.EventParticipantRemoved,
				DiscussionID: discussionID,
				RoundID:      r.ID,
				RoundNumber:  r.Number,
				UserID:       p.UserID,
				Detail:       string(model.ActionMutualRemoval),
			}); err != nil {
				slog.WarnContext(ctx, "emitting participant removed", "error", err)
			}
		}

		// A removal that empties the active set ends collection.
		active, err := stores.Participants().CountActive(ctx, discussionID)
		if err != nil {
			return fmt.Errorf("counting active participants: %w", err)
		}
		if active == 0 {
			return s.closeCollection(ctx, stores, d, r, model.CloseReasonNoActiveParticipants)
		}
		return nil
	})
}

func (s *moderationService) CastRemovalBallot(ctx context.Context, discussionID, voterUserID, targetUserID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &discussionID, UserID: &voterUserID})

	if voterUserID == targetUserID {
		return ErrSelfRemoval
	}

	return s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		if r.Phase != model.PhaseVoting {
			return ErrWrongPhase
		}
		now := s.now()
		if closesAt := r.VotingClosesAt(); closesAt != nil && !now.Before(*closesAt) {
			return ErrStaleRound
		}

		voters, err := s.eligibleVoters(ctx, stores, d, r)
		if err != nil {
			return err
		}
		var voter *model.Participant
		for _, p := range voters {
			if p.UserID == voterUserID {
				voter = p
				break
			}
		}
		if voter == nil {
			return ErrNotEligibleVoter
		}

		target, err := stores.Participants().GetByDiscussionAndUser(ctx, discussionID, targetUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotParticipant
			}
			return fmt.Errorf("getting target: %w", err)
		}
		if target.Role == model.RolePermanentObserver {
			return ErrTargetNotRemovable
		}
		// Only participants of the closed round can be targeted by its
		// window.
		posted, err := hasResponded(ctx, stores, r.ID, target.ID)
		if err != nil {
			return err
		}
		if !posted {
			return ErrTargetNotRemovable
		}

		// Ballots stay hidden until the window resolves.
		return stores.RemovalBallots().Upsert(ctx, &model.RemovalBallot{
			ID:       id.New(),
			RoundID:  r.ID,
			VoterID:  voter.ID,
			TargetID: target.ID,
			CastAt:   now,
		})
	})
}

func (s *moderationService) RemovalProgress(ctx context.Context, discussionID int64) (*RemovalProgress, error) {
	var out *RemovalProgress
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		if r.Phase != model.PhaseVoting {
			return ErrWrongPhase
		}

		voters, err := s.eligibleVoters(ctx, stores, d, r)
		if err != nil {
			return err
		}
		ballots, err := stores.RemovalBallots().ListByRound(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("listing removal ballots: %w", err)
		}

		counts := make(map[int64]int)
		for _, b := range ballots {
			if _, ok := voters[b.VoterID]; !ok {
				continue
			}
			counts[b.TargetID]++
		}

		out = &RemovalProgress{
			RoundNumber: r.Number,
			Eligible:    len(voters),
			VotesNeeded: engine.RemovalVotesNeeded(len(voters), s.cfg.RemovalThreshold),
		}
		for targetID, n := range counts {
			target, err := stores.Participants().GetByID(ctx, targetID)
			if err != nil {
				return fmt.Errorf("getting target: %w", err)
			}
			out.Targets = append(out.Targets, TargetBallots{TargetUserID: target.UserID, Votes: n})
		}
		return nil
	})
	return out, err
}

func (s *moderationService) EscalationStatus(ctx context.Context, discussionID, userID int64) (*EscalationStatus, error) {
	var out *EscalationStatus
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		p, err := stores.Participants().GetByDiscussionAndUser(ctx, discussionID, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotParticipant
			}
			return fmt.Errorf("getting participant: %w", err)
		}
		out = &EscalationStatus{
			RemovalsInitiated:  p.RemovalsInitiated,
			MutualRemovalLimit: s.cfg.MutualRemovalLimit,
			TimesRemoved:       p.TimesRemoved,
			TimesRemovedLimit:  s.cfg.TimesRemovedLimit,
			Permanent:          p.Role == model.RolePermanentObserver,
		}
		return nil
	})
	return out, err
}

func (s *moderationService) ListEvents(ctx context.Context, discussionID int64) ([]model.ModerationEvent, error) {
	var out []model.ModerationEvent
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if _, err := stores.Discussions().GetByID(ctx, discussionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return fmt.Errorf("getting discussion: %w", err)
		}
		var err error
		out, err = stores.ModerationEvents().ListByDiscussion(ctx, discussionID)
		if err != nil {
			return fmt.Errorf("listing moderation events: %w", err)
		}
		return nil
	})
	return out, err
}

func hasResponded(ctx context.Context, stores StoreProvider, roundID, participantID int64) (bool, error) {
	_, err := stores.Responses().GetByRoundAndParticipant(ctx, roundID, participantID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("checking response: %w", err)
}
