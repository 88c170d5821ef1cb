package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agora.app/rounds/common/id"
	"agora.app/rounds/core/config"
	"agora.app/rounds/internal/engine"
	"agora.app/rounds/internal/events"
	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/store"
)

// lifecycle carries the shared machinery every service needs: the platform
// config snapshot, the event emitter, the invite ledger and the clock. The
// clock is a field so tests can pin it.
type lifecycle struct {
	cfg     config.PlatformConfig
	emitter events.Emitter
	invites InviteLedger
	now     func() time.Time
}

// InviteLedger is the accrual collaborator: it hears about every accepted
// response so response-based invite accrual can happen, and resets a user's
// acquired counter when they become a permanent observer. Balances live
// outside the engine. The default implementation publishes to the event
// stream for an account service to consume.
type InviteLedger interface {
	ReportResponse(ctx context.Context, discussionID, userID int64, roundNumber int) error
	ResetAcquired(ctx context.Context, discussionID, userID int64) error
}

type eventInviteLedger struct {
	emitter events.Emitter
}

func NewEventInviteLedger(emitter events.Emitter) InviteLedger {
	return &eventInviteLedger{emitter: emitter}
}

func (l *eventInviteLedger) ReportResponse(ctx context.Context, discussionID, userID int64, roundNumber int) error {
	return l.emitter.Emit(ctx, events.Event{
		Type:         events.EventInviteEarned,
		DiscussionID: discussionID,
		RoundNumber:  roundNumber,
		UserID:       userID,
	})
}

func (l *eventInviteLedger) ResetAcquired(ctx context.Context, discussionID, userID int64) error {
	return l.emitter.Emit(ctx, events.Event{
		Type:         events.EventInviteReset,
		DiscussionID: discussionID,
		UserID:       userID,
	})
}

// loadActive fetches a discussion and rejects archived ones.
func (lc *lifecycle) loadActive(ctx context.Context, stores StoreProvider, discussionID int64) (*model.Discussion, error) {
	d, err := stores.Discussions().GetByID(ctx, discussionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, fmt.Errorf("getting discussion: %w", err)
	}
	if d.IsArchived() {
		return nil, ErrDiscussionArchived
	}
	return d, nil
}

// scopedIntervals returns the response intervals the deadline calculation
// reads, per the configured scope.
func (lc *lifecycle) scopedIntervals(ctx context.Context, stores StoreProvider, discussionID int64, currentRound int) ([]float64, error) {
	minRound := 1
	switch lc.cfg.DeadlineScope {
	case config.DeadlineScopeCurrentRound:
		minRound = currentRound
	case config.DeadlineScopeLastXRounds:
		minRound = currentRound - lc.cfg.DeadlineScopeRounds + 1
		if minRound < 1 {
			minRound = 1
		}
	case config.DeadlineScopeAllRounds:
		minRound = 1
	}
	return stores.Responses().Intervals(ctx, discussionID, minRound)
}

// floorMinutes is the smallest deadline any configuration can produce.
func (lc *lifecycle) floorMinutes(d *model.Discussion) float64 {
	return d.MinResponseTime * d.PacingMultiplier
}

// endCollection moves a round out of response collection, locks its
// responses and records why. The round enters the voting phase unless the
// discussion archives first; callers run checkTermination/openVoting next.
func (lc *lifecycle) endCollection(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, reason model.CloseReason) error {
	r.CloseReason = &reason

	if err := stores.Responses().LockByRound(ctx, r.ID); err != nil {
		return fmt.Errorf("locking responses: %w", err)
	}

	if err := lc.emitter.Emit(ctx, events.Event{
		Type:         events.EventRoundClosed,
		DiscussionID: d.ID,
		RoundID:      r.ID,
		RoundNumber:  r.Number,
		Detail:       string(reason),
	}); err != nil {
		slog.WarnContext(ctx, "emitting round closed", "error", err)
	}
	return nil
}

// checkTermination archives the discussion when a termination condition
// holds after collection ends. Returns true when the discussion archived,
// in which case the round is fully closed and no voting window opens.
func (lc *lifecycle) checkTermination(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round) (bool, error) {
	total, err := stores.Responses().CountByDiscussion(ctx, d.ID)
	if err != nil {
		return false, fmt.Errorf("counting responses: %w", err)
	}
	nonPermanent, err := stores.Participants().CountNonPermanent(ctx, d.ID)
	if err != nil {
		return false, fmt.Errorf("counting participants: %w", err)
	}

	reason, terminate := engine.CheckTermination(engine.TerminationInput{
		Discussion:     d,
		RoundNumber:    r.Number,
		RoundResponses: r.ResponseCount,
		TotalResponses: total,
		NonPermanent:   nonPermanent,
		Now:            lc.now(),
	}, lc.cfg)
	if !terminate {
		return false, nil
	}

	return true, lc.archive(ctx, stores, d, r, reason)
}

// archive terminally closes the discussion: the round is closed, every
// response in the discussion locks, and the status flips exactly once.
func (lc *lifecycle) archive(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, reason model.ArchiveReason) error {
	now := lc.now()

	if r != nil && r.Phase != model.PhaseClosed {
		r.Phase = model.PhaseClosed
		r.ClosedAt = &now
		if err := stores.Rounds().Update(ctx, r); err != nil {
			return fmt.Errorf("closing round: %w", err)
		}
	}

	if err := stores.Responses().LockByDiscussion(ctx, d.ID); err != nil {
		return fmt.Errorf("locking responses: %w", err)
	}

	if err := stores.Discussions().Archive(ctx, d.ID, reason, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Already archived; archival is idempotent.
			return nil
		}
		return fmt.Errorf("archiving discussion: %w", err)
	}
	d.Status = model.DiscussionStatusArchived
	d.ArchiveReason = &reason
	d.ArchivedAt = &now

	slog.InfoContext(ctx, "discussion archived", "discussion_id", d.ID, "reason", reason)

	if err := lc.emitter.Emit(ctx, events.Event{
		Type:         events.EventDiscussionArchived,
		DiscussionID: d.ID,
		Detail:       string(reason),
	}); err != nil {
		slog.WarnContext(ctx, "emitting discussion archived", "error", err)
	}
	return nil
}

// openVoting transitions a round whose collection has ended into its voting
// window. The window length is the deadline recorded at closure; a round
// that never computed one gets the scoped calculation, which bottoms out at
// the configured floor.
func (lc *lifecycle) openVoting(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round) error {
	now := lc.now()

	if r.DeadlineMinutes == nil {
		intervals, err := lc.scopedIntervals(ctx, stores, d.ID, r.Number)
		if err != nil {
			return fmt.Errorf("loading intervals: %w", err)
		}
		v := engine.Deadline(intervals, d.MinResponseTime, d.PacingMultiplier)
		r.DeadlineMinutes = &v
	}

	r.Phase = model.PhaseVoting
	r.VotingOpenedAt = &now
	if err := stores.Rounds().Update(ctx, r); err != nil {
		return fmt.Errorf("updating round: %w", err)
	}

	if err := lc.emitter.Emit(ctx, events.Event{
		Type:         events.EventVotingOpened,
		DiscussionID: d.ID,
		RoundID:      r.ID,
		RoundNumber:  r.Number,
	}); err != nil {
		slog.WarnContext(ctx, "emitting voting opened", "error", err)
	}
	return nil
}

// eligibleVoters returns the participants allowed to vote in a round's
// window: everyone who posted in the round, plus the initiator unless
// permanently observed. The set is fixed at closure: responses are locked,
// and a role can only turn permanent through this window's own resolution.
func (lc *lifecycle) eligibleVoters(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round) (map[int64]*model.Participant, error) {
	voters := make(map[int64]*model.Participant)

	responses, err := stores.Responses().ListByRound(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("listing responses: %w", err)
	}
	for _, resp := range responses {
		p, err := stores.Participants().GetByID(ctx, resp.ParticipantID)
		if err != nil {
			return nil, fmt.Errorf("getting participant: %w", err)
		}
		if p.Role != model.RolePermanentObserver {
			voters[p.ID] = p
		}
	}

	initiator, err := stores.Participants().GetByDiscussionAndUser(ctx, d.ID, d.InitiatorID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("getting initiator: %w", err)
		}
	} else if initiator.Role != model.RolePermanentObserver {
		voters[initiator.ID] = initiator
	}

	return voters, nil
}

// resolveVotingWindow settles an elapsed voting window: parameter votes
// resolve by strict majority of eligible voters, removal ballots resolve
// against the super-majority threshold, termination re-checks, and the next
// round starts. Runs exactly once per round; re-entry is a no-op because the
// phase has already advanced.
func (lc *lifecycle) resolveVotingWindow(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round) error {
	now := lc.now()

	voters, err := lc.eligibleVoters(ctx, stores, d, r)
	if err != nil {
		return err
	}

	if err := lc.applyParameterVotes(ctx, stores, d, r, voters); err != nil {
		return err
	}
	if err := lc.applyRemovalBallots(ctx, stores, d, r, voters); err != nil {
		return err
	}

	r.Phase = model.PhaseClosed
	r.ClosedAt = &now
	if err := stores.Rounds().Update(ctx, r); err != nil {
		return fmt.Errorf("closing round: %w", err)
	}

	if err := lc.emitter.Emit(ctx, events.Event{
		Type:         events.EventVotingResolved,
		DiscussionID: d.ID,
		RoundID:      r.ID,
		RoundNumber:  r.Number,
	}); err != nil {
		slog.WarnContext(ctx, "emitting voting resolved", "error", err)
	}

	// Removals during the window can change the participant picture, so
	// termination re-checks before the next round opens.
	nonPermanent, err := stores.Participants().CountNonPermanent(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("counting participants: %w", err)
	}
	if nonPermanent == 0 {
		return lc.archive(ctx, stores, d, r, model.ArchiveReasonAllPermanentObservers)
	}

	return lc.startNextRound(ctx, stores, d, r)
}

// applyParameterVotes tallies the two parameter votes and applies whichever
// adjustments carry. Abstentions fold into no-change; bounds clamp.
func (lc *lifecycle) applyParameterVotes(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, voters map[int64]*model.Participant) error {
	votes, err := stores.ParameterVotes().ListByRound(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("listing parameter votes: %w", err)
	}

	length := engine.Tally{Eligible: len(voters)}
	pacing := engine.Tally{Eligible: len(voters)}
	for _, v := range votes {
		if _, ok := voters[v.ParticipantID]; !ok {
			continue
		}
		tallyChoice(&length, v.LengthChoice)
		tallyChoice(&pacing, v.PacingChoice)
	}

	lengthAdj := engine.Adjust(float64(d.MaxResponseLength), length.Outcome(),
		lc.cfg.VoteAdjustPercent, float64(lc.cfg.MaxResponseLengthMin), float64(lc.cfg.MaxResponseLengthMax))
	pacingAdj := engine.Adjust(d.PacingMultiplier, pacing.Outcome(),
		lc.cfg.VoteAdjustPercent, lc.cfg.PacingMultiplierMin, lc.cfg.PacingMultiplierMax)

	if lengthAdj.Outcome == model.VoteNoChange && pacingAdj.Outcome == model.VoteNoChange {
		return nil
	}

	d.MaxResponseLength = int(lengthAdj.Value)
	d.PacingMultiplier = pacingAdj.Value
	if err := stores.Discussions().UpdateParameters(ctx, d.ID, d.MaxResponseLength, d.PacingMultiplier); err != nil {
		return fmt.Errorf("updating parameters: %w", err)
	}

	slog.InfoContext(ctx, "parameters adjusted",
		"discussion_id", d.ID,
		"max_response_length", d.MaxResponseLength,
		"pacing_multiplier", d.PacingMultiplier,
		"length_outcome", lengthAdj.Outcome,
		"pacing_outcome", pacingAdj.Outcome,
	)
	return nil
}

func tallyChoice(t *engine.Tally, c model.VoteChoice) {
	switch c {
	case model.VoteIncrease:
		t.Increase++
	case model.VoteDecrease:
		t.Decrease++
	case model.VoteNoChange:
		t.NoChange++
	}
}

// applyRemovalBallots resolves the hidden removal ballots. A target whose
// ballot count meets the super-majority threshold of eligible voters becomes
// a permanent observer; quorum removal never reverses.
func (lc *lifecycle) applyRemovalBallots(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, voters map[int64]*model.Participant) error {
	ballots, err := stores.RemovalBallots().ListByRound(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("listing removal ballots: %w", err)
	}
	if len(ballots) == 0 {
		return nil
	}

	counts := make(map[int64]int)
	for _, b := range ballots {
		if _, ok := voters[b.VoterID]; !ok {
			continue
		}
		counts[b.TargetID]++
	}

	now := lc.now()
	for targetID, n := range counts {
		if !engine.RemovalCarries(n, len(voters), lc.cfg.RemovalThreshold) {
			continue
		}
		target, err := stores.Participants().GetByID(ctx, targetID)
		if err != nil {
			return fmt.Errorf("getting removal target: %w", err)
		}
		if target.Role == model.RolePermanentObserver {
			continue
		}
		if posted, err := hasResponded(ctx, stores, r.ID, targetID); err != nil {
			return err
		} else if !posted {
			continue
		}

		target.TimesRemoved++
		target.MoveToObserver(model.CauseQuorumRemoval, r.Number, true, now)
		target.MakePermanent(model.CauseQuorumRemoval, now)
		if err := stores.Participants().Update(ctx, target); err != nil {
			return fmt.Errorf("updating participant: %w", err)
		}
		if err := lc.invites.ResetAcquired(ctx, d.ID, target.UserID); err != nil {
			slog.WarnContext(ctx, "resetting invite credits", "error", err, "user_id", target.UserID)
		}

		if err := stores.ModerationEvents().Create(ctx, &model.ModerationEvent{
			ID:           id.New(),
			DiscussionID: d.ID,
			RoundID:      r.ID,
			ActionType:   model.ActionQuorumRemoval,
			TargetID:     target.ID,
			Permanent:    true,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("recording moderation event: %w", err)
		}

		slog.InfoContext(ctx, "participant removed by quorum vote",
			"discussion_id", d.ID,
			"round_number", r.Number,
			"participant_id", target.ID,
			"votes", n,
			"eligible", len(voters),
		)

		if err := lc.emitter.Emit(ctx, events.Event{
			Type:         events.EventParticipantRemoved,
			DiscussionID: d.ID,
			RoundID:      r.ID,
			RoundNumber:  r.Number,
			UserID:       target.UserID,
			Detail:       string(model.ActionQuorumRemoval),
		}); err != nil {
			slog.WarnContext(ctx, "emitting participant removed", "error", err)
		}
		if err := lc.emitter.Emit(ctx, events.Event{
			Type:         events.EventParticipantBarred,
			DiscussionID: d.ID,
			RoundID:      r.ID,
			RoundNumber:  r.Number,
			UserID:       target.UserID,
			Detail:       string(model.CauseQuorumRemoval),
		}); err != nil {
			slog.WarnContext(ctx, "emitting participant barred", "error", err)
		}
	}
	return nil
}

// startNextRound opens the next numbered round. Rounds after the first
// start deadline-regulated, inheriting the closing round's recorded
// deadline until the first response triggers a recomputation.
func (lc *lifecycle) startNextRound(ctx context.Context, stores StoreProvider, d *model.Discussion, prev *model.Round) error {
	now := lc.now()

	var deadline *float64
	if prev.DeadlineMinutes != nil {
		v := *prev.DeadlineMinutes
		deadline = &v
	} else {
		v := lc.floorMinutes(d)
		deadline = &v
	}

	next := &model.Round{
		ID:              id.New(),
		DiscussionID:    d.ID,
		Number:          prev.Number + 1,
		Phase:           model.PhaseDeadlineRegulated,
		DeadlineMinutes: deadline,
		StartedAt:       now,
	}
	if err := stores.Rounds().Create(ctx, next); err != nil {
		return fmt.Errorf("creating round: %w", err)
	}

	slog.InfoContext(ctx, "round started",
		"discussion_id", d.ID,
		"round_number", next.Number,
		"deadline_minutes", *next.DeadlineMinutes,
	)

	if err := lc.emitter.Emit(ctx, events.Event{
		Type:         events.EventRoundStarted,
		DiscussionID: d.ID,
		RoundID:      next.ID,
		RoundNumber:  next.Number,
	}); err != nil {
		slog.WarnContext(ctx, "emitting round started", "error", err)
	}
	return nil
}

// closeCollection ends collection, runs the termination check, and opens
// voting when the discussion survives. The common tail of every closure.
func (lc *lifecycle) closeCollection(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, reason model.CloseReason) error {
	if err := lc.endCollection(ctx, stores, d, r, reason); err != nil {
		return err
	}
	archived, err := lc.checkTermination(ctx, stores, d, r)
	if err != nil {
		return err
	}
	if archived {
		return nil
	}
	return lc.openVoting(ctx, stores, d, r)
}
