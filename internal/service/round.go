package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agora.app/rounds/common/id"
	"agora.app/rounds/common/logger"
	"agora.app/rounds/internal/engine"
	"agora.app/rounds/internal/events"
	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/store"
)

// RoundService handles response collection and round expiration.
type RoundService interface {
	SubmitResponse(ctx context.Context, discussionID, userID int64, content string) (*model.Response, error)
	EditResponse(ctx context.Context, discussionID, userID, responseID int64, content string) (*model.Response, error)
	ListResponses(ctx context.Context, discussionID int64, roundNumber int) ([]model.Response, error)
	PhaseInfo(ctx context.Context, discussionID int64) (*PhaseInfo, error)

	// EvaluateExpiration advances the discussion past any elapsed window:
	// free-form timeout, deadline expiry, or an elapsed voting window.
	// Safe to call at any time; a no-op when nothing has elapsed.
	EvaluateExpiration(ctx context.Context, discussionID int64) (bool, error)
}

// PhaseInfo is the public projection of where a discussion stands.
type PhaseInfo struct {
	DiscussionID    int64                  `json:"discussion_id"`
	Status          model.DiscussionStatus `json:"status"`
	ArchiveReason   *model.ArchiveReason   `json:"archive_reason,omitempty"`
	RoundNumber     int                    `json:"round_number"`
	Phase           model.RoundPhase       `json:"phase"`
	ResponseCount   int                    `json:"response_count"`
	ResponsesNeeded int                    `json:"responses_needed,omitempty"`
	DeadlineMinutes *float64               `json:"deadline_minutes,omitempty"`
	DeadlineAt      *time.Time             `json:"deadline_at,omitempty"`
	VotingClosesAt  *time.Time             `json:"voting_closes_at,omitempty"`
}

type roundService struct {
	tx TxRunner
	lifecycle
}

func NewRoundService(tx TxRunner, lc lifecycle) RoundService {
	return &roundService{tx: tx, lifecycle: lc}
}

func (s *roundService) SubmitResponse(ctx context.Context, discussionID, userID int64, content string) (*model.Response, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &discussionID, UserID: &userID})

	var out *model.Response
	err := s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		now := s.now()

		// A submission can be the first touch after a window elapsed. A
		// late write still wins when it is the response that completes
		// the round; any other elapsed window settles first and the
		// write is rejected.
		completes, err := s.completesLateRound(ctx, stores, d, r, userID, now)
		if err != nil {
			return err
		}
		if !completes {
			if elapsed, err := s.settleIfElapsed(ctx, stores, d, r, now); err != nil {
				return err
			} else if elapsed {
				return ErrDeadlinePassed
			}
		}
		if !r.AcceptingResponses() {
			return ErrRoundClosed
		}

		p, err := activeParticipant(ctx, stores, discussionID, userID)
		if err != nil {
			return err
		}

		if _, err := stores.Responses().GetByRoundAndParticipant(ctx, r.ID, p.ID); err == nil {
			return ErrAlreadyResponded
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking existing response: %w", err)
		}

		content = strings.TrimSpace(content)
		if content == "" {
			return ErrContentEmpty
		}
		if len([]rune(content)) > d.MaxResponseLength {
			return ErrContentTooLong
		}

		resp := &model.Response{
			ID:            id.New(),
			RoundID:       r.ID,
			ParticipantID: p.ID,
			Content:       content,
			ContentLength: len([]rune(content)),
			CreatedAt:     now,
		}
		if r.LastResponseAt != nil {
			interval := now.Sub(*r.LastResponseAt).Minutes()
			resp.IntervalMinutes = &interval
		}
		if err := stores.Responses().Create(ctx, resp); err != nil {
			return fmt.Errorf("creating response: %w", err)
		}

		r.ResponseCount++
		r.LastResponseAt = &now

		if !p.HasEverPosted {
			p.HasEverPosted = true
			if err := stores.Participants().Update(ctx, p); err != nil {
				return fmt.Errorf("updating participant: %w", err)
			}
		}

		if err := s.advanceAfterResponse(ctx, stores, d, r); err != nil {
			return err
		}

		slog.InfoContext(ctx, "response accepted",
			"round_number", r.Number,
			"response_count", r.ResponseCount,
			"content_length", resp.ContentLength,
		)
		if err := s.emitter.Emit(ctx, events.Event{
			Type:         events.EventResponseAccepted,
			DiscussionID: d.ID,
			RoundID:      r.ID,
			RoundNumber:  r.Number,
			UserID:       userID,
		}); err != nil {
			slog.WarnContext(ctx, "emitting response accepted", "error", err)
		}
		if err := s.invites.ReportResponse(ctx, d.ID, userID, r.Number); err != nil {
			slog.WarnContext(ctx, "reporting response to invite ledger", "error", err)
		}

		out = resp
		return nil
	})
	return out, err
}

// completesLateRound reports whether a write arriving after the regulated
// deadline would itself complete the round: the submitter is active, has
// not posted this round, and every other active participant has. The first
// accepted write wins; expiration only settles when no such write exists.
func (s *roundService) completesLateRound(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, userID int64, now time.Time) (bool, error) {
	if r.Phase != model.PhaseDeadlineRegulated {
		return false, nil
	}
	deadlineAt := r.DeadlineAt()
	if deadlineAt == nil || now.Before(*deadlineAt) {
		return false, nil
	}

	p, err := stores.Participants().GetByDiscussionAndUser(ctx, d.ID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("getting participant: %w", err)
	}
	if !p.Role.IsActive() {
		return false, nil
	}
	if _, err := stores.Responses().GetByRoundAndParticipant(ctx, r.ID, p.ID); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("checking response: %w", err)
	}

	active, err := stores.Participants().CountActive(ctx, d.ID)
	if err != nil {
		return false, fmt.Errorf("counting active participants: %w", err)
	}
	responded, err := respondedActiveCount(ctx, stores, d.ID, r.ID)
	if err != nil {
		return false, err
	}
	return responded >= active-1, nil
}

// advanceAfterResponse applies the phase consequences of an accepted
// response: free-form graduation, deadline recomputation, and completion
// when every active participant has posted.
func (s *roundService) advanceAfterResponse(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round) error {
	invited, err := stores.Participants().CountNonPermanent(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("counting participants: %w", err)
	}

	if r.Phase == model.PhaseFreeForm {
		if r.ResponseCount >= engine.FreeFormThreshold(s.cfg.FreeFormThreshold, invited) {
			r.Phase = model.PhaseDeadlineRegulated
			if err := s.emitter.Emit(ctx, events.Event{
				Type:         events.EventRoundRegulated,
				DiscussionID: d.ID,
				RoundID:      r.ID,
				RoundNumber:  r.Number,
			}); err != nil {
				slog.WarnContext(ctx, "emitting round regulated", "error", err)
			}
		}
	}

	if r.Phase == model.PhaseDeadlineRegulated {
		intervals, err := s.scopedIntervals(ctx, stores, d.ID, r.Number)
		if err != nil {
			return fmt.Errorf("loading intervals: %w", err)
		}
		delta := engine.Recompute(r.DeadlineMinutes, intervals, d.MinResponseTime, d.PacingMultiplier)
		changed := delta.Previous == nil || *delta.Previous != delta.Current
		r.DeadlineMinutes = &delta.Current

		if changed {
			slog.InfoContext(ctx, "deadline recomputed",
				"round_number", r.Number,
				"deadline_minutes", delta.Current,
			)
			if err := s.emitter.Emit(ctx, events.Event{
				Type:         events.EventDeadlineChanged,
				DiscussionID: d.ID,
				RoundID:      r.ID,
				RoundNumber:  r.Number,
				Detail:       fmt.Sprintf("%.2f", delta.Current),
			}); err != nil {
				slog.WarnContext(ctx, "emitting deadline changed", "error", err)
			}
		}
	}

	if err := stores.Rounds().Update(ctx, r); err != nil {
		return fmt.Errorf("updating round: %w", err)
	}

	// When every active participant has posted, the round completes early.
	active, err := stores.Participants().CountActive(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("counting active participants: %w", err)
	}
	responded, err := respondedActiveCount(ctx, stores, d.ID, r.ID)
	if err != nil {
		return err
	}
	if active > 0 && responded >= active {
		return s.closeCollection(ctx, stores, d, r, model.CloseReasonComplete)
	}
	return nil
}

func (s *roundService) EditResponse(ctx context.Context, discussionID, userID, responseID int64, content string) (*model.Response, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &discussionID, UserID: &userID})

	var out *model.Response
	err := s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		resp, err := stores.Responses().GetByID(ctx, responseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrResponseNotFound
			}
			return fmt.Errorf("getting response: %w", err)
		}
		if resp.Locked {
			return ErrResponseLocked
		}

		r, err := stores.Rounds().GetByID(ctx, resp.RoundID)
		if err != nil {
			return fmt.Errorf("getting round: %w", err)
		}
		if r.DiscussionID != discussionID || !r.AcceptingResponses() {
			return ErrRoundClosed
		}

		p, err := stores.Participants().GetByID(ctx, resp.ParticipantID)
		if err != nil {
			return fmt.Errorf("getting participant: %w", err)
		}
		if p.UserID != userID {
			return ErrNotResponseAuthor
		}

		if resp.EditCount >= s.cfg.ResponseEditLimit {
			return ErrEditLimitReached
		}

		content = strings.TrimSpace(content)
		if content == "" {
			return ErrContentEmpty
		}
		if len([]rune(content)) > d.MaxResponseLength {
			return ErrContentTooLong
		}

		altered := alteredChars(resp.Content, content)
		budget := int(float64(d.MaxResponseLength) * s.cfg.ResponseEditPercent / 100)
		if resp.CharsAltered+altered > budget {
			return ErrEditBudgetExceeded
		}

		now := s.now()
		resp.Content = content
		resp.ContentLength = len([]rune(content))
		resp.EditCount++
		resp.CharsAltered += altered
		resp.EditedAt = &now
		if err := stores.Responses().Update(ctx, resp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrResponseLocked
			}
			return fmt.Errorf("updating response: %w", err)
		}

		slog.InfoContext(ctx, "response edited",
			"response_id", resp.ID,
			"edit_count", resp.EditCount,
			"chars_altered", resp.CharsAltered,
		)
		if err := s.emitter.Emit(ctx, events.Event{
			Type:         events.EventResponseEdited,
			DiscussionID: d.ID,
			RoundID:      r.ID,
			RoundNumber:  r.Number,
			UserID:       userID,
		}); err != nil {
			slog.WarnContext(ctx, "emitting response edited", "error", err)
		}

		out = resp
		return nil
	})
	return out, err
}

func (s *roundService) ListResponses(ctx context.Context, discussionID int64, roundNumber int) ([]model.Response, error) {
	var out []model.Response
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if _, err := stores.Discussions().GetByID(ctx, discussionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return fmt.Errorf("getting discussion: %w", err)
		}
		r, err := stores.Rounds().GetByNumber(ctx, discussionID, roundNumber)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoundNotFound
			}
			return fmt.Errorf("getting round: %w", err)
		}
		out, err = stores.Responses().ListByRound(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("listing responses: %w", err)
		}
		return nil
	})
	return out, err
}

func (s *roundService) PhaseInfo(ctx context.Context, discussionID int64) (*PhaseInfo, error) {
	var out *PhaseInfo
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		d, err := stores.Discussions().GetByID(ctx, discussionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return fmt.Errorf("getting discussion: %w", err)
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		out = &PhaseInfo{
			DiscussionID:    d.ID,
			Status:          d.Status,
			ArchiveReason:   d.ArchiveReason,
			RoundNumber:     r.Number,
			Phase:           r.Phase,
			ResponseCount:   r.ResponseCount,
			DeadlineMinutes: r.DeadlineMinutes,
			DeadlineAt:      r.DeadlineAt(),
			VotingClosesAt:  r.VotingClosesAt(),
		}
		if r.Phase == model.PhaseFreeForm {
			invited, err := stores.Participants().CountNonPermanent(ctx, discussionID)
			if err != nil {
				return fmt.Errorf("counting participants: %w", err)
			}
			if needed := engine.FreeFormThreshold(s.cfg.FreeFormThreshold, invited) - r.ResponseCount; needed > 0 {
				out.ResponsesNeeded = needed
			}
		}
		return nil
	})
	return out, err
}

func (s *roundService) EvaluateExpiration(ctx context.Context, discussionID int64) (bool, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &discussionID})

	var changed bool
	err := s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		d, err := stores.Discussions().GetByID(ctx, discussionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return fmt.Errorf("getting discussion: %w", err)
		}
		if d.IsArchived() {
			return nil
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		changed, err = s.settleIfElapsed(ctx, stores, d, r, s.now())
		return err
	})
	return changed, err
}

// settleIfElapsed applies whatever transition the clock alone has earned.
// Returns true when it changed state.
func (s *roundService) settleIfElapsed(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, now time.Time) (bool, error) {
	switch r.Phase {
	case model.PhaseFreeForm:
		if s.cfg.FreeFormTimeoutDays <= 0 {
			return false, nil
		}
		cutoff := r.StartedAt.Add(time.Duration(s.cfg.FreeFormTimeoutDays) * 24 * time.Hour)
		if now.Before(cutoff) {
			return false, nil
		}
		reason := model.CloseReasonInsufficientResponses
		r.CloseReason = &reason
		if err := stores.Responses().LockByRound(ctx, r.ID); err != nil {
			return false, fmt.Errorf("locking responses: %w", err)
		}
		return true, s.archive(ctx, stores, d, r, model.ArchiveReasonPhaseOneTimeout)

	case model.PhaseDeadlineRegulated:
		deadlineAt := r.DeadlineAt()
		if deadlineAt == nil || now.Before(*deadlineAt) {
			return false, nil
		}
		if err := s.expireDeadline(ctx, stores, d, r, now); err != nil {
			return false, err
		}
		return true, nil

	case model.PhaseVoting:
		closesAt := r.VotingClosesAt()
		if closesAt == nil || now.Before(*closesAt) {
			return false, nil
		}
		return true, s.resolveVotingWindow(ctx, stores, d, r)
	}
	return false, nil
}

// expireDeadline closes a regulated round whose window elapsed without a
// response. Active participants who never posted this round become
// temporary observers before the closure tail runs.
func (s *roundService) expireDeadline(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, now time.Time) error {
	participants, err := stores.Participants().ListByDiscussion(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("listing participants: %w", err)
	}
	for i := range participants {
		p := &participants[i]
		if !p.Role.IsActive() {
			continue
		}
		if _, err := stores.Responses().GetByRoundAndParticipant(ctx, r.ID, p.ID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking response: %w", err)
		}

		p.MoveToObserver(model.CauseDeadlineExpired, r.Number, false, now)
		if err := stores.Participants().Update(ctx, p); err != nil {
			return fmt.Errorf("updating participant: %w", err)
		}
		if err := s.emitter.Emit(ctx, events.Event{
			Type:         events.EventParticipantRemoved,
			DiscussionID: d.ID,
			RoundID:      r.ID,
			RoundNumber:  r.Number,
			UserID:       p.UserID,
			Detail:       string(model.CauseDeadlineExpired),
		}); err != nil {
			slog.WarnContext(ctx, "emitting participant removed", "error", err)
		}
	}

	slog.InfoContext(ctx, "round deadline expired",
		"round_number", r.Number,
		"response_count", r.ResponseCount,
	)
	return s.closeCollection(ctx, stores, d, r, model.CloseReasonDeadlineExpired)
}

// currentRound returns the highest-numbered round of a discussion.
func currentRound(ctx context.Context, stores StoreProvider, discussionID int64) (*model.Round, error) {
	r, err := stores.Rounds().GetCurrent(ctx, discussionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("getting current round: %w", err)
	}
	return r, nil
}

// activeParticipant resolves a user to their active participant record.
func activeParticipant(ctx context.Context, stores StoreProvider, discussionID, userID int64) (*model.Participant, error) {
	p, err := stores.Participants().GetByDiscussionAndUser(ctx, discussionID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, fmt.Errorf("getting participant: %w", err)
	}
	if p.Role == model.RolePermanentObserver {
		return nil, ErrPermanentObserver
	}
	if !p.Role.IsActive() {
		return nil, ErrNotActive
	}
	return p, nil
}

// respondedActiveCount counts active participants with a response in the round.
func respondedActiveCount(ctx context.Context, stores StoreProvider, discussionID, roundID int64) (int, error) {
	responses, err := stores.Responses().ListByRound(ctx, roundID)
	if err != nil {
		return 0, fmt.Errorf("listing responses: %w", err)
	}
	n := 0
	for _, resp := range responses {
		p, err := stores.Participants().GetByID(ctx, resp.ParticipantID)
		if err != nil {
			return 0, fmt.Errorf("getting participant: %w", err)
		}
		if p.Role.IsActive() {
			n++
		}
	}
	return n, nil
}

// alteredChars measures an edit as the length of the changed span: trim the
// common prefix and suffix, take the larger remainder.
func alteredChars(old, new string) int {
	o, n := []rune(old), []rune(new)

	prefix := 0
	for prefix < len(o) && prefix < len(n) && o[prefix] == n[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(o)-prefix && suffix < len(n)-prefix && o[len(o)-1-suffix] == n[len(n)-1-suffix] {
		suffix++
	}

	ro := len(o) - prefix - suffix
	rn := len(n) - prefix - suffix
	if ro > rn {
		return ro
	}
	return rn
}
