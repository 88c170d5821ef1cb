package engine

import (
	"time"

	"agora.app/rounds/core/config"
	"agora.app/rounds/internal/model"
)

// TerminationInput is the snapshot the evaluator reads after a round closes.
type TerminationInput struct {
	Discussion     *model.Discussion
	RoundNumber    int
	RoundResponses int // responses in the just-closed round
	TotalResponses int // responses across all rounds
	NonPermanent   int // participants not terminally observed
	Now            time.Time
}

// CheckTermination decides whether the discussion should archive after a
// round closes. Checks run in fixed order and the first match wins; the
// returned reason is recorded on the discussion. Zero-valued limits disable
// their check.
func CheckTermination(in TerminationInput, cfg config.PlatformConfig) (model.ArchiveReason, bool) {
	if in.RoundResponses <= 1 {
		return model.ArchiveReasonInsufficientResponses, true
	}

	if cfg.MaxDiscussionDays > 0 {
		age := in.Now.Sub(in.Discussion.CreatedAt)
		if age >= time.Duration(cfg.MaxDiscussionDays)*24*time.Hour {
			return model.ArchiveReasonMaxDuration, true
		}
	}

	if cfg.MaxDiscussionRounds > 0 && in.RoundNumber >= cfg.MaxDiscussionRounds {
		return model.ArchiveReasonMaxRounds, true
	}

	if cfg.MaxDiscussionResponses > 0 && in.TotalResponses >= cfg.MaxDiscussionResponses {
		return model.ArchiveReasonMaxResponses, true
	}

	if in.NonPermanent == 0 {
		return model.ArchiveReasonAllPermanentObservers, true
	}

	return "", false
}
