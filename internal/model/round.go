package model

import "time"

// RoundPhase is the state machine position of a round. Phases only move
// forward: free_form -> deadline_regulated -> voting -> closed.
type RoundPhase string

const (
	PhaseFreeForm          RoundPhase = "free_form"
	PhaseDeadlineRegulated RoundPhase = "deadline_regulated"
	PhaseVoting            RoundPhase = "voting"
	PhaseClosed            RoundPhase = "closed"
)

// order returns the forward-only ordinal of a phase.
func (p RoundPhase) order() int {
	switch p {
	case PhaseFreeForm:
		return 0
	case PhaseDeadlineRegulated:
		return 1
	case PhaseVoting:
		return 2
	case PhaseClosed:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether a transition to next is a forward move.
func (p RoundPhase) CanAdvanceTo(next RoundPhase) bool {
	return next.order() > p.order()
}

// CloseReason records why response collection ended for a round.
type CloseReason string

const (
	CloseReasonComplete              CloseReason = "complete"
	CloseReasonDeadlineExpired       CloseReason = "deadline-expired"
	CloseReasonInsufficientResponses CloseReason = "insufficient-responses"
	CloseReasonNoActiveParticipants  CloseReason = "no-active-participants"
)

// Round is one numbered response-collection cycle within a discussion.
// DeadlineMinutes is the live MRP value, recomputed after every regulated
// response; once the round leaves response collection it becomes the
// recorded final deadline and is never recomputed again.
type Round struct {
	ID              int64        `json:"id"`
	DiscussionID    int64        `json:"discussion_id"`
	Number          int          `json:"number"`
	Phase           RoundPhase   `json:"phase"`
	CloseReason     *CloseReason `json:"close_reason,omitempty"`
	DeadlineMinutes *float64     `json:"deadline_minutes,omitempty"`
	ResponseCount   int          `json:"response_count"`
	StartedAt       time.Time    `json:"started_at"`
	LastResponseAt  *time.Time   `json:"last_response_at,omitempty"`
	VotingOpenedAt  *time.Time   `json:"voting_opened_at,omitempty"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`
}

// AcceptingResponses reports whether the round is still collecting responses.
func (r *Round) AcceptingResponses() bool {
	return r.Phase == PhaseFreeForm || r.Phase == PhaseDeadlineRegulated
}

// DeadlineAt returns the instant the current deadline window expires, or nil
// while the round is unregulated. The window is measured from the last
// accepted response, or from round start if none has arrived yet.
func (r *Round) DeadlineAt() *time.Time {
	if r.Phase != PhaseDeadlineRegulated || r.DeadlineMinutes == nil {
		return nil
	}
	from := r.StartedAt
	if r.LastResponseAt != nil {
		from = *r.LastResponseAt
	}
	t := from.Add(MinutesToDuration(*r.DeadlineMinutes))
	return &t
}

// VotingClosesAt returns when the voting window elapses. The window length
// equals the deadline value recorded at round closure.
func (r *Round) VotingClosesAt() *time.Time {
	if r.Phase != PhaseVoting || r.VotingOpenedAt == nil || r.DeadlineMinutes == nil {
		return nil
	}
	t := r.VotingOpenedAt.Add(MinutesToDuration(*r.DeadlineMinutes))
	return &t
}

// MinutesToDuration converts a fractional minute count to a duration.
func MinutesToDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}
