package engine

import (
	"time"

	"agora.app/rounds/internal/model"
)

// ReentryDecision is the policy verdict on an observer returning to active
// status. Exactly one of the three shapes holds: eligible now, never
// (terminal), or not yet, with RetryAt set when the gate instant is already
// known, and nil when it only becomes known once the next round starts.
type ReentryDecision struct {
	Eligible bool
	Never    bool
	RetryAt  *time.Time
}

// ReentryInput carries everything the decision table reads.
type ReentryInput struct {
	Participant  *model.Participant
	RemovalRound *model.Round // round the participant was removed in
	FollowRound  *model.Round // removal round + 1; nil if not yet created
	CurrentRound *model.Round // latest round of the discussion
	FloorMinutes float64      // MRM x multiplier, used when a round has no computed deadline yet
	Now          time.Time
}

// CanRejoin evaluates the reentry decision table: cause x posted-before-
// removal x round-still-open. The rules, in priority order:
//
//  1. never removed (no observer cause): eligible at any time
//  2. mutual removal before posting: same round after one deadline interval
//     while it stays open, otherwise one interval into the following round
//  3. mutual removal after posting: one interval into the following round
//  4. deadline expiration: one interval into the following round
//  5. permanent observer: never
func CanRejoin(in ReentryInput) ReentryDecision {
	p := in.Participant

	if p.Role == model.RolePermanentObserver {
		return ReentryDecision{Never: true}
	}
	if p.Role.IsActive() {
		return ReentryDecision{Eligible: true}
	}
	if p.ObserverCause == nil || p.ObserverSince == nil || p.RemovedInRound == nil {
		// Never explicitly removed: invitees who have not yet taken part
		// rejoin with no wait.
		return ReentryDecision{Eligible: true}
	}

	switch *p.ObserverCause {
	case model.CauseQuorumRemoval:
		// Quorum removal is always permanent; a temporary observer with this
		// cause is inconsistent state, treated as terminal.
		return ReentryDecision{Never: true}

	case model.CauseMutualRemoval:
		if !p.PostedWhenRemoved {
			return in.sameRoundGate()
		}
		return in.nextRoundGate()

	case model.CauseDeadlineExpired:
		return in.nextRoundGate()
	}

	return ReentryDecision{Never: true}
}

// sameRoundGate handles removal before posting: the observer may return to
// the round they were removed from once one deadline interval has elapsed
// since removal, provided that round is still open. Once it closes, the
// next-round gate applies instead.
func (in ReentryInput) sameRoundGate() ReentryDecision {
	removed := *in.Participant.RemovedInRound

	if in.CurrentRound != nil && in.CurrentRound.Number == removed && in.CurrentRound.AcceptingResponses() {
		gate := in.Participant.ObserverSince.Add(model.MinutesToDuration(in.deadlineOf(in.RemovalRound)))
		if !in.Now.Before(gate) {
			return ReentryDecision{Eligible: true}
		}
		return ReentryDecision{RetryAt: &gate}
	}

	return in.nextRoundGate()
}

// nextRoundGate requires one full deadline interval measured from the start
// of the round following the removal.
func (in ReentryInput) nextRoundGate() ReentryDecision {
	removed := *in.Participant.RemovedInRound

	if in.CurrentRound == nil || in.CurrentRound.Number <= removed {
		// The following round has not started; the gate instant is unknown.
		return ReentryDecision{}
	}
	if in.CurrentRound.Number > removed+1 {
		return ReentryDecision{Eligible: true}
	}

	follow := in.FollowRound
	if follow == nil {
		follow = in.CurrentRound
	}
	gate := follow.StartedAt.Add(model.MinutesToDuration(in.deadlineOf(follow)))
	if !in.Now.Before(gate) {
		return ReentryDecision{Eligible: true}
	}
	return ReentryDecision{RetryAt: &gate}
}

// deadlineOf returns a round's deadline in minutes, falling back to the
// configured floor for rounds that never computed one.
func (in ReentryInput) deadlineOf(r *model.Round) float64 {
	if r != nil && r.DeadlineMinutes != nil {
		return *r.DeadlineMinutes
	}
	return in.FloorMinutes
}
