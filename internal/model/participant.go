package model

import "time"

type ParticipantRole string

const (
	RoleInitiator         ParticipantRole = "initiator"
	RoleActive            ParticipantRole = "active"
	RoleTemporaryObserver ParticipantRole = "temporary_observer"
	RolePermanentObserver ParticipantRole = "permanent_observer"
)

// IsActive reports whether the participant may currently respond.
// The initiator counts as active for every quorum and eligibility rule.
func (r ParticipantRole) IsActive() bool {
	return r == RoleInitiator || r == RoleActive
}

// ObserverCause records why a participant was moved to observer status.
type ObserverCause string

const (
	CauseDeadlineExpired ObserverCause = "deadline_expired"
	CauseMutualRemoval   ObserverCause = "mutual_removal"
	CauseQuorumRemoval   ObserverCause = "quorum_removal"
)

// Participant is one user's standing within one discussion. Participants are
// never deleted; permanent_observer is a terminal role.
type Participant struct {
	ID                int64           `json:"id"`
	DiscussionID      int64           `json:"discussion_id"`
	UserID            int64           `json:"user_id"`
	Role              ParticipantRole `json:"role"`
	ObserverCause     *ObserverCause  `json:"observer_cause,omitempty"`
	ObserverSince     *time.Time      `json:"observer_since,omitempty"`
	RemovedInRound    *int            `json:"removed_in_round,omitempty"`
	PostedWhenRemoved bool            `json:"posted_when_removed"`
	RemovalsInitiated int             `json:"removals_initiated"`
	TimesRemoved      int             `json:"times_removed"`
	HasEverPosted     bool            `json:"has_ever_posted"`
	JoinedAt          time.Time       `json:"joined_at"`
}

// MoveToObserver records an observer transition. Callers decide permanence;
// this never downgrades a permanent observer.
func (p *Participant) MoveToObserver(cause ObserverCause, roundNumber int, posted bool, at time.Time) {
	if p.Role == RolePermanentObserver {
		return
	}
	p.Role = RoleTemporaryObserver
	p.ObserverCause = &cause
	p.ObserverSince = &at
	p.RemovedInRound = &roundNumber
	p.PostedWhenRemoved = posted
}

// MakePermanent marks the participant terminally barred from responding.
func (p *Participant) MakePermanent(cause ObserverCause, at time.Time) {
	p.Role = RolePermanentObserver
	p.ObserverCause = &cause
	if p.ObserverSince == nil {
		p.ObserverSince = &at
	}
}

// Reactivate returns a temporary observer to active status.
func (p *Participant) Reactivate() {
	p.Role = RoleActive
	p.ObserverCause = nil
	p.ObserverSince = nil
	p.RemovedInRound = nil
	p.PostedWhenRemoved = false
}
