package service

import "errors"

// Sentinel errors returned by the lifecycle services. The HTTP layer maps
// them onto status codes; everything else wraps with %w so errors.Is works
// through the stack.
var (
	ErrDiscussionNotFound = errors.New("discussion not found")
	ErrDiscussionArchived = errors.New("discussion is archived")
	ErrRoundNotFound      = errors.New("round not found")
	ErrRoundClosed        = errors.New("round is no longer accepting responses")
	ErrStaleRound         = errors.New("round is not the current round")
	ErrWrongPhase         = errors.New("operation not valid in the current phase")

	ErrNotParticipant        = errors.New("user is not a participant of this discussion")
	ErrNotActive             = errors.New("participant is not active")
	ErrPermanentObserver     = errors.New("participant is permanently barred from responding")
	ErrParticipantCapReached = errors.New("participant cap reached")
	ErrAlreadyParticipant    = errors.New("user already participates in this discussion")

	ErrAlreadyResponded = errors.New("participant has already responded this round")
	ErrContentTooLong   = errors.New("response exceeds the maximum length")
	ErrContentEmpty     = errors.New("response content is empty")
	ErrDeadlinePassed   = errors.New("response deadline has passed")

	ErrResponseNotFound   = errors.New("response not found")
	ErrResponseLocked     = errors.New("response is locked")
	ErrNotResponseAuthor  = errors.New("response belongs to another participant")
	ErrEditLimitReached   = errors.New("edit limit reached")
	ErrEditBudgetExceeded = errors.New("edit exceeds the altered-character budget")

	ErrNotEligibleVoter = errors.New("user is not eligible to vote in this window")
	ErrInvalidChoice    = errors.New("invalid vote choice")

	ErrSelfRemoval          = errors.New("participants cannot remove themselves")
	ErrTargetNotRemovable   = errors.New("target is not an active participant")
	ErrAlreadyRemovedTarget = errors.New("initiator has already removed this target")
	ErrRemovalLimitReached  = errors.New("mutual removal limit reached")

	ErrNotYetEligible = errors.New("observer is not yet eligible to rejoin")
	ErrNeverEligible  = errors.New("observer can never rejoin")
)
