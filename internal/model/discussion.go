package model

import "time"

type DiscussionStatus string

const (
	DiscussionStatusActive   DiscussionStatus = "active"
	DiscussionStatusArchived DiscussionStatus = "archived"
)

// ArchiveReason records why a discussion was archived. Archival is terminal;
// an archived discussion never reactivates.
type ArchiveReason string

const (
	ArchiveReasonInsufficientResponses ArchiveReason = "insufficient-responses"
	ArchiveReasonPhaseOneTimeout       ArchiveReason = "phase-one-timeout"
	ArchiveReasonMaxDuration           ArchiveReason = "max-duration-reached"
	ArchiveReasonMaxRounds             ArchiveReason = "max-rounds-reached"
	ArchiveReasonMaxResponses          ArchiveReason = "max-responses-reached"
	ArchiveReasonAllPermanentObservers ArchiveReason = "all-permanent-observers"
)

// Discussion is a structured, time-boxed group conversation. Its three pacing
// parameters are immutable except through inter-round voting.
type Discussion struct {
	ID                int64            `json:"id"`
	Topic             string           `json:"topic"`
	Status            DiscussionStatus `json:"status"`
	ArchiveReason     *ArchiveReason   `json:"archive_reason,omitempty"`
	InitiatorID       int64            `json:"initiator_id"`
	DelegateID        *int64           `json:"delegate_id,omitempty"`
	MaxResponseLength int              `json:"max_response_length"`
	PacingMultiplier  float64          `json:"pacing_multiplier"`
	MinResponseTime   float64          `json:"min_response_minutes"`
	ParticipantCap    int              `json:"participant_cap"`
	CreatedAt         time.Time        `json:"created_at"`
	ArchivedAt        *time.Time       `json:"archived_at,omitempty"`
}

func (d *Discussion) IsArchived() bool {
	return d.Status == DiscussionStatusArchived
}

// ApprovalHolder returns the user holding delegated approval authority, or
// nil when nobody does. A removed initiator without a delegate leaves the
// authority vacant.
func (d *Discussion) ApprovalHolder(initiatorRole ParticipantRole) *int64 {
	if d.DelegateID != nil {
		return d.DelegateID
	}
	if initiatorRole == RolePermanentObserver {
		return nil
	}
	id := d.InitiatorID
	return &id
}
