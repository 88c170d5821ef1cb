package model

import "time"

type ModerationActionType string

const (
	ActionMutualRemoval ModerationActionType = "mutual"
	ActionQuorumRemoval ModerationActionType = "quorum_vote"
)

// ModerationEvent is an immutable log entry for a removal action.
type ModerationEvent struct {
	ID           int64                `json:"id"`
	DiscussionID int64                `json:"discussion_id"`
	ActionType   ModerationActionType `json:"action_type"`
	InitiatorID  int64                `json:"initiator_id"`
	TargetID     int64                `json:"target_id"`
	RoundID      int64                `json:"round_id"`
	Permanent    bool                 `json:"permanent"`
	CreatedAt    time.Time            `json:"created_at"`
}
