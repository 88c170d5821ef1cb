package model

import "time"

// Response is one participant's single contribution to a round. Exactly one
// response may exist per (round, participant); the stores enforce this with a
// unique constraint and the engine treats a duplicate as a state conflict.
type Response struct {
	ID              int64      `json:"id"`
	RoundID         int64      `json:"round_id"`
	ParticipantID   int64      `json:"participant_id"`
	Content         string     `json:"content"`
	ContentLength   int        `json:"content_length"`
	IntervalMinutes *float64   `json:"interval_minutes,omitempty"` // nil for the first response of a round
	EditCount       int        `json:"edit_count"`
	CharsAltered    int        `json:"chars_altered"`
	Locked          bool       `json:"locked"`
	CreatedAt       time.Time  `json:"created_at"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
}
