package model

import "time"

// VoteChoice is one voter's position on a single pacing parameter.
type VoteChoice string

const (
	VoteIncrease VoteChoice = "increase"
	VoteNoChange VoteChoice = "no_change"
	VoteDecrease VoteChoice = "decrease"
)

func (c VoteChoice) Valid() bool {
	switch c {
	case VoteIncrease, VoteNoChange, VoteDecrease:
		return true
	}
	return false
}

// ParameterVote carries one voter's independent choices for the two
// adjustable parameters. Re-casting overwrites while the window is open.
type ParameterVote struct {
	ID            int64      `json:"id"`
	RoundID       int64      `json:"round_id"`
	ParticipantID int64      `json:"participant_id"`
	LengthChoice  VoteChoice `json:"length_choice"`
	PacingChoice  VoteChoice `json:"pacing_choice"`
	CastAt        time.Time  `json:"cast_at"`
}

// RemovalBallot is one hidden (voter, target) removal vote for a round.
// Ballots are never exposed individually before resolution.
type RemovalBallot struct {
	ID       int64     `json:"id"`
	RoundID  int64     `json:"round_id"`
	VoterID  int64     `json:"voter_id"`
	TargetID int64     `json:"target_id"`
	CastAt   time.Time `json:"cast_at"`
}
