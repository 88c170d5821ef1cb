package store

import (
	"context"
	"errors"
	"time"

	"agora.app/rounds/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// DiscussionStore defines the contract for discussion data access
type DiscussionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Discussion, error)
	Create(ctx context.Context, d *model.Discussion) error
	UpdateParameters(ctx context.Context, id int64, maxResponseLength int, pacingMultiplier float64) error
	SetDelegate(ctx context.Context, id int64, delegateID *int64) error
	Archive(ctx context.Context, id int64, reason model.ArchiveReason, at time.Time) error
	ListActiveIDs(ctx context.Context) ([]int64, error)
}

// RoundStore defines the contract for round data access
type RoundStore interface {
	GetByID(ctx context.Context, id int64) (*model.Round, error)
	GetCurrent(ctx context.Context, discussionID int64) (*model.Round, error) // highest round number
	GetByNumber(ctx context.Context, discussionID int64, number int) (*model.Round, error)
	Create(ctx context.Context, r *model.Round) error
	Update(ctx context.Context, r *model.Round) error
}

// ParticipantStore defines the contract for participant data access
type ParticipantStore interface {
	GetByID(ctx context.Context, id int64) (*model.Participant, error)
	GetByDiscussionAndUser(ctx context.Context, discussionID, userID int64) (*model.Participant, error)
	Create(ctx context.Context, p *model.Participant) error
	Update(ctx context.Context, p *model.Participant) error
	ListByDiscussion(ctx context.Context, discussionID int64) ([]model.Participant, error)
	CountActive(ctx context.Context, discussionID int64) (int, error)
	CountNonPermanent(ctx context.Context, discussionID int64) (int, error)
}

// ResponseStore defines the contract for response data access
type ResponseStore interface {
	GetByID(ctx context.Context, id int64) (*model.Response, error)
	GetByRoundAndParticipant(ctx context.Context, roundID, participantID int64) (*model.Response, error)
	Create(ctx context.Context, r *model.Response) error
	Update(ctx context.Context, r *model.Response) error
	ListByRound(ctx context.Context, roundID int64) ([]model.Response, error)
	CountByDiscussion(ctx context.Context, discussionID int64) (int, error)
	// Intervals returns all non-null response intervals recorded in rounds
	// with number >= minRoundNumber, ordered by creation time.
	Intervals(ctx context.Context, discussionID int64, minRoundNumber int) ([]float64, error)
	LockByRound(ctx context.Context, roundID int64) error
	LockByDiscussion(ctx context.Context, discussionID int64) error
}

// ParameterVoteStore defines the contract for inter-round parameter votes
type ParameterVoteStore interface {
	// Upsert overwrites the voter's previous choices for the round.
	Upsert(ctx context.Context, v *model.ParameterVote) error
	ListByRound(ctx context.Context, roundID int64) ([]model.ParameterVote, error)
}

// RemovalBallotStore defines the contract for hidden removal ballots
type RemovalBallotStore interface {
	Upsert(ctx context.Context, b *model.RemovalBallot) error
	ListByRound(ctx context.Context, roundID int64) ([]model.RemovalBallot, error)
}

// ModerationEventStore defines the contract for the immutable moderation log
type ModerationEventStore interface {
	Create(ctx context.Context, e *model.ModerationEvent) error
	MutualExists(ctx context.Context, discussionID, initiatorID, targetID int64) (bool, error)
	ListByDiscussion(ctx context.Context, discussionID int64) ([]model.ModerationEvent, error)
}
