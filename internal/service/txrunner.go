package service

import (
	"context"

	"agora.app/rounds/core/db"
	"agora.app/rounds/internal/store"
)

// StoreProvider exposes the stores a transactional operation may touch.
type StoreProvider interface {
	Discussions() store.DiscussionStore
	Rounds() store.RoundStore
	Participants() store.ParticipantStore
	Responses() store.ResponseStore
	ParameterVotes() store.ParameterVoteStore
	RemovalBallots() store.RemovalBallotStore
	ModerationEvents() store.ModerationEventStore
}

// TxRunner runs functions within a transaction and provides stores bound to
// that transaction. WithDiscussion additionally holds the per-discussion
// advisory lock, serializing every mutation of one discussion's state.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
	WithDiscussion(ctx context.Context, discussionID int64, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q db.Querier) error {
		return fn(store.NewStores(q))
	})
}

func (r *dbTxRunner) WithDiscussion(ctx context.Context, discussionID int64, fn func(stores StoreProvider) error) error {
	return r.db.WithDiscussionTx(ctx, discussionID, func(q db.Querier) error {
		return fn(store.NewStores(q))
	})
}
