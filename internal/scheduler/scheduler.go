// Package scheduler drives time-based transitions. Expiration is otherwise
// evaluated lazily on access; the scheduler guarantees dormant discussions
// still advance.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agora.app/rounds/common/logger"
	"agora.app/rounds/internal/service"
	"agora.app/rounds/internal/store"
)

type Config struct {
	Interval time.Duration
}

// Scheduler periodically sweeps active discussions and settles any window
// the clock has closed. Each discussion settles in its own transaction
// under the discussion lock, so a sweep racing a user request is safe.
type Scheduler struct {
	cfg         Config
	discussions store.DiscussionStore
	rounds      service.RoundService

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(cfg Config, discussions store.DiscussionStore, rounds service.RoundService) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Scheduler{
		cfg:         cfg,
		discussions: discussions,
		rounds:      rounds,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

// Run starts the sweep loop. Blocks until Stop() is called.
func (s *Scheduler) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "rounds.scheduler",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "scheduler started", "interval", s.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "scheduler stopping")
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "sweep cycle error", "error", err)
			}
		}
	}
}

// Stop signals the scheduler to stop gracefully.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

// sweepOnce evaluates every active discussion. A failure on one discussion
// does not stop the sweep.
func (s *Scheduler) sweepOnce(ctx context.Context) error {
	ids, err := s.discussions.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing active discussions: %w", err)
	}

	settled := 0
	for _, id := range ids {
		changed, err := s.rounds.EvaluateExpiration(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "evaluating discussion", "discussion_id", id, "error", err)
			continue
		}
		if changed {
			settled++
		}
	}

	if settled > 0 {
		slog.InfoContext(ctx, "sweep settled discussions", "swept", len(ids), "settled", settled)
	}
	return nil
}
