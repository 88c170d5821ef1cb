package store

import (
	"context"

	"agora.app/rounds/core/db"
	"agora.app/rounds/internal/model"
)

type moderationEventStore struct {
	q db.Querier
}

func (s *moderationEventStore) Create(ctx context.Context, e *model.ModerationEvent) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO moderation_events (id, discussion_id, round_id, action_type, initiator_id, target_id, permanent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.DiscussionID, e.RoundID, e.ActionType, e.InitiatorID, e.TargetID, e.Permanent, e.CreatedAt)
	return err
}

// MutualExists reports whether the initiator has already removed the target
// anywhere in the discussion. A pair can mutually remove each other once.
func (s *moderationEventStore) MutualExists(ctx context.Context, discussionID, initiatorID, targetID int64) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM moderation_events
			WHERE discussion_id = $1 AND action_type = 'mutual'
			  AND initiator_id = $2 AND target_id = $3
		 )`,
		discussionID, initiatorID, targetID).Scan(&exists)
	return exists, err
}

func (s *moderationEventStore) ListByDiscussion(ctx context.Context, discussionID int64) ([]model.ModerationEvent, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, discussion_id, round_id, action_type, initiator_id, target_id, permanent, created_at
		 FROM moderation_events WHERE discussion_id = $1 ORDER BY created_at`,
		discussionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ModerationEvent
	for rows.Next() {
		var e model.ModerationEvent
		if err := rows.Scan(&e.ID, &e.DiscussionID, &e.RoundID, &e.ActionType, &e.InitiatorID, &e.TargetID, &e.Permanent, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
