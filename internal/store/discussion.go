package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"agora.app/rounds/core/db"
	"agora.app/rounds/internal/model"
)

type discussionStore struct {
	q db.Querier
}

const discussionColumns = `id, topic, status, archive_reason, initiator_id, delegate_id,
	max_response_length, pacing_multiplier, min_response_minutes, participant_cap,
	created_at, archived_at`

func (s *discussionStore) GetByID(ctx context.Context, id int64) (*model.Discussion, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+discussionColumns+` FROM discussions WHERE id = $1`, id)
	d, err := scanDiscussion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *discussionStore) Create(ctx context.Context, d *model.Discussion) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO discussions (id, topic, status, initiator_id, delegate_id,
			max_response_length, pacing_multiplier, min_response_minutes, participant_cap, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.Topic, d.Status, d.InitiatorID, d.DelegateID,
		d.MaxResponseLength, d.PacingMultiplier, d.MinResponseTime, d.ParticipantCap, d.CreatedAt)
	return err
}

func (s *discussionStore) UpdateParameters(ctx context.Context, id int64, maxResponseLength int, pacingMultiplier float64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE discussions SET max_response_length = $2, pacing_multiplier = $3 WHERE id = $1`,
		id, maxResponseLength, pacingMultiplier)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *discussionStore) SetDelegate(ctx context.Context, id int64, delegateID *int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE discussions SET delegate_id = $2 WHERE id = $1`, id, delegateID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *discussionStore) Archive(ctx context.Context, id int64, reason model.ArchiveReason, at time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE discussions SET status = $2, archive_reason = $3, archived_at = $4
		 WHERE id = $1 AND status = 'active'`,
		id, model.DiscussionStatusArchived, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *discussionStore) ListActiveIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM discussions WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDiscussion(row pgx.Row) (*model.Discussion, error) {
	var d model.Discussion
	err := row.Scan(&d.ID, &d.Topic, &d.Status, &d.ArchiveReason, &d.InitiatorID, &d.DelegateID,
		&d.MaxResponseLength, &d.PacingMultiplier, &d.MinResponseTime, &d.ParticipantCap,
		&d.CreatedAt, &d.ArchivedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
