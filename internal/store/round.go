package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"agora.app/rounds/core/db"
	"agora.app/rounds/internal/model"
)

type roundStore struct {
	q db.Querier
}

const roundColumns = `id, discussion_id, number, phase, close_reason, deadline_minutes,
	response_count, started_at, last_response_at, voting_opened_at, closed_at`

func (s *roundStore) GetByID(ctx context.Context, id int64) (*model.Round, error) {
	row := s.q.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	return scanRoundRow(row)
}

func (s *roundStore) GetCurrent(ctx context.Context, discussionID int64) (*model.Round, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE discussion_id = $1
		 ORDER BY number DESC LIMIT 1`, discussionID)
	return scanRoundRow(row)
}

func (s *roundStore) GetByNumber(ctx context.Context, discussionID int64, number int) (*model.Round, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE discussion_id = $1 AND number = $2`,
		discussionID, number)
	return scanRoundRow(row)
}

func (s *roundStore) Create(ctx context.Context, r *model.Round) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO rounds (id, discussion_id, number, phase, deadline_minutes, response_count, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.DiscussionID, r.Number, r.Phase, r.DeadlineMinutes, r.ResponseCount, r.StartedAt)
	return err
}

func (s *roundStore) Update(ctx context.Context, r *model.Round) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE rounds SET phase = $2, close_reason = $3, deadline_minutes = $4,
			response_count = $5, last_response_at = $6, voting_opened_at = $7, closed_at = $8
		 WHERE id = $1`,
		r.ID, r.Phase, r.CloseReason, r.DeadlineMinutes,
		r.ResponseCount, r.LastResponseAt, r.VotingOpenedAt, r.ClosedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRoundRow(row pgx.Row) (*model.Round, error) {
	var r model.Round
	err := row.Scan(&r.ID, &r.DiscussionID, &r.Number, &r.Phase, &r.CloseReason, &r.DeadlineMinutes,
		&r.ResponseCount, &r.StartedAt, &r.LastResponseAt, &r.VotingOpenedAt, &r.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}
