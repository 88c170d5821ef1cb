package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"agora.app/rounds/core/db"
	"agora.app/rounds/internal/model"
)

type responseStore struct {
	q db.Querier
}

const responseColumns = `id, round_id, participant_id, content, content_length,
	interval_minutes, edit_count, chars_altered, locked, created_at, edited_at`

func (s *responseStore) GetByID(ctx context.Context, id int64) (*model.Response, error) {
	row := s.q.QueryRow(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id)
	return scanResponseRow(row)
}

func (s *responseStore) GetByRoundAndParticipant(ctx context.Context, roundID, participantID int64) (*model.Response, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE round_id = $1 AND participant_id = $2`,
		roundID, participantID)
	return scanResponseRow(row)
}

func (s *responseStore) Create(ctx context.Context, r *model.Response) error {
	// The unique (round_id, participant_id) index backs the one-response-
	// per-round invariant; services check first, this is the backstop.
	_, err := s.q.Exec(ctx,
		`INSERT INTO responses (id, round_id, participant_id, content, content_length, interval_minutes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.RoundID, r.ParticipantID, r.Content, r.ContentLength, r.IntervalMinutes, r.CreatedAt)
	return err
}

func (s *responseStore) Update(ctx context.Context, r *model.Response) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE responses SET content = $2, content_length = $3, edit_count = $4,
			chars_altered = $5, edited_at = $6
		 WHERE id = $1 AND NOT locked`,
		r.ID, r.Content, r.ContentLength, r.EditCount, r.CharsAltered, r.EditedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *responseStore) ListByRound(ctx context.Context, roundID int64) ([]model.Response, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE round_id = $1 ORDER BY created_at`,
		roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *responseStore) CountByDiscussion(ctx context.Context, discussionID int64) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM responses r
		 JOIN rounds rd ON rd.id = r.round_id
		 WHERE rd.discussion_id = $1`,
		discussionID).Scan(&n)
	return n, err
}

func (s *responseStore) Intervals(ctx context.Context, discussionID int64, minRoundNumber int) ([]float64, error) {
	rows, err := s.q.Query(ctx,
		`SELECT r.interval_minutes FROM responses r
		 JOIN rounds rd ON rd.id = r.round_id
		 WHERE rd.discussion_id = $1 AND rd.number >= $2 AND r.interval_minutes IS NOT NULL
		 ORDER BY r.created_at`,
		discussionID, minRoundNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *responseStore) LockByRound(ctx context.Context, roundID int64) error {
	_, err := s.q.Exec(ctx, `UPDATE responses SET locked = TRUE WHERE round_id = $1`, roundID)
	return err
}

func (s *responseStore) LockByDiscussion(ctx context.Context, discussionID int64) error {
	_, err := s.q.Exec(ctx,
		`UPDATE responses SET locked = TRUE
		 WHERE round_id IN (SELECT id FROM rounds WHERE discussion_id = $1)`,
		discussionID)
	return err
}

func scanResponseRow(row pgx.Row) (*model.Response, error) {
	r, err := scanResponse(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func scanResponse(row pgx.Row) (*model.Response, error) {
	var r model.Response
	err := row.Scan(&r.ID, &r.RoundID, &r.ParticipantID, &r.Content, &r.ContentLength,
		&r.IntervalMinutes, &r.EditCount, &r.CharsAltered, &r.Locked, &r.CreatedAt, &r.EditedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
