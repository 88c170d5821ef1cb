package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"agora.app/rounds/core/db"
	"agora.app/rounds/internal/model"
)

type participantStore struct {
	q db.Querier
}

const participantColumns = `id, discussion_id, user_id, role, observer_cause, observer_since,
	removed_in_round, posted_when_removed, removals_initiated, times_removed, has_ever_posted, joined_at`

func (s *participantStore) GetByID(ctx context.Context, id int64) (*model.Participant, error) {
	row := s.q.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
	return scanParticipantRow(row)
}

func (s *participantStore) GetByDiscussionAndUser(ctx context.Context, discussionID, userID int64) (*model.Participant, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE discussion_id = $1 AND user_id = $2`,
		discussionID, userID)
	return scanParticipantRow(row)
}

func (s *participantStore) Create(ctx context.Context, p *model.Participant) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO participants (id, discussion_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.DiscussionID, p.UserID, p.Role, p.JoinedAt)
	return err
}

func (s *participantStore) Update(ctx context.Context, p *model.Participant) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE participants SET role = $2, observer_cause = $3, observer_since = $4,
			removed_in_round = $5, posted_when_removed = $6, removals_initiated = $7,
			times_removed = $8, has_ever_posted = $9
		 WHERE id = $1`,
		p.ID, p.Role, p.ObserverCause, p.ObserverSince,
		p.RemovedInRound, p.PostedWhenRemoved, p.RemovalsInitiated,
		p.TimesRemoved, p.HasEverPosted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *participantStore) ListByDiscussion(ctx context.Context, discussionID int64) ([]model.Participant, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE discussion_id = $1 ORDER BY joined_at`,
		discussionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *participantStore) CountActive(ctx context.Context, discussionID int64) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM participants
		 WHERE discussion_id = $1 AND role IN ('initiator', 'active')`,
		discussionID).Scan(&n)
	return n, err
}

func (s *participantStore) CountNonPermanent(ctx context.Context, discussionID int64) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM participants
		 WHERE discussion_id = $1 AND role <> 'permanent_observer'`,
		discussionID).Scan(&n)
	return n, err
}

func scanParticipantRow(row pgx.Row) (*model.Participant, error) {
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanParticipant(row pgx.Row) (*model.Participant, error) {
	var p model.Participant
	err := row.Scan(&p.ID, &p.DiscussionID, &p.UserID, &p.Role, &p.ObserverCause, &p.ObserverSince,
		&p.RemovedInRound, &p.PostedWhenRemoved, &p.RemovalsInitiated, &p.TimesRemoved,
		&p.HasEverPosted, &p.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
