package store

import (
	"context"

	"agora.app/rounds/core/db"
	"agora.app/rounds/internal/model"
)

type parameterVoteStore struct {
	q db.Querier
}

// Upsert records or overwrites a participant's parameter vote for the round.
func (s *parameterVoteStore) Upsert(ctx context.Context, v *model.ParameterVote) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO parameter_votes (id, round_id, participant_id, length_choice, pacing_choice, cast_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (round_id, participant_id)
		 DO UPDATE SET length_choice = EXCLUDED.length_choice,
		               pacing_choice = EXCLUDED.pacing_choice,
		               cast_at = EXCLUDED.cast_at`,
		v.ID, v.RoundID, v.ParticipantID, v.LengthChoice, v.PacingChoice, v.CastAt)
	return err
}

func (s *parameterVoteStore) ListByRound(ctx context.Context, roundID int64) ([]model.ParameterVote, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, round_id, participant_id, length_choice, pacing_choice, cast_at
		 FROM parameter_votes WHERE round_id = $1 ORDER BY cast_at`,
		roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ParameterVote
	for rows.Next() {
		var v model.ParameterVote
		if err := rows.Scan(&v.ID, &v.RoundID, &v.ParticipantID, &v.LengthChoice, &v.PacingChoice, &v.CastAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type removalBallotStore struct {
	q db.Querier
}

func (s *removalBallotStore) Upsert(ctx context.Context, b *model.RemovalBallot) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO removal_ballots (id, round_id, voter_id, target_id, cast_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (round_id, voter_id, target_id) DO NOTHING`,
		b.ID, b.RoundID, b.VoterID, b.TargetID, b.CastAt)
	return err
}

func (s *removalBallotStore) ListByRound(ctx context.Context, roundID int64) ([]model.RemovalBallot, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, round_id, voter_id, target_id, cast_at
		 FROM removal_ballots WHERE round_id = $1 ORDER BY cast_at`,
		roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RemovalBallot
	for rows.Next() {
		var b model.RemovalBallot
		if err := rows.Scan(&b.ID, &b.RoundID, &b.VoterID, &b.TargetID, &b.CastAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
