package service

import (
	"context"
	"fmt"
	"log/slog"

	"agora.app/rounds/common/id"
	"agora.app/rounds/common/logger"
	"agora.app/rounds/internal/engine"
	"agora.app/rounds/internal/events"
	"agora.app/rounds/internal/model"
)

// VotingService handles the inter-round parameter vote. Votes are cast
// while the window is open and resolve when it elapses; recasting
// overwrites. Individual choices are never exposed, only tallies.
type VotingService interface {
	CastParameterVote(ctx context.Context, discussionID, userID int64, lengthChoice, pacingChoice model.VoteChoice) error
	Tallies(ctx context.Context, discussionID int64) (*VoteTallies, error)
}

// VoteTallies is the public aggregate of an open or resolved window.
type VoteTallies struct {
	RoundNumber int         `json:"round_number"`
	Eligible    int         `json:"eligible"`
	Length      TallyCounts `json:"length"`
	Pacing      TallyCounts `json:"pacing"`
}

type TallyCounts struct {
	Increase  int `json:"increase"`
	NoChange  int `json:"no_change"`
	Decrease  int `json:"decrease"`
	Abstained int `json:"abstained"`
}

type votingService struct {
	tx TxRunner
	lifecycle
}

func NewVotingService(tx TxRunner, lc lifecycle) VotingService {
	return &votingService{tx: tx, lifecycle: lc}
}

func (s *votingService) CastParameterVote(ctx context.Context, discussionID, userID int64, lengthChoice, pacingChoice model.VoteChoice) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &discussionID, UserID: &userID})

	if !lengthChoice.Valid() || !pacingChoice.Valid() {
		return ErrInvalidChoice
	}

	return s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		if r.Phase != model.PhaseVoting {
			return ErrWrongPhase
		}
		now := s.now()
		// An elapsed but unresolved window means the caller acted on a
		// stale view of the round; resolution is the scheduler's job.
		if closesAt := r.VotingClosesAt(); closesAt != nil && !now.Before(*closesAt) {
			return ErrStaleRound
		}

		voter, err := s.eligibleVoter(ctx, stores, d, r, userID)
		if err != nil {
			return err
		}

		if err := stores.ParameterVotes().Upsert(ctx, &model.ParameterVote{
			ID:            id.New(),
			RoundID:       r.ID,
			ParticipantID: voter.ID,
			LengthChoice:  lengthChoice,
			PacingChoice:  pacingChoice,
			CastAt:        now,
		}); err != nil {
			return fmt.Errorf("upserting vote: %w", err)
		}

		// The event carries no choices; ballots stay private until
		// resolution.
		if err := s.emitter.Emit(ctx, events.Event{
			Type:         events.EventVoteRecorded,
			DiscussionID: d.ID,
			RoundID:      r.ID,
			RoundNumber:  r.Number,
			UserID:       userID,
		}); err != nil {
			slog.WarnContext(ctx, "emitting vote recorded", "error", err)
		}
		return nil
	})
}

func (s *votingService) Tallies(ctx context.Context, discussionID int64) (*VoteTallies, error) {
	var out *VoteTallies
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		if r.Phase != model.PhaseVoting {
			return ErrWrongPhase
		}

		voters, err := s.eligibleVoters(ctx, stores, d, r)
		if err != nil {
			return err
		}
		votes, err := stores.ParameterVotes().ListByRound(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("listing parameter votes: %w", err)
		}

		length := engine.Tally{Eligible: len(voters)}
		pacing := engine.Tally{Eligible: len(voters)}
		for _, v := range votes {
			if _, ok := voters[v.ParticipantID]; !ok {
				continue
			}
			tallyChoice(&length, v.LengthChoice)
			tallyChoice(&pacing, v.PacingChoice)
		}

		out = &VoteTallies{
			RoundNumber: r.Number,
			Eligible:    len(voters),
			Length: TallyCounts{
				Increase:  length.Increase,
				NoChange:  length.NoChange,
				Decrease:  length.Decrease,
				Abstained: length.Abstained(),
			},
			Pacing: TallyCounts{
				Increase:  pacing.Increase,
				NoChange:  pacing.NoChange,
				Decrease:  pacing.Decrease,
				Abstained: pacing.Abstained(),
			},
		}
		return nil
	})
	return out, err
}

// eligibleVoter resolves a user against the round's fixed voter set.
func (s *votingService) eligibleVoter(ctx context.Context, stores StoreProvider, d *model.Discussion, r *model.Round, userID int64) (*model.Participant, error) {
	voters, err := s.eligibleVoters(ctx, stores, d, r)
	if err != nil {
		return nil, err
	}
	for _, p := range voters {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, ErrNotEligibleVoter
}
