package store

import "agora.app/rounds/core/db"

// Stores aggregates all store implementations bound to one Querier.
// Bind to the pool for reads, or to a transaction via the service TxRunner.
type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Discussions() DiscussionStore {
	return &discussionStore{q: s.q}
}

func (s *Stores) Rounds() RoundStore {
	return &roundStore{q: s.q}
}

func (s *Stores) Participants() ParticipantStore {
	return &participantStore{q: s.q}
}

func (s *Stores) Responses() ResponseStore {
	return &responseStore{q: s.q}
}

func (s *Stores) ParameterVotes() ParameterVoteStore {
	return &parameterVoteStore{q: s.q}
}

func (s *Stores) RemovalBallots() RemovalBallotStore {
	return &removalBallotStore{q: s.q}
}

func (s *Stores) ModerationEvents() ModerationEventStore {
	return &moderationEventStore{q: s.q}
}
