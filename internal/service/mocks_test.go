package service_test

import (
	"context"
	"sort"
	"time"

	"agora.app/rounds/common/id"
	"agora.app/rounds/core/config"
	"agora.app/rounds/internal/events"
	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/service"
	"agora.app/rounds/internal/store"
)

// The mocks are in-memory fakes with function-field overrides: by default
// they behave like a real store, and a test can replace any single method.

type mockTxRunner struct {
	provider         *mockStoreProvider
	withTxFn         func(ctx context.Context, fn func(stores service.StoreProvider) error) error
	withDiscussionFn func(ctx context.Context, discussionID int64, fn func(stores service.StoreProvider) error) error
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	return fn(m.provider)
}

func (m *mockTxRunner) WithDiscussion(ctx context.Context, discussionID int64, fn func(stores service.StoreProvider) error) error {
	if m.withDiscussionFn != nil {
		return m.withDiscussionFn(ctx, discussionID, fn)
	}
	return fn(m.provider)
}

type mockStoreProvider struct {
	discussions  *mockDiscussionStore
	rounds       *mockRoundStore
	participants *mockParticipantStore
	responses    *mockResponseStore
	votes        *mockParameterVoteStore
	ballots      *mockRemovalBallotStore
	modEvents    *mockModerationEventStore
}

func (m *mockStoreProvider) Discussions() store.DiscussionStore           { return m.discussions }
func (m *mockStoreProvider) Rounds() store.RoundStore                     { return m.rounds }
func (m *mockStoreProvider) Participants() store.ParticipantStore         { return m.participants }
func (m *mockStoreProvider) Responses() store.ResponseStore               { return m.responses }
func (m *mockStoreProvider) ParameterVotes() store.ParameterVoteStore     { return m.votes }
func (m *mockStoreProvider) RemovalBallots() store.RemovalBallotStore     { return m.ballots }
func (m *mockStoreProvider) ModerationEvents() store.ModerationEventStore { return m.modEvents }

type mockDiscussionStore struct {
	byID      map[int64]*model.Discussion
	getByIDFn func(ctx context.Context, id int64) (*model.Discussion, error)
	archiveFn func(ctx context.Context, id int64, reason model.ArchiveReason, at time.Time) error
}

func (m *mockDiscussionStore) GetByID(ctx context.Context, id int64) (*model.Discussion, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	d, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDiscussionStore) Create(_ context.Context, d *model.Discussion) error {
	cp := *d
	m.byID[d.ID] = &cp
	return nil
}

func (m *mockDiscussionStore) UpdateParameters(_ context.Context, id int64, maxResponseLength int, pacingMultiplier float64) error {
	d, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	d.MaxResponseLength = maxResponseLength
	d.PacingMultiplier = pacingMultiplier
	return nil
}

func (m *mockDiscussionStore) SetDelegate(_ context.Context, id int64, delegateID *int64) error {
	d, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	d.DelegateID = delegateID
	return nil
}

func (m *mockDiscussionStore) Archive(ctx context.Context, id int64, reason model.ArchiveReason, at time.Time) error {
	if m.archiveFn != nil {
		return m.archiveFn(ctx, id, reason, at)
	}
	d, ok := m.byID[id]
	if !ok || d.Status != model.DiscussionStatusActive {
		return store.ErrNotFound
	}
	d.Status = model.DiscussionStatusArchived
	d.ArchiveReason = &reason
	archivedAt := at
	d.ArchivedAt = &archivedAt
	return nil
}

func (m *mockDiscussionStore) ListActiveIDs(context.Context) ([]int64, error) {
	var out []int64
	for _, d := range m.byID {
		if d.Status == model.DiscussionStatusActive {
			out = append(out, d.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type mockRoundStore struct {
	byID map[int64]*model.Round
}

func (m *mockRoundStore) GetByID(_ context.Context, id int64) (*model.Round, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRoundStore) GetCurrent(_ context.Context, discussionID int64) (*model.Round, error) {
	var current *model.Round
	for _, r := range m.byID {
		if r.DiscussionID != discussionID {
			continue
		}
		if current == nil || r.Number > current.Number {
			current = r
		}
	}
	if current == nil {
		return nil, store.ErrNotFound
	}
	cp := *current
	return &cp, nil
}

func (m *mockRoundStore) GetByNumber(_ context.Context, discussionID int64, number int) (*model.Round, error) {
	for _, r := range m.byID {
		if r.DiscussionID == discussionID && r.Number == number {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockRoundStore) Create(_ context.Context, r *model.Round) error {
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

func (m *mockRoundStore) Update(_ context.Context, r *model.Round) error {
	if _, ok := m.byID[r.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

type mockParticipantStore struct {
	byID map[int64]*model.Participant
}

func (m *mockParticipantStore) GetByID(_ context.Context, id int64) (*model.Participant, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockParticipantStore) GetByDiscussionAndUser(_ context.Context, discussionID, userID int64) (*model.Participant, error) {
	for _, p := range m.byID {
		if p.DiscussionID == discussionID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockParticipantStore) Create(_ context.Context, p *model.Participant) error {
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *mockParticipantStore) Update(_ context.Context, p *model.Participant) error {
	if _, ok := m.byID[p.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *mockParticipantStore) ListByDiscussion(_ context.Context, discussionID int64) ([]model.Participant, error) {
	var out []model.Participant
	for _, p := range m.byID {
		if p.DiscussionID == discussionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockParticipantStore) CountActive(_ context.Context, discussionID int64) (int, error) {
	n := 0
	for _, p := range m.byID {
		if p.DiscussionID == discussionID && p.Role.IsActive() {
			n++
		}
	}
	return n, nil
}

func (m *mockParticipantStore) CountNonPermanent(_ context.Context, discussionID int64) (int, error) {
	n := 0
	for _, p := range m.byID {
		if p.DiscussionID == discussionID && p.Role != model.RolePermanentObserver {
			n++
		}
	}
	return n, nil
}

type mockResponseStore struct {
	byID   map[int64]*model.Response
	rounds *mockRoundStore
}

func (m *mockResponseStore) GetByID(_ context.Context, id int64) (*model.Response, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockResponseStore) GetByRoundAndParticipant(_ context.Context, roundID, participantID int64) (*model.Response, error) {
	for _, r := range m.byID {
		if r.RoundID == roundID && r.ParticipantID == participantID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockResponseStore) Create(_ context.Context, r *model.Response) error {
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

func (m *mockResponseStore) Update(_ context.Context, r *model.Response) error {
	existing, ok := m.byID[r.ID]
	if !ok || existing.Locked {
		return store.ErrNotFound
	}
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

func (m *mockResponseStore) ListByRound(_ context.Context, roundID int64) ([]model.Response, error) {
	var out []model.Response
	for _, r := range m.byID {
		if r.RoundID == roundID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockResponseStore) CountByDiscussion(_ context.Context, discussionID int64) (int, error) {
	n := 0
	for _, r := range m.byID {
		round, ok := m.rounds.byID[r.RoundID]
		if ok && round.DiscussionID == discussionID {
			n++
		}
	}
	return n, nil
}

func (m *mockResponseStore) Intervals(_ context.Context, discussionID int64, minRoundNumber int) ([]float64, error) {
	type entry struct {
		at time.Time
		v  float64
	}
	var entries []entry
	for _, r := range m.byID {
		round, ok := m.rounds.byID[r.RoundID]
		if !ok || round.DiscussionID != discussionID || round.Number < minRoundNumber {
			continue
		}
		if r.IntervalMinutes != nil {
			entries = append(entries, entry{at: r.CreatedAt, v: *r.IntervalMinutes})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	out := make([]float64, len(entries))
	for i, e := range entries {
		out[i] = e.v
	}
	return out, nil
}

func (m *mockResponseStore) LockByRound(_ context.Context, roundID int64) error {
	for _, r := range m.byID {
		if r.RoundID == roundID {
			r.Locked = true
		}
	}
	return nil
}

func (m *mockResponseStore) LockByDiscussion(_ context.Context, discussionID int64) error {
	for _, r := range m.byID {
		round, ok := m.rounds.byID[r.RoundID]
		if ok && round.DiscussionID == discussionID {
			r.Locked = true
		}
	}
	return nil
}

type voteKey struct {
	roundID       int64
	participantID int64
}

type mockParameterVoteStore struct {
	byKey map[voteKey]*model.ParameterVote
}

func (m *mockParameterVoteStore) Upsert(_ context.Context, v *model.ParameterVote) error {
	cp := *v
	m.byKey[voteKey{v.RoundID, v.ParticipantID}] = &cp
	return nil
}

func (m *mockParameterVoteStore) ListByRound(_ context.Context, roundID int64) ([]model.ParameterVote, error) {
	var out []model.ParameterVote
	for k, v := range m.byKey {
		if k.roundID == roundID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CastAt.Before(out[j].CastAt) })
	return out, nil
}

type ballotKey struct {
	roundID  int64
	voterID  int64
	targetID int64
}

type mockRemovalBallotStore struct {
	byKey map[ballotKey]*model.RemovalBallot
}

func (m *mockRemovalBallotStore) Upsert(_ context.Context, b *model.RemovalBallot) error {
	key := ballotKey{b.RoundID, b.VoterID, b.TargetID}
	if _, ok := m.byKey[key]; ok {
		return nil
	}
	cp := *b
	m.byKey[key] = &cp
	return nil
}

func (m *mockRemovalBallotStore) ListByRound(_ context.Context, roundID int64) ([]model.RemovalBallot, error) {
	var out []model.RemovalBallot
	for k, b := range m.byKey {
		if k.roundID == roundID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CastAt.Before(out[j].CastAt) })
	return out, nil
}

type mockModerationEventStore struct {
	entries []model.ModerationEvent
}

func (m *mockModerationEventStore) Create(_ context.Context, e *model.ModerationEvent) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockModerationEventStore) MutualExists(_ context.Context, discussionID, initiatorID, targetID int64) (bool, error) {
	for _, e := range m.entries {
		if e.DiscussionID == discussionID && e.ActionType == model.ActionMutualRemoval &&
			e.InitiatorID == initiatorID && e.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockModerationEventStore) ListByDiscussion(_ context.Context, discussionID int64) ([]model.ModerationEvent, error) {
	var out []model.ModerationEvent
	for _, e := range m.entries {
		if e.DiscussionID == discussionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// capturingEmitter records every emitted event for assertions.
type capturingEmitter struct {
	emitted []events.Event
}

func (e *capturingEmitter) Emit(_ context.Context, ev events.Event) error {
	e.emitted = append(e.emitted, ev)
	return nil
}

func (e *capturingEmitter) Close() error { return nil }

func (e *capturingEmitter) typesOf() []events.EventType {
	out := make([]events.EventType, len(e.emitted))
	for i, ev := range e.emitted {
		out[i] = ev.Type
	}
	return out
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fixture wires the fakes into a Services value the way the mains wire the
// real stores.
type fixture struct {
	discussions  *mockDiscussionStore
	rounds       *mockRoundStore
	participants *mockParticipantStore
	responses    *mockResponseStore
	votes        *mockParameterVoteStore
	ballots      *mockRemovalBallotStore
	modEvents    *mockModerationEventStore
	provider     *mockStoreProvider
	tx           *mockTxRunner
	emitter      *capturingEmitter
	clock        *fakeClock
	services     *service.Services
}

func newFixture(cfg config.PlatformConfig) *fixture {
	f := &fixture{
		discussions:  &mockDiscussionStore{byID: map[int64]*model.Discussion{}},
		rounds:       &mockRoundStore{byID: map[int64]*model.Round{}},
		participants: &mockParticipantStore{byID: map[int64]*model.Participant{}},
		votes:        &mockParameterVoteStore{byKey: map[voteKey]*model.ParameterVote{}},
		ballots:      &mockRemovalBallotStore{byKey: map[ballotKey]*model.RemovalBallot{}},
		modEvents:    &mockModerationEventStore{},
		emitter:      &capturingEmitter{},
		clock:        &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.responses = &mockResponseStore{byID: map[int64]*model.Response{}, rounds: f.rounds}
	f.provider = &mockStoreProvider{
		discussions:  f.discussions,
		rounds:       f.rounds,
		participants: f.participants,
		responses:    f.responses,
		votes:        f.votes,
		ballots:      f.ballots,
		modEvents:    f.modEvents,
	}
	f.tx = &mockTxRunner{provider: f.provider}
	f.services = service.NewServicesWithClock(f.tx, cfg, f.emitter, f.clock.Now)
	return f
}

func testPlatformConfig() config.PlatformConfig {
	return config.PlatformConfig{
		DefaultMaxResponseLength: 2000,
		DefaultPacingMultiplier:  2.0,
		DefaultMinResponseTime:   30,
		DefaultParticipantCap:    10,
		FreeFormThreshold:        2,
		FreeFormTimeoutDays:      30,
		DeadlineScope:            config.DeadlineScopeCurrentRound,
		DeadlineScopeRounds:      3,
		VoteAdjustPercent:        10,
		MaxResponseLengthMin:     100,
		MaxResponseLengthMax:     5000,
		PacingMultiplierMin:      0.5,
		PacingMultiplierMax:      2.0,
		RemovalThreshold:         0.8,
		MutualRemovalLimit:       3,
		TimesRemovedLimit:        3,
		ResponseEditLimit:        2,
		ResponseEditPercent:      20,
		MaxDiscussionDays:        90,
		MaxDiscussionRounds:      50,
		MaxDiscussionResponses:   500,
	}
}

// seedDiscussion adds an active discussion with its initiator, n-1
// additional active participants and an open first round. Participant user
// IDs are 1..n, with user 1 the initiator.
func (f *fixture) seedDiscussion(n int, cfg config.PlatformConfig, phase model.RoundPhase) (*model.Discussion, *model.Round) {
	now := f.clock.Now()
	d := &model.Discussion{
		ID:                id.New(),
		Topic:             "seeded",
		Status:            model.DiscussionStatusActive,
		InitiatorID:       1,
		MaxResponseLength: cfg.DefaultMaxResponseLength,
		PacingMultiplier:  cfg.DefaultPacingMultiplier,
		MinResponseTime:   cfg.DefaultMinResponseTime,
		ParticipantCap:    cfg.DefaultParticipantCap,
		CreatedAt:         now,
	}
	f.discussions.byID[d.ID] = d

	for i := 1; i <= n; i++ {
		role := model.RoleActive
		if i == 1 {
			role = model.RoleInitiator
		}
		p := &model.Participant{
			ID:           id.New(),
			DiscussionID: d.ID,
			UserID:       int64(i),
			Role:         role,
			JoinedAt:     now,
		}
		f.participants.byID[p.ID] = p
	}

	r := &model.Round{
		ID:           id.New(),
		DiscussionID: d.ID,
		Number:       1,
		Phase:        phase,
		StartedAt:    now,
	}
	if phase == model.PhaseDeadlineRegulated {
		deadline := cfg.DefaultMinResponseTime * cfg.DefaultPacingMultiplier
		r.DeadlineMinutes = &deadline
	}
	f.rounds.byID[r.ID] = r
	return d, r
}

func (f *fixture) currentRound(discussionID int64) *model.Round {
	r, err := f.rounds.GetCurrent(context.Background(), discussionID)
	if err != nil {
		return nil
	}
	return r
}

func (f *fixture) participantByUser(discussionID, userID int64) *model.Participant {
	p, err := f.participants.GetByDiscussionAndUser(context.Background(), discussionID, userID)
	if err != nil {
		return nil
	}
	return p
}
