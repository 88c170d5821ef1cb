package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agora.app/rounds/core/config"
	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/service"
)

var _ = Describe("VotingService", func() {
	var (
		f   *fixture
		cfg config.PlatformConfig
		ctx context.Context
		d   *model.Discussion
	)

	// Drives a three-participant discussion into its first voting window:
	// all three respond, so everyone is an eligible voter.
	openWindow := func() {
		var err error
		_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
		Expect(err).NotTo(HaveOccurred())
		f.clock.Advance(35 * time.Minute)
		_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "second")
		Expect(err).NotTo(HaveOccurred())
		f.clock.Advance(35 * time.Minute)
		_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 3, "third")
		Expect(err).NotTo(HaveOccurred())

		Expect(f.currentRound(d.ID).Phase).To(Equal(model.PhaseVoting))
	}

	resolveWindow := func() {
		r := f.currentRound(d.ID)
		Expect(r.VotingClosesAt()).NotTo(BeNil())
		f.clock.Advance(r.VotingClosesAt().Sub(f.clock.Now()) + time.Minute)
		changed, err := f.services.Rounds().EvaluateExpiration(ctx, d.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
	}

	BeforeEach(func() {
		cfg = testPlatformConfig()
		f = newFixture(cfg)
		ctx = context.Background()
		d, _ = f.seedDiscussion(3, cfg, model.PhaseFreeForm)
	})

	Describe("CastParameterVote", func() {
		It("records a vote from an eligible voter", func() {
			openWindow()

			err := f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteIncrease, model.VoteNoChange)
			Expect(err).NotTo(HaveOccurred())

			tallies, err := f.services.Voting().Tallies(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(tallies.Eligible).To(Equal(3))
			Expect(tallies.Length.Increase).To(Equal(1))
			Expect(tallies.Length.Abstained).To(Equal(2))
		})

		It("overwrites on recast", func() {
			openWindow()

			Expect(f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteIncrease, model.VoteIncrease)).To(Succeed())
			Expect(f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteDecrease, model.VoteNoChange)).To(Succeed())

			tallies, err := f.services.Voting().Tallies(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(tallies.Length.Increase).To(BeZero())
			Expect(tallies.Length.Decrease).To(Equal(1))
		})

		It("rejects votes outside the voting phase", func() {
			err := f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteIncrease, model.VoteIncrease)
			Expect(err).To(MatchError(service.ErrWrongPhase))
		})

		It("rejects votes against an elapsed but unresolved window", func() {
			openWindow()

			r := f.currentRound(d.ID)
			f.clock.Advance(r.VotingClosesAt().Sub(f.clock.Now()) + time.Minute)

			err := f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteIncrease, model.VoteIncrease)
			Expect(err).To(MatchError(service.ErrStaleRound))
		})

		It("rejects voters who did not post in the round", func() {
			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())
			f.clock.Advance(35 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "second")
			Expect(err).NotTo(HaveOccurred())

			r := f.currentRound(d.ID)
			f.clock.Advance(time.Duration(*r.DeadlineMinutes)*time.Minute + time.Minute)
			_, err = f.services.Rounds().EvaluateExpiration(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.currentRound(d.ID).Phase).To(Equal(model.PhaseVoting))

			Expect(f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteNoChange, model.VoteNoChange)).To(Succeed())

			// User 3 was demoted for missing the deadline; no ballot.
			err = f.services.Voting().CastParameterVote(ctx, d.ID, 3, model.VoteIncrease, model.VoteIncrease)
			Expect(err).To(MatchError(service.ErrNotEligibleVoter))
		})

		It("keeps a demoted initiator in the voter set", func() {
			var err error
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "first")
			Expect(err).NotTo(HaveOccurred())
			f.clock.Advance(35 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 3, "second")
			Expect(err).NotTo(HaveOccurred())

			r := f.currentRound(d.ID)
			f.clock.Advance(time.Duration(*r.DeadlineMinutes)*time.Minute + time.Minute)
			_, err = f.services.Rounds().EvaluateExpiration(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.currentRound(d.ID).Phase).To(Equal(model.PhaseVoting))

			// The initiator missed the deadline and is now a temporary
			// observer, but keeps the vote the role grants.
			demoted := f.participantByUser(d.ID, 1)
			Expect(demoted.Role).To(Equal(model.RoleTemporaryObserver))

			Expect(f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteIncrease, model.VoteNoChange)).To(Succeed())

			tallies, err := f.services.Voting().Tallies(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(tallies.Eligible).To(Equal(3))
			Expect(tallies.Length.Increase).To(Equal(1))
		})

		It("excludes a permanently observed initiator", func() {
			openWindow()

			p := f.participantByUser(d.ID, 1)
			p.MoveToObserver(model.CauseQuorumRemoval, 1, true, f.clock.Now())
			p.MakePermanent(model.CauseQuorumRemoval, f.clock.Now())
			Expect(f.participants.Update(ctx, p)).To(Succeed())

			err := f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteIncrease, model.VoteNoChange)
			Expect(err).To(MatchError(service.ErrNotEligibleVoter))
		})

		It("rejects invalid choices", func() {
			openWindow()
			err := f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteChoice("maybe"), model.VoteNoChange)
			Expect(err).To(MatchError(service.ErrInvalidChoice))
		})
	})

	Describe("window resolution", func() {
		It("applies a strict-majority increase and starts the next round", func() {
			openWindow()

			Expect(f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteIncrease, model.VoteNoChange)).To(Succeed())
			Expect(f.services.Voting().CastParameterVote(ctx, d.ID, 2, model.VoteIncrease, model.VoteNoChange)).To(Succeed())

			resolveWindow()

			stored := f.discussions.byID[d.ID]
			Expect(stored.MaxResponseLength).To(Equal(2200))
			Expect(stored.PacingMultiplier).To(BeNumerically("~", 2.0, 1e-9))

			next := f.currentRound(d.ID)
			Expect(next.Number).To(Equal(2))
			Expect(next.Phase).To(Equal(model.PhaseDeadlineRegulated))
			Expect(next.DeadlineMinutes).NotTo(BeNil())
		})

		It("folds abstentions into no-change", func() {
			openWindow()

			// One increase out of three eligible is not a majority.
			Expect(f.services.Voting().CastParameterVote(ctx, d.ID, 1, model.VoteIncrease, model.VoteIncrease)).To(Succeed())

			resolveWindow()

			stored := f.discussions.byID[d.ID]
			Expect(stored.MaxResponseLength).To(Equal(2000))
			Expect(stored.PacingMultiplier).To(BeNumerically("~", 2.0, 1e-9))
		})

		It("clamps an adjustment at the parameter bound", func() {
			openWindow()

			// Pacing multiplier already sits at its maximum.
			for _, uid := range []int64{1, 2, 3} {
				Expect(f.services.Voting().CastParameterVote(ctx, d.ID, uid, model.VoteNoChange, model.VoteIncrease)).To(Succeed())
			}

			resolveWindow()

			stored := f.discussions.byID[d.ID]
			Expect(stored.PacingMultiplier).To(BeNumerically("~", cfg.PacingMultiplierMax, 1e-9))
		})

		It("resolves an exact split to no-change", func() {
			d2, _ := f.seedDiscussion(4, cfg, model.PhaseFreeForm)
			var err error
			for i, uid := range []int64{1, 2, 3, 4} {
				if i > 0 {
					f.clock.Advance(35 * time.Minute)
				}
				_, err = f.services.Rounds().SubmitResponse(ctx, d2.ID, uid, "text")
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(f.currentRound(d2.ID).Phase).To(Equal(model.PhaseVoting))

			Expect(f.services.Voting().CastParameterVote(ctx, d2.ID, 1, model.VoteDecrease, model.VoteNoChange)).To(Succeed())
			Expect(f.services.Voting().CastParameterVote(ctx, d2.ID, 2, model.VoteDecrease, model.VoteNoChange)).To(Succeed())

			r := f.currentRound(d2.ID)
			f.clock.Advance(r.VotingClosesAt().Sub(f.clock.Now()) + time.Minute)
			_, err = f.services.Rounds().EvaluateExpiration(ctx, d2.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(f.discussions.byID[d2.ID].MaxResponseLength).To(Equal(2000))
		})
	})
})
