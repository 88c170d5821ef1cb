package service_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agora.app/rounds/core/config"
	"agora.app/rounds/internal/events"
	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/service"
)

var _ = Describe("RoundService", func() {
	var (
		f   *fixture
		cfg config.PlatformConfig
		ctx context.Context
	)

	BeforeEach(func() {
		cfg = testPlatformConfig()
		f = newFixture(cfg)
		ctx = context.Background()
	})

	Describe("SubmitResponse", func() {
		It("accepts a first response and stays unregulated below the threshold", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseFreeForm)

			resp, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "opening statement")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IntervalMinutes).To(BeNil())

			r := f.currentRound(d.ID)
			Expect(r.Phase).To(Equal(model.PhaseFreeForm))
			Expect(r.ResponseCount).To(Equal(1))
		})

		It("begins deadline regulation once the threshold is met", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseFreeForm)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())

			f.clock.Advance(40 * time.Minute)
			resp, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "second")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IntervalMinutes).To(HaveValue(BeNumerically("~", 40.0, 1e-9)))

			// One 40 minute interval, MRM 30, multiplier 2: deadline 80.
			r := f.currentRound(d.ID)
			Expect(r.Phase).To(Equal(model.PhaseDeadlineRegulated))
			Expect(r.DeadlineMinutes).To(HaveValue(BeNumerically("~", 80.0, 1e-9)))
			Expect(f.emitter.typesOf()).To(ContainElement(events.EventRoundRegulated))
		})

		It("clamps short intervals up to the minimum response time", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseFreeForm)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())
			f.clock.Advance(5 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "second")
			Expect(err).NotTo(HaveOccurred())

			// 5 clamps to 30, times multiplier 2.
			r := f.currentRound(d.ID)
			Expect(r.DeadlineMinutes).To(HaveValue(BeNumerically("~", 60.0, 1e-9)))
		})

		It("rejects a second response from the same participant", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseFreeForm)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())

			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "again")
			Expect(err).To(MatchError(service.ErrAlreadyResponded))
		})

		It("rejects content over the maximum length", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseFreeForm)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, strings.Repeat("x", 2001))
			Expect(err).To(MatchError(service.ErrContentTooLong))
		})

		It("rejects non-participants and observers", func() {
			d, _ := f.seedDiscussion(2, cfg, model.PhaseFreeForm)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 99, "hi")
			Expect(err).To(MatchError(service.ErrNotParticipant))

			p := f.participantByUser(d.ID, 2)
			p.MoveToObserver(model.CauseDeadlineExpired, 1, false, f.clock.Now())
			Expect(f.participants.Update(ctx, p)).To(Succeed())

			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "hi")
			Expect(err).To(MatchError(service.ErrNotActive))
		})

		It("completes the round when every active participant has posted", func() {
			d, _ := f.seedDiscussion(2, cfg, model.PhaseFreeForm)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())
			f.clock.Advance(35 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "second")
			Expect(err).NotTo(HaveOccurred())

			r := f.currentRound(d.ID)
			Expect(r.Phase).To(Equal(model.PhaseVoting))
			Expect(r.CloseReason).To(HaveValue(Equal(model.CloseReasonComplete)))
			Expect(r.VotingOpenedAt).NotTo(BeNil())

			for _, resp := range f.responses.byID {
				Expect(resp.Locked).To(BeTrue())
			}
		})

		It("accepts the late response that itself completes the round", func() {
			d, _ := f.seedDiscussion(2, cfg, model.PhaseDeadlineRegulated)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "in the window")
			Expect(err).NotTo(HaveOccurred())

			f.clock.Advance(61 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "just past it")
			Expect(err).NotTo(HaveOccurred())

			r := f.currentRound(d.ID)
			Expect(r.Phase).To(Equal(model.PhaseVoting))
			Expect(r.CloseReason).To(HaveValue(Equal(model.CloseReasonComplete)))
		})

		It("settles an expired deadline and rejects a late response that cannot complete the round", func() {
			d, _ := f.seedDiscussion(4, cfg, model.PhaseDeadlineRegulated)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())
			f.clock.Advance(10 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "second")
			Expect(err).NotTo(HaveOccurred())

			f.clock.Advance(61 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 3, "too late")
			Expect(err).To(MatchError(service.ErrDeadlinePassed))

			r := f.currentRound(d.ID)
			Expect(r.CloseReason).To(HaveValue(Equal(model.CloseReasonDeadlineExpired)))
		})

		It("rejects responses to an archived discussion", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseFreeForm)
			Expect(f.discussions.Archive(ctx, d.ID, model.ArchiveReasonMaxDuration, f.clock.Now())).To(Succeed())

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "hello")
			Expect(err).To(MatchError(service.ErrDiscussionArchived))
		})
	})

	Describe("EditResponse", func() {
		var d *model.Discussion

		BeforeEach(func() {
			d, _ = f.seedDiscussion(3, cfg, model.PhaseFreeForm)
			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "the original content of this response")
			Expect(err).NotTo(HaveOccurred())
		})

		responseID := func() int64 {
			for _, resp := range f.responses.byID {
				return resp.ID
			}
			return 0
		}

		It("applies an edit within the budget", func() {
			resp, err := f.services.Rounds().EditResponse(ctx, d.ID, 1, responseID(), "the reworded content of this response")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.EditCount).To(Equal(1))
			Expect(resp.CharsAltered).To(BeNumerically(">", 0))
			Expect(resp.EditedAt).NotTo(BeNil())
		})

		It("rejects edits by anyone but the author", func() {
			_, err := f.services.Rounds().EditResponse(ctx, d.ID, 2, responseID(), "hijacked")
			Expect(err).To(MatchError(service.ErrNotResponseAuthor))
		})

		It("rejects an edit that blows the altered-character budget", func() {
			// Budget is 20% of 2000 = 400 altered characters.
			_, err := f.services.Rounds().EditResponse(ctx, d.ID, 1, responseID(), strings.Repeat("y", 600))
			Expect(err).To(MatchError(service.ErrEditBudgetExceeded))
		})

		It("enforces the edit count limit", func() {
			id := responseID()
			_, err := f.services.Rounds().EditResponse(ctx, d.ID, 1, id, "the original content of this response.")
			Expect(err).NotTo(HaveOccurred())
			_, err = f.services.Rounds().EditResponse(ctx, d.ID, 1, id, "the original content of this response!")
			Expect(err).NotTo(HaveOccurred())
			_, err = f.services.Rounds().EditResponse(ctx, d.ID, 1, id, "the original content of this response?")
			Expect(err).To(MatchError(service.ErrEditLimitReached))
		})

		It("rejects edits to a locked response", func() {
			id := responseID()
			Expect(f.responses.LockByDiscussion(ctx, d.ID)).To(Succeed())

			_, err := f.services.Rounds().EditResponse(ctx, d.ID, 1, id, "after the fact")
			Expect(err).To(MatchError(service.ErrResponseLocked))
		})
	})

	Describe("EvaluateExpiration", func() {
		It("is a no-op while the deadline has not elapsed", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseDeadlineRegulated)

			changed, err := f.services.Rounds().EvaluateExpiration(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("closes an expired round, demotes non-responders, and opens voting", func() {
			d, r := f.seedDiscussion(3, cfg, model.PhaseDeadlineRegulated)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())
			f.clock.Advance(35 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "second")
			Expect(err).NotTo(HaveOccurred())

			r = f.currentRound(d.ID)
			f.clock.Advance(time.Duration(*r.DeadlineMinutes)*time.Minute + time.Minute)

			changed, err := f.services.Rounds().EvaluateExpiration(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())

			r = f.currentRound(d.ID)
			Expect(r.Phase).To(Equal(model.PhaseVoting))
			Expect(r.CloseReason).To(HaveValue(Equal(model.CloseReasonDeadlineExpired)))

			silent := f.participantByUser(d.ID, 3)
			Expect(silent.Role).To(Equal(model.RoleTemporaryObserver))
			Expect(silent.ObserverCause).To(HaveValue(Equal(model.CauseDeadlineExpired)))
			Expect(silent.RemovedInRound).To(HaveValue(Equal(1)))
		})

		It("is idempotent across repeated evaluation", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseDeadlineRegulated)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())
			f.clock.Advance(35 * time.Minute)
			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 2, "second")
			Expect(err).NotTo(HaveOccurred())

			r := f.currentRound(d.ID)
			f.clock.Advance(time.Duration(*r.DeadlineMinutes)*time.Minute + time.Minute)

			changed, err := f.services.Rounds().EvaluateExpiration(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())

			changed, err = f.services.Rounds().EvaluateExpiration(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("archives a discussion whose round expired with one response", func() {
			d, r := f.seedDiscussion(3, cfg, model.PhaseDeadlineRegulated)

			_, err := f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "only one")
			Expect(err).NotTo(HaveOccurred())

			r = f.currentRound(d.ID)
			f.clock.Advance(time.Duration(*r.DeadlineMinutes)*time.Minute + time.Minute)

			changed, err := f.services.Rounds().EvaluateExpiration(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())

			stored := f.discussions.byID[d.ID]
			Expect(stored.Status).To(Equal(model.DiscussionStatusArchived))
			Expect(stored.ArchiveReason).To(HaveValue(Equal(model.ArchiveReasonInsufficientResponses)))
			Expect(f.currentRound(d.ID).Phase).To(Equal(model.PhaseClosed))
		})

		It("archives a free-form round that times out", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseFreeForm)

			f.clock.Advance(31 * 24 * time.Hour)
			changed, err := f.services.Rounds().EvaluateExpiration(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())

			stored := f.discussions.byID[d.ID]
			Expect(stored.Status).To(Equal(model.DiscussionStatusArchived))
			Expect(stored.ArchiveReason).To(HaveValue(Equal(model.ArchiveReasonPhaseOneTimeout)))
		})
	})

	Describe("PhaseInfo", func() {
		It("counts down the responses left before regulation", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseFreeForm)

			info, err := f.services.Rounds().PhaseInfo(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Phase).To(Equal(model.PhaseFreeForm))
			Expect(info.ResponsesNeeded).To(Equal(2))
			Expect(info.DeadlineAt).To(BeNil())

			_, err = f.services.Rounds().SubmitResponse(ctx, d.ID, 1, "first")
			Expect(err).NotTo(HaveOccurred())

			info, err = f.services.Rounds().PhaseInfo(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.ResponsesNeeded).To(Equal(1))
		})

		It("exposes the live deadline window once regulated", func() {
			d, _ := f.seedDiscussion(3, cfg, model.PhaseDeadlineRegulated)

			info, err := f.services.Rounds().PhaseInfo(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Phase).To(Equal(model.PhaseDeadlineRegulated))
			Expect(info.ResponsesNeeded).To(BeZero())
			Expect(info.DeadlineMinutes).To(HaveValue(Equal(60.0)))
			Expect(info.DeadlineAt).To(HaveValue(BeTemporally("==", f.clock.Now().Add(60*time.Minute))))
		})
	})
})
