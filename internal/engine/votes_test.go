package engine_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agora.app/rounds/internal/engine"
	"agora.app/rounds/internal/model"
)

var _ = Describe("Tally", func() {
	Describe("Outcome", func() {
		It("resolves increase when it strictly exceeds half of eligible voters", func() {
			t := engine.Tally{Increase: 6, NoChange: 2, Decrease: 2, Eligible: 10}
			Expect(t.Outcome()).To(Equal(model.VoteIncrease))
		})

		It("resolves decrease when it strictly exceeds half of eligible voters", func() {
			t := engine.Tally{Increase: 1, NoChange: 2, Decrease: 7, Eligible: 10}
			Expect(t.Outcome()).To(Equal(model.VoteDecrease))
		})

		It("resolves a 50/50 split to no-change", func() {
			t := engine.Tally{Increase: 5, NoChange: 5, Eligible: 10}
			Expect(t.Outcome()).To(Equal(model.VoteNoChange))
		})

		It("resolves a 50/50 split via abstention to no-change", func() {
			// 5 increase, 5 silent: abstentions fold into no-change
			t := engine.Tally{Increase: 5, Eligible: 10}
			Expect(t.Abstained()).To(Equal(5))
			Expect(t.Outcome()).To(Equal(model.VoteNoChange))
		})

		It("counts against eligible voters, not voters who showed up", func() {
			// 3 of 3 cast increase, but 7 more were eligible
			t := engine.Tally{Increase: 3, Eligible: 10}
			Expect(t.Outcome()).To(Equal(model.VoteNoChange))
		})

		It("resolves increase for a bare majority of an odd electorate", func() {
			t := engine.Tally{Increase: 2, Decrease: 1, Eligible: 3}
			Expect(t.Outcome()).To(Equal(model.VoteIncrease))
		})

		It("resolves to no-change with zero eligible voters", func() {
			Expect(engine.Tally{}.Outcome()).To(Equal(model.VoteNoChange))
		})
	})

	Describe("Abstained", func() {
		It("never goes negative", func() {
			t := engine.Tally{Increase: 5, NoChange: 5, Decrease: 5, Eligible: 10}
			Expect(t.Abstained()).To(Equal(0))
		})
	})
})

var _ = Describe("Adjust", func() {
	It("leaves the value untouched on no-change", func() {
		adj := engine.Adjust(2000, model.VoteNoChange, 10, 100, 5000)
		Expect(adj.Value).To(Equal(2000.0))
		Expect(adj.Clamped).To(BeFalse())
	})

	It("applies the configured percentage on increase", func() {
		adj := engine.Adjust(2000, model.VoteIncrease, 10, 100, 5000)
		Expect(adj.Value).To(Equal(2200.0))
		Expect(adj.Previous).To(Equal(2000.0))
	})

	It("applies the configured percentage on decrease", func() {
		adj := engine.Adjust(2000, model.VoteDecrease, 10, 100, 5000)
		Expect(adj.Value).To(Equal(1800.0))
	})

	It("clamps to the upper bound instead of rejecting", func() {
		adj := engine.Adjust(4900, model.VoteIncrease, 10, 100, 5000)
		Expect(adj.Value).To(Equal(5000.0))
		Expect(adj.Clamped).To(BeTrue())
	})

	It("clamps to the lower bound instead of rejecting", func() {
		adj := engine.Adjust(0.5, model.VoteDecrease, 10, 0.5, 2.0)
		Expect(adj.Value).To(Equal(0.5))
		Expect(adj.Clamped).To(BeTrue())
	})
})

var _ = Describe("Removal votes", func() {
	It("removes a target at exactly the threshold", func() {
		// 10 eligible voters, 80% threshold: 8 against removes
		Expect(engine.RemovalCarries(8, 10, 0.8)).To(BeTrue())
	})

	It("does not remove one vote under the threshold", func() {
		Expect(engine.RemovalCarries(7, 10, 0.8)).To(BeFalse())
	})

	It("rounds the needed count up for fractional thresholds", func() {
		// 0.8 * 7 = 5.6 -> 6 votes needed
		Expect(engine.RemovalVotesNeeded(7, 0.8)).To(Equal(6))
		Expect(engine.RemovalCarries(6, 7, 0.8)).To(BeTrue())
		Expect(engine.RemovalCarries(5, 7, 0.8)).To(BeFalse())
	})

	It("never carries with zero eligible voters", func() {
		Expect(engine.RemovalCarries(3, 0, 0.8)).To(BeFalse())
	})
})

var _ = Describe("FreeFormThreshold", func() {
	It("uses the configured value when fewer than invited", func() {
		Expect(engine.FreeFormThreshold(2, 5)).To(Equal(2))
	})

	It("clamps down to the invited participant count", func() {
		Expect(engine.FreeFormThreshold(5, 3)).To(Equal(3))
	})

	It("never drops below one", func() {
		Expect(engine.FreeFormThreshold(0, 0)).To(Equal(1))
	})
})
