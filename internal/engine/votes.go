package engine

import (
	"math"

	"agora.app/rounds/internal/model"
)

// Tally summarizes one parameter's votes against the fixed eligible-voter
// count. Abstain is derived, never stored: every eligible voter who cast no
// choice counts as no-change.
type Tally struct {
	Increase int
	NoChange int
	Decrease int
	Eligible int
}

// Abstained returns the number of eligible voters with no recorded choice.
func (t Tally) Abstained() int {
	n := t.Eligible - t.Increase - t.NoChange - t.Decrease
	if n < 0 {
		return 0
	}
	return n
}

// Outcome resolves the tally. An adjustment carries only when that choice
// strictly exceeds half of the eligible voters; abstentions fold into
// no-change, and every tie (including an exact 50/50 split) resolves to
// no-change.
func (t Tally) Outcome() model.VoteChoice {
	if t.Eligible <= 0 {
		return model.VoteNoChange
	}
	half := float64(t.Eligible) / 2
	if float64(t.Increase) > half {
		return model.VoteIncrease
	}
	if float64(t.Decrease) > half {
		return model.VoteDecrease
	}
	return model.VoteNoChange
}

// Adjustment is the applied result of a resolved parameter vote.
type Adjustment struct {
	Outcome  model.VoteChoice
	Previous float64
	Value    float64
	Clamped  bool
}

// Adjust applies a resolved outcome to a parameter value, moving it by
// percent (0-100) and clamping to [min, max]. Exceeding a bound clamps
// rather than rejects; the Clamped flag reports it in the outcome.
func Adjust(current float64, outcome model.VoteChoice, percent, min, max float64) Adjustment {
	adj := Adjustment{Outcome: outcome, Previous: current, Value: current}
	if outcome == model.VoteNoChange {
		return adj
	}

	factor := 1 + percent/100
	if outcome == model.VoteDecrease {
		factor = 1 - percent/100
	}
	adj.Value = current * factor

	if adj.Value < min {
		adj.Value = min
		adj.Clamped = true
	}
	if adj.Value > max {
		adj.Value = max
		adj.Clamped = true
	}
	return adj
}

// RemovalVotesNeeded returns the ballot count at which a target is removed:
// the smallest integer >= threshold (0-1) of the eligible voter count.
func RemovalVotesNeeded(eligible int, threshold float64) int {
	if eligible <= 0 {
		return 1
	}
	return int(math.Ceil(threshold * float64(eligible)))
}

// RemovalCarries reports whether votes against a target meet the
// super-majority threshold of eligible voters.
func RemovalCarries(votes, eligible int, threshold float64) bool {
	return eligible > 0 && votes >= RemovalVotesNeeded(eligible, threshold)
}
