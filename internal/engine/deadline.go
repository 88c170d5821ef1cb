// Package engine holds the pure decision logic of the round lifecycle:
// deadline recomputation, vote resolution, observer reentry and discussion
// termination. Nothing here touches storage or clocks; callers pass in the
// state and the current time, and apply whatever comes back.
package engine

import "sort"

// Deadline computes the maximum response period, in minutes, from a set of
// historical response intervals.
//
// Every interval is clamped up to the minimum response time before taking
// the median; the result is the median times the pacing multiplier. An empty
// interval set yields the floor minResponseTime * multiplier, which is also
// the smallest value any non-empty set can produce.
func Deadline(intervals []float64, minResponseTime, multiplier float64) float64 {
	if len(intervals) == 0 {
		return minResponseTime * multiplier
	}

	clamped := make([]float64, len(intervals))
	for i, v := range intervals {
		if v < minResponseTime {
			v = minResponseTime
		}
		clamped[i] = v
	}

	return median(clamped) * multiplier
}

// median returns the middle value of the set, averaging the two middle
// values for even-sized sets. The input slice is sorted in place.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// DeadlineDelta reports a recomputation result so callers can emit both the
// previous and the new value. Previous is nil for the first computation of
// a round.
type DeadlineDelta struct {
	Previous *float64
	Current  float64
}

// Recompute wraps Deadline with the previous value so deltas are reportable.
func Recompute(previous *float64, intervals []float64, minResponseTime, multiplier float64) DeadlineDelta {
	return DeadlineDelta{
		Previous: previous,
		Current:  Deadline(intervals, minResponseTime, multiplier),
	}
}
