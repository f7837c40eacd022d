// Package scoring ranks programmable objects by how much they matter to the
// business: how often they run and how recently.
package scoring

import (
	"math"
	"time"
)

const (
	frequencyWeight = 0.6
	recencyWeight   = 0.4

	// recencyFloor is the recency of an object that never ran, or ran long ago.
	recencyFloor = 0.1
	// recencyWindowDays is the span over which recency decays to the floor.
	recencyWindowDays = 30.0
)

// Importance returns round(ln(executionCount+1)*0.6 + recency*0.4, 2).
// A nil lastExecuted yields the recency floor. A lastExecuted after
// referenceTime yields a recency above 1.0; it is not clamped.
func Importance(executionCount int64, lastExecuted *time.Time, referenceTime time.Time) float64 {
	if executionCount < 0 {
		executionCount = 0
	}
	frequency := math.Log(float64(executionCount) + 1)
	score := frequency*frequencyWeight + Recency(lastExecuted, referenceTime)*recencyWeight
	return Round(score, 2)
}

// Recency decays linearly from 1.0 (ran at referenceTime) to 0.1 over 30
// days. Elapsed time is counted in whole days, rounded down.
func Recency(lastExecuted *time.Time, referenceTime time.Time) float64 {
	if lastExecuted == nil {
		return recencyFloor
	}
	days := DaysBetween(*lastExecuted, referenceTime)
	return math.Max(recencyFloor, 1.0-(float64(days)/recencyWindowDays)*0.9)
}

// DaysBetween counts whole days from since to until, rounding toward
// negative infinity so a timestamp slightly in the future is day -1.
func DaysBetween(since, until time.Time) int {
	return int(math.Floor(until.Sub(since).Hours() / 24))
}

// Round rounds v to the given number of decimal places. Halves go to the
// even neighbour, so 0.125 becomes 0.12 and 0.375 becomes 0.38.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}
