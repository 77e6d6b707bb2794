package progression

import "math"

// Streak multiplier ladder, highest threshold first.
var multiplierLadder = []struct {
	minStreak  int
	multiplier float64
}{
	{30, 2.00},
	{14, 1.50},
	{7, 1.25},
	{3, 1.10},
}

// CalculatePoints converts a base point value into the awarded value using
// the streak multiplier. Thresholds are inclusive and the first match wins.
// Results are rounded half away from zero (math.Round).
func CalculatePoints(basePoints, userStreak int) int {
	return int(math.Round(float64(basePoints) * StreakMultiplier(userStreak)))
}

// StreakMultiplier returns the multiplier for a streak length.
func StreakMultiplier(userStreak int) float64 {
	for _, step := range multiplierLadder {
		if userStreak >= step.minStreak {
			return step.multiplier
		}
	}
	return 1.0
}
