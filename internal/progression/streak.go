package progression

import "time"

// StreakResult is the outcome of applying one qualifying action day to a
// user's streak counters. The caller persists it together with the new
// last-active date.
type StreakResult struct {
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// UpdateStreak computes the new streak counters for an action happening on
// `today`. Dates are compared on calendar-day boundaries (UTC midnight), so a
// second action on the same day never inflates the streak and the longest
// streak never decreases.
func UpdateStreak(lastActive *time.Time, currentStreak, longestStreak int, today time.Time) StreakResult {
	if lastActive == nil {
		return StreakResult{
			CurrentStreak: 1,
			LongestStreak: max(1, longestStreak),
		}
	}

	days := daysBetween(*lastActive, today)

	switch {
	case days == 0:
		return StreakResult{CurrentStreak: currentStreak, LongestStreak: longestStreak}
	case days == 1:
		newStreak := currentStreak + 1
		return StreakResult{
			CurrentStreak: newStreak,
			LongestStreak: max(newStreak, longestStreak),
		}
	default:
		return StreakResult{CurrentStreak: 1, LongestStreak: longestStreak}
	}
}

// StartOfDay normalizes t to UTC midnight.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
}
