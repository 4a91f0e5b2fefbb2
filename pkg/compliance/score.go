package compliance

import (
	"math"
	"time"

	"mercator-hq/callisto/pkg/usage"
)

// Score maps an event count and a threshold to a score in [0, 100].
// A threshold of 0 or less means no limit.
func Score(count, threshold int) int {
	if threshold <= 0 {
		return 100
	}
	excess := count - threshold
	if excess <= 0 {
		return 100
	}
	penalty := (100*excess + threshold - 1) / threshold
	if penalty >= 100 {
		return 0
	}
	return 100 - penalty
}

// Threshold returns the event threshold a policy sets for a window. It
// returns 0, meaning no limit, for a nil policy and for unbounded windows.
func Threshold(p *usage.Policy, w usage.Window, now time.Time) int {
	if p == nil {
		return 0
	}
	switch w.Kind {
	case usage.WindowToday:
		return p.MaxDailyUsage
	case usage.WindowWeek:
		return p.MaxWeeklyUsage
	case usage.WindowMonth:
		return prorate(p.MaxWeeklyUsage, 30)
	case usage.WindowRange:
		days := w.Days(now)
		if days <= 1 {
			return p.MaxDailyUsage
		}
		return prorate(p.MaxWeeklyUsage, days)
	}
	return 0
}

func prorate(weekly, days int) int {
	return int(math.Ceil(float64(weekly) * float64(days) / 7))
}
