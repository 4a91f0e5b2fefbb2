package usage

import (
	"fmt"
	"math"
	"time"
)

// WindowKind names a standard query window.
type WindowKind string

const (
	WindowToday WindowKind = "today"
	WindowWeek  WindowKind = "week"
	WindowMonth WindowKind = "month"
	WindowAll   WindowKind = "all"
	WindowRange WindowKind = "range"
)

// ParseWindowKind parses a window name. An empty string yields WindowToday.
func ParseWindowKind(s string) (WindowKind, error) {
	switch WindowKind(s) {
	case "":
		return WindowToday, nil
	case WindowToday, WindowWeek, WindowMonth, WindowAll, WindowRange:
		return WindowKind(s), nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// Window is a half-open time range [Start, End). A zero Start means no
// lower bound and a zero End means no upper bound.
type Window struct {
	Kind  WindowKind
	Start time.Time
	End   time.Time
}

// NewWindow builds a standard window relative to now. Calendar-day
// boundaries are computed in loc; a nil loc means UTC.
//
// WindowRange cannot be built here, use RangeWindow.
func NewWindow(kind WindowKind, now time.Time, loc *time.Location) Window {
	switch kind {
	case WindowToday:
		start := StartOfDay(now, loc)
		return Window{Kind: kind, Start: start, End: start.AddDate(0, 0, 1)}
	case WindowWeek:
		return Window{Kind: kind, Start: now.Add(-7 * 24 * time.Hour)}
	case WindowMonth:
		return Window{Kind: kind, Start: now.Add(-30 * 24 * time.Hour)}
	default:
		return Window{Kind: WindowAll}
	}
}

// RangeWindow returns an arbitrary [start, end) window.
func RangeWindow(start, end time.Time) Window {
	return Window{Kind: WindowRange, Start: start, End: end}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Days returns the window length in whole days, rounded up. Unbounded
// windows return 0.
func (w Window) Days(now time.Time) int {
	if w.Start.IsZero() {
		return 0
	}
	end := w.End
	if end.IsZero() {
		end = now
	}
	if !end.After(w.Start) {
		return 0
	}
	return int(math.Ceil(end.Sub(w.Start).Hours() / 24))
}

// Validate checks that a range window is well formed.
func (w Window) Validate() error {
	if w.Kind == WindowRange {
		if w.Start.IsZero() || w.End.IsZero() {
			return fmt.Errorf("range window requires both start and end")
		}
		if !w.End.After(w.Start) {
			return fmt.Errorf("range window end %s is not after start %s",
				w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
		}
	}
	return nil
}

// StartOfDay truncates t to midnight in loc (UTC when loc is nil).
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayKey formats t as the calendar day in loc, e.g. "2025-11-19".
func DayKey(t time.Time, loc *time.Location) string {
	return StartOfDay(t, loc).Format(time.DateOnly)
}
