package usage

import (
	"testing"
	"time"
)

func TestNewWindow(t *testing.T) {
	now := time.Date(2025, 11, 19, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		kind      WindowKind
		wantStart time.Time
		wantEnd   time.Time
	}{
		{WindowToday, time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC), time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)},
		{WindowWeek, now.Add(-7 * 24 * time.Hour), time.Time{}},
		{WindowMonth, now.Add(-30 * 24 * time.Hour), time.Time{}},
		{WindowAll, time.Time{}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			w := NewWindow(tt.kind, now, time.UTC)
			if !w.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", w.Start, tt.wantStart)
			}
			if !w.End.Equal(tt.wantEnd) {
				t.Errorf("End = %v, want %v", w.End, tt.wantEnd)
			}
			if !w.Contains(now) {
				t.Errorf("window %s does not contain now", tt.kind)
			}
		})
	}
}

func TestNewWindow_TodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 02:00 UTC on the 20th is still the 19th in UTC-5.
	now := time.Date(2025, 11, 20, 2, 0, 0, 0, time.UTC)

	w := NewWindow(WindowToday, now, loc)
	if got := DayKey(w.Start, loc); got != "2025-11-19" {
		t.Errorf("today in UTC-5 = %s, want 2025-11-19", got)
	}
	if w.Contains(time.Date(2025, 11, 19, 4, 59, 0, 0, time.UTC)) {
		t.Error("04:59 UTC is the previous local day and must be excluded")
	}
}

func TestWindow_ContainsIsHalfOpen(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	w := RangeWindow(start, end)

	if !w.Contains(start) {
		t.Error("start must be included")
	}
	if w.Contains(end) {
		t.Error("end must be excluded")
	}
	if w.Contains(start.Add(-time.Nanosecond)) {
		t.Error("instant before start must be excluded")
	}
}

func TestWindow_Days(t *testing.T) {
	now := time.Date(2025, 11, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		w    Window
		want int
	}{
		{"today", NewWindow(WindowToday, now, time.UTC), 1},
		{"week", NewWindow(WindowWeek, now, time.UTC), 7},
		{"month", NewWindow(WindowMonth, now, time.UTC), 30},
		{"all", NewWindow(WindowAll, now, time.UTC), 0},
		{"partial day rounds up", RangeWindow(now, now.Add(25*time.Hour)), 2},
	}
	for _, tt := range tests {
		if got := tt.w.Days(now); got != tt.want {
			t.Errorf("%s: Days() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestWindow_Validate(t *testing.T) {
	now := time.Now()
	if err := RangeWindow(now, now).Validate(); err == nil {
		t.Error("empty range should be invalid")
	}
	if err := RangeWindow(time.Time{}, now).Validate(); err == nil {
		t.Error("open range should be invalid")
	}
	if err := RangeWindow(now, now.Add(time.Hour)).Validate(); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
}

func TestParseWindowKind(t *testing.T) {
	if k, err := ParseWindowKind(""); err != nil || k != WindowToday {
		t.Errorf("ParseWindowKind(\"\") = %v, %v; want today", k, err)
	}
	if _, err := ParseWindowKind("fortnight"); err == nil {
		t.Error("ParseWindowKind(fortnight) should fail")
	}
}
