package ledger

import (
	"context"
	"time"

	"mercator-hq/callisto/pkg/usage"
)

// TrendDays is the length of the daily trend in a Summary.
const TrendDays = 30

// Count pairs a label with an event count.
type Count struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DayCount is the number of events on one calendar day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Summary aggregates a user's usage for dashboards.
type Summary struct {
	UserID       string     `json:"user_id"`
	GeneratedAt  time.Time  `json:"generated_at"`
	Today        int        `json:"today"`
	Week         int        `json:"week"`
	Month        int        `json:"month"`
	Total        int        `json:"total"`
	TotalMinutes int        `json:"total_minutes"`
	NonCompliant int        `json:"non_compliant"`
	ByTool       []Count    `json:"by_tool"`
	ByType       []Count    `json:"by_type"`
	Trend        []DayCount `json:"trend"`
}

// Summary computes counts for today, the rolling week and month, and all
// time, plus per-tool and per-type counts and a 30-day daily trend (oldest
// day first).
func (l *Ledger) Summary(ctx context.Context, userID string) (*Summary, error) {
	now := l.opts.Clock()
	events, err := l.events.EventsForUser(ctx, userID, usage.EventFilter{})
	if err != nil {
		return nil, err
	}

	today := usage.NewWindow(usage.WindowToday, now, l.opts.Location)
	week := usage.NewWindow(usage.WindowWeek, now, l.opts.Location)
	month := usage.NewWindow(usage.WindowMonth, now, l.opts.Location)

	s := &Summary{
		UserID:      userID,
		GeneratedAt: now.UTC(),
		Total:       len(events),
	}

	byTool := make(map[usage.Tool]int)
	byType := make(map[usage.UsageType]int)
	byDay := make(map[string]int)
	for _, e := range events {
		if today.Contains(e.Timestamp) {
			s.Today++
		}
		if week.Contains(e.Timestamp) {
			s.Week++
		}
		if month.Contains(e.Timestamp) {
			s.Month++
		}
		if !e.Compliant {
			s.NonCompliant++
		}
		s.TotalMinutes += e.DurationMinutes
		byTool[e.Tool]++
		byType[e.UsageType]++
		byDay[usage.DayKey(e.Timestamp, l.opts.Location)]++
	}

	s.ByTool = make([]Count, 0, len(usage.Tools))
	for _, tool := range usage.Tools {
		s.ByTool = append(s.ByTool, Count{Key: string(tool), Label: tool.DisplayName(), Count: byTool[tool]})
	}
	s.ByType = make([]Count, 0, len(usage.UsageTypes))
	for _, t := range usage.UsageTypes {
		s.ByType = append(s.ByType, Count{Key: string(t), Label: string(t), Count: byType[t]})
	}

	start := usage.StartOfDay(now, l.opts.Location).AddDate(0, 0, -(TrendDays - 1))
	s.Trend = make([]DayCount, TrendDays)
	for i := range s.Trend {
		day := start.AddDate(0, 0, i).Format(time.DateOnly)
		s.Trend[i] = DayCount{Day: day, Count: byDay[day]}
	}
	return s, nil
}
