package insights

import (
	"fmt"
	"math"
	"time"

	"mercator-hq/callisto/pkg/usage"
)

// history is the input every rule sees.
type history struct {
	userID   string
	now      time.Time
	loc      *time.Location
	events   []*usage.Event // newest first
	snapshot *usage.Snapshot
	policy   *usage.Policy
}

// dailyCounts counts events per calendar day in loc.
func (h *history) dailyCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range h.events {
		counts[usage.DayKey(e.Timestamp, h.loc)]++
	}
	return counts
}

func (g *Generator) patternRule(h *history) *usage.Insight {
	since := h.now.Add(-30 * 24 * time.Hour)
	byTool := make(map[usage.Tool][]string)
	total := 0
	for _, e := range h.events {
		if e.Timestamp.Before(since) || e.Timestamp.After(h.now) {
			continue
		}
		byTool[e.Tool] = append(byTool[e.Tool], e.ID)
		total++
	}
	if total < g.opts.PatternMinEvents {
		return nil
	}

	var dominant usage.Tool
	for _, tool := range usage.Tools {
		if len(byTool[tool]) > len(byTool[dominant]) {
			dominant = tool
		}
	}
	share := float64(len(byTool[dominant])) / float64(total)
	if share <= g.opts.PatternThreshold {
		return nil
	}

	percent := int(math.Round(share * 100))
	return &usage.Insight{
		Kind:     usage.InsightPattern,
		Priority: usage.PriorityLow,
		Title:    fmt.Sprintf("You mostly use %s", dominant.DisplayName()),
		Message: fmt.Sprintf("%d%% of your AI sessions in the last 30 days used %s. "+
			"Comparing answers across tools can help you judge their quality.",
			percent, dominant.DisplayName()),
		Template:      "pattern:dominant_tool:" + string(dominant),
		RelatedEvents: capIDs(byTool[dominant]),
		Data: map[string]any{
			"tool":         string(dominant),
			"share":        percent,
			"tool_events":  len(byTool[dominant]),
			"total_events": total,
		},
	}
}

func (g *Generator) complianceRule(h *history) *usage.Insight {
	snap := h.snapshot
	if snap == nil {
		return nil
	}

	in := &usage.Insight{
		Kind:     usage.InsightCompliance,
		Template: "compliance:" + string(snap.Level),
		Data: map[string]any{
			"snapshot_id": snap.ID,
			"score":       snap.Score,
			"event_count": snap.EventCount,
			"threshold":   snap.Threshold,
			"details":     snap.ViolationDetails,
		},
	}
	switch snap.Level {
	case usage.LevelViolation:
		in.Priority = usage.PriorityHigh
		in.Title = "Usage policy violation"
		in.Message = fmt.Sprintf("You logged %d AI sessions today against a limit of %d (score %d). "+
			"Review the course policy before using AI tools again today.",
			snap.EventCount, snap.Threshold, snap.Score)
	case usage.LevelWarning:
		in.Priority = usage.PriorityMedium
		in.Title = "Approaching the usage limit"
		in.Message = fmt.Sprintf("You logged %d AI sessions today against a limit of %d (score %d).",
			snap.EventCount, snap.Threshold, snap.Score)
	default:
		return nil
	}
	return in
}

// streakRule fires when each of the last StreakDays days, today included,
// has at least one event.
func (g *Generator) streakRule(h *history) *usage.Insight {
	counts := h.dailyCounts()
	today := usage.StartOfDay(h.now, h.loc)

	streak := 0
	for day := today; counts[day.Format(time.DateOnly)] > 0; day = day.AddDate(0, 0, -1) {
		streak++
	}
	if streak < g.opts.StreakDays {
		return nil
	}

	start := today.AddDate(0, 0, -(streak - 1)).Format(time.DateOnly)
	return &usage.Insight{
		Kind:     usage.InsightAchievement,
		Priority: usage.PriorityLow,
		Title:    fmt.Sprintf("%d-day logging streak", g.opts.StreakDays),
		Message: fmt.Sprintf("You have logged your AI usage every day for %d days. "+
			"Consistent logging keeps your record accurate.", streak),
		Template: fmt.Sprintf("achievement:streak:%d:%s", g.opts.StreakDays, start),
		Data: map[string]any{
			"streak_days": streak,
			"start_day":   start,
		},
	}
}

// milestoneRule proposes the highest milestone the total event count has
// reached. Regeneration may cover several events at once, so the count can
// pass a milestone without landing on it; dedup keeps it from repeating.
func (g *Generator) milestoneRule(h *history) *usage.Insight {
	total := len(h.events)
	reached := 0
	for _, m := range g.opts.Milestones {
		if m > reached && m <= total {
			reached = m
		}
	}
	if reached == 0 {
		return nil
	}
	return &usage.Insight{
		Kind:          usage.InsightAchievement,
		Priority:      usage.PriorityMedium,
		Title:         fmt.Sprintf("%d sessions logged", reached),
		Message:       fmt.Sprintf("You have recorded %d AI sessions. Thank you for keeping an honest log.", reached),
		Template:      fmt.Sprintf("achievement:milestone:%d", reached),
		RelatedEvents: capIDs([]string{h.events[0].ID}),
		Data:          map[string]any{"milestone": reached},
	}
}

// warningRule fires when the daily limit was exceeded on WarningDays or
// more of the last WarningLookbackDays days.
func (g *Generator) warningRule(h *history) *usage.Insight {
	if h.policy == nil || h.policy.MaxDailyUsage <= 0 {
		return nil
	}

	counts := h.dailyCounts()
	today := usage.StartOfDay(h.now, h.loc)
	var overDays []string
	for i := 0; i < g.opts.WarningLookbackDays; i++ {
		day := today.AddDate(0, 0, -i).Format(time.DateOnly)
		if counts[day] > h.policy.MaxDailyUsage {
			overDays = append(overDays, day)
		}
	}
	if len(overDays) < g.opts.WarningDays {
		return nil
	}

	return &usage.Insight{
		Kind:     usage.InsightWarning,
		Priority: usage.PriorityHigh,
		Title:    "Repeatedly over the daily limit",
		Message: fmt.Sprintf("You exceeded the daily limit of %d sessions on %d of the last %d days. "+
			"Plan your AI use so it stays within the course policy.",
			h.policy.MaxDailyUsage, len(overDays), g.opts.WarningLookbackDays),
		Template: "warning:daily_limit_exceeded",
		Data: map[string]any{
			"policy_id":  h.policy.ID,
			"daily_max":  h.policy.MaxDailyUsage,
			"days_over":  overDays,
			"days_total": g.opts.WarningLookbackDays,
		},
	}
}

// maxRelatedEvents bounds the references stored on one insight.
const maxRelatedEvents = 50

func capIDs(ids []string) []string {
	if len(ids) > maxRelatedEvents {
		ids = ids[:maxRelatedEvents]
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
