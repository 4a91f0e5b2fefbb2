package retention

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
	"mercator-hq/callisto/pkg/usage/storage"
)

var now = time.Date(2025, 11, 19, 3, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestPrune(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	insights := []*usage.Insight{
		{ID: "fresh", Kind: usage.InsightPattern, Template: "a"},
		{ID: "dismissed-recent", Kind: usage.InsightPattern, Template: "b", Dismissed: true, DismissedAt: ptr(now.AddDate(0, 0, -5))},
		{ID: "dismissed-old", Kind: usage.InsightPattern, Template: "c", Dismissed: true, DismissedAt: ptr(now.AddDate(0, 0, -45))},
		{ID: "expired", Kind: usage.InsightWarning, Template: "d", ExpiresAt: ptr(now.Add(-time.Hour))},
		{ID: "not-expired", Kind: usage.InsightWarning, Template: "e", ExpiresAt: ptr(now.Add(time.Hour))},
		{ID: "achievement", Kind: usage.InsightAchievement, Template: "f", Dismissed: true, DismissedAt: ptr(now.AddDate(0, 0, -90))},
	}
	for _, in := range insights {
		in.UserID = "student-1"
		in.Priority = usage.PriorityLow
		in.CreatedAt = now.AddDate(0, 0, -100)
		if err := store.InsertInsight(ctx, in); err != nil {
			t.Fatalf("InsertInsight(%s) failed: %v", in.ID, err)
		}
	}

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, prometheus.NewRegistry())
	p := NewPruner(store, Config{DismissedDays: 30}, collector, nil)
	p.now = func() time.Time { return now }

	deleted, err := p.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted %d, want 2", deleted)
	}

	left, _ := store.InsightsForUser(ctx, "student-1", usage.InsightFilter{State: usage.InsightsAll})
	ids := make(map[string]bool)
	for _, in := range left {
		ids[in.ID] = true
	}
	for _, want := range []string{"fresh", "dismissed-recent", "not-expired", "achievement"} {
		if !ids[want] {
			t.Errorf("insight %s was pruned", want)
		}
	}
	for _, gone := range []string{"dismissed-old", "expired"} {
		if ids[gone] {
			t.Errorf("insight %s was kept", gone)
		}
	}

	expected := `
# HELP test_usage_insights_pruned_total Total number of insights deleted by retention
# TYPE test_usage_insights_pruned_total counter
test_usage_insights_pruned_total 2
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_usage_insights_pruned_total"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestPrune_KeepDismissedForever(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	if err := store.InsertInsight(ctx, &usage.Insight{
		ID: "old", UserID: "u", Kind: usage.InsightPattern, Priority: usage.PriorityLow, Template: "x",
		Dismissed: true, DismissedAt: ptr(now.AddDate(-1, 0, 0)),
	}); err != nil {
		t.Fatalf("InsertInsight() failed: %v", err)
	}

	p := NewPruner(store, Config{}, nil, nil)
	p.now = func() time.Time { return now }

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	left, _ := store.InsightsForUser(ctx, "u", usage.InsightFilter{State: usage.InsightsAll})
	if len(left) != 1 {
		t.Errorf("expected dismissed insight to be kept, %d left", len(left))
	}
}
