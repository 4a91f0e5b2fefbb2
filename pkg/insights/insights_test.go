package insights

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/compliance"
	"mercator-hq/callisto/pkg/usage"
	"mercator-hq/callisto/pkg/usage/storage"
)

type staticResolver struct{ policy *usage.Policy }

func (r staticResolver) ActivePolicy(ctx context.Context, at time.Time) (*usage.Policy, error) {
	return r.policy, nil
}

type fixture struct {
	store *storage.MemoryStorage
	gen   *Generator
	now   time.Time
	seq   int
}

func newFixture(t *testing.T, policy *usage.Policy) *fixture {
	t.Helper()
	f := &fixture{
		store: storage.NewMemoryStorage(),
		now:   time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	resolver := staticResolver{policy: policy}
	evaluator := compliance.NewEvaluator(f.store, f.store, resolver, compliance.Options{Clock: clock})
	f.gen = NewGenerator(f.store, f.store, resolver, evaluator, Options{Clock: clock, TTL: 24 * time.Hour})
	return f
}

func (f *fixture) record(t *testing.T, tool usage.Tool, at time.Time) {
	t.Helper()
	f.seq++
	e := &usage.Event{
		ID:        fmt.Sprintf("evt-%03d", f.seq),
		UserID:    "alice",
		Tool:      tool,
		UsageType: usage.UsageLearning,
		Timestamp: at,
		CreatedAt: at,
	}
	if err := f.store.InsertEvent(context.Background(), e); err != nil {
		t.Fatalf("InsertEvent() failed: %v", err)
	}
}

func (f *fixture) generate(t *testing.T) []*usage.Insight {
	t.Helper()
	created, err := f.gen.Generate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	return created
}

func countKind(insights []*usage.Insight, kind usage.InsightKind) int {
	n := 0
	for _, in := range insights {
		if in.Kind == kind {
			n++
		}
	}
	return n
}

func dailyPolicy(max int) *usage.Policy {
	return &usage.Policy{ID: "pol-1", Status: usage.PolicyActive, MaxDailyUsage: max, MaxWeeklyUsage: max * 7}
}

func TestGenerate_FirstEvent(t *testing.T) {
	f := newFixture(t, dailyPolicy(5))
	f.record(t, usage.ToolChatGPT, f.now)

	created := f.generate(t)
	if len(created) != 0 {
		t.Errorf("first event created %d insights: %+v", len(created), created[0])
	}

	snap, _ := f.store.LatestSnapshot(context.Background(), "alice")
	if snap == nil || snap.WindowKind != usage.WindowToday || snap.EventCount != 1 {
		t.Errorf("fresh today snapshot not stored: %+v", snap)
	}
}

func TestGenerate_NoHistory(t *testing.T) {
	f := newFixture(t, nil)
	if created := f.generate(t); len(created) != 0 {
		t.Errorf("no history created %d insights", len(created))
	}
}

func TestGenerate_SevenDayStreak(t *testing.T) {
	f := newFixture(t, nil)
	start := f.now

	for day := 1; day <= 8; day++ {
		f.now = start.AddDate(0, 0, day-1)
		f.record(t, usage.ToolClaude, f.now)
		created := f.generate(t)

		got := countKind(created, usage.InsightAchievement)
		want := 0
		if day == 7 {
			want = 1
		}
		if got != want {
			t.Errorf("day %d: %d achievements created, want %d", day, got, want)
		}
	}

	all, _ := f.store.InsightsForUser(context.Background(), "alice", usage.InsightFilter{State: usage.InsightsAll})
	if countKind(all, usage.InsightAchievement) != 1 {
		t.Errorf("stored achievements = %d, want 1", countKind(all, usage.InsightAchievement))
	}
}

func TestGenerate_StreakNotRecreatedAfterDismiss(t *testing.T) {
	f := newFixture(t, nil)
	start := f.now
	for day := 0; day < 7; day++ {
		f.now = start.AddDate(0, 0, day)
		f.record(t, usage.ToolClaude, f.now)
	}
	created := f.generate(t)
	if countKind(created, usage.InsightAchievement) != 1 {
		t.Fatalf("expected a streak achievement, got %+v", created)
	}

	svc := NewService(f.store, nil)
	for _, in := range created {
		if _, err := svc.Dismiss(context.Background(), in.ID, "alice"); err != nil {
			t.Fatalf("Dismiss() failed: %v", err)
		}
	}

	f.now = f.now.Add(time.Hour)
	f.record(t, usage.ToolClaude, f.now)
	again := f.generate(t)
	if countKind(again, usage.InsightAchievement) != 0 {
		t.Error("dismissed streak achievement was recreated")
	}
	if countKind(again, usage.InsightPattern) != 1 {
		t.Error("dismissed pattern insight should be recreated while the pattern holds")
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	f := newFixture(t, dailyPolicy(1))
	for i := 0; i < 6; i++ {
		f.record(t, usage.ToolChatGPT, f.now.Add(-time.Duration(i)*time.Minute))
	}

	first := f.generate(t)
	if len(first) == 0 {
		t.Fatal("expected insights on the first run")
	}
	if second := f.generate(t); len(second) != 0 {
		t.Errorf("second run created %d insights", len(second))
	}
}

func TestGenerate_ComplianceWarningAndOrder(t *testing.T) {
	f := newFixture(t, dailyPolicy(1))
	for day := 0; day < 3; day++ {
		for i := 0; i < 3; i++ {
			f.record(t, usage.ToolChatGPT, f.now.AddDate(0, 0, -day).Add(-time.Duration(i)*time.Minute))
		}
	}

	created := f.generate(t)
	if len(created) != 3 {
		t.Fatalf("created %d insights, want 3: %+v", len(created), created)
	}

	wantOrder := []struct {
		kind     usage.InsightKind
		priority usage.Priority
	}{
		{usage.InsightCompliance, usage.PriorityHigh},
		{usage.InsightWarning, usage.PriorityHigh},
		{usage.InsightPattern, usage.PriorityLow},
	}
	for i, want := range wantOrder {
		if created[i].Kind != want.kind || created[i].Priority != want.priority {
			t.Errorf("insight %d = %s/%s, want %s/%s", i, created[i].Kind, created[i].Priority, want.kind, want.priority)
		}
	}
	if created[2].ExpiresAt == nil || !created[2].ExpiresAt.Equal(f.now.Add(24*time.Hour)) {
		t.Errorf("pattern insight expiry = %v", created[2].ExpiresAt)
	}
}

func TestGenerate_WarningWhileCompliantToday(t *testing.T) {
	f := newFixture(t, dailyPolicy(1))
	for day := 1; day <= 3; day++ {
		for i := 0; i < 2; i++ {
			f.record(t, usage.ToolChatGPT, f.now.AddDate(0, 0, -day).Add(-time.Duration(i)*time.Minute))
		}
	}
	f.record(t, usage.ToolChatGPT, f.now)

	created := f.generate(t)
	if n := countKind(created, usage.InsightCompliance); n != 0 {
		t.Errorf("created %d compliance insights for a compliant day, want 0", n)
	}
	if n := countKind(created, usage.InsightWarning); n != 1 {
		t.Fatalf("created %d warning insights, want 1: %+v", n, created)
	}
	for _, in := range created {
		if in.Kind == usage.InsightWarning && (in.Priority != usage.PriorityHigh || in.Template != "warning:daily_limit_exceeded") {
			t.Errorf("warning = %s/%s, want high warning:daily_limit_exceeded", in.Priority, in.Template)
		}
	}

	snap, _ := f.store.LatestSnapshot(context.Background(), "alice")
	if snap == nil || snap.Level != usage.LevelCompliant {
		t.Errorf("today's snapshot = %+v, want compliant", snap)
	}
}

func TestGenerate_ComplianceWarningLevel(t *testing.T) {
	f := newFixture(t, dailyPolicy(4))
	for i := 0; i < 5; i++ {
		tool := usage.ToolChatGPT
		if i%2 == 0 {
			tool = usage.ToolGemini
		}
		f.record(t, tool, f.now.Add(-time.Duration(i)*time.Minute))
	}

	// 5 events against 4: score 75, warning.
	created := f.generate(t)
	if len(created) != 1 || created[0].Kind != usage.InsightCompliance || created[0].Priority != usage.PriorityMedium {
		t.Errorf("created = %+v, want one medium compliance insight", created)
	}
}

func TestGenerate_Milestone(t *testing.T) {
	f := newFixture(t, nil)
	tools := []usage.Tool{usage.ToolChatGPT, usage.ToolClaude, usage.ToolGemini, usage.ToolCopilot}
	for i := 0; i < 10; i++ {
		f.record(t, tools[i%len(tools)], f.now.Add(-time.Duration(i)*time.Minute))
	}

	created := f.generate(t)
	if len(created) != 1 || created[0].Template != "achievement:milestone:10" || created[0].Priority != usage.PriorityMedium {
		t.Fatalf("created = %+v, want the 10-event milestone", created)
	}
	if created[0].ExpiresAt != nil {
		t.Error("achievements must not expire")
	}
}

func TestGenerate_MilestonePassedBetweenRuns(t *testing.T) {
	f := newFixture(t, nil)
	tools := []usage.Tool{usage.ToolChatGPT, usage.ToolClaude, usage.ToolGemini, usage.ToolCopilot}
	for i := 0; i < 9; i++ {
		f.record(t, tools[i%len(tools)], f.now.Add(-time.Duration(i)*time.Minute))
	}
	if created := f.generate(t); countKind(created, usage.InsightAchievement) != 0 {
		t.Fatalf("9 events created an achievement: %+v", created)
	}

	// Two events land before the next regeneration: 9 -> 11.
	f.record(t, usage.ToolClaude, f.now.Add(-20*time.Minute))
	f.record(t, usage.ToolGemini, f.now.Add(-21*time.Minute))
	created := f.generate(t)
	if len(created) != 1 || created[0].Template != "achievement:milestone:10" {
		t.Fatalf("created = %+v, want the 10-event milestone", created)
	}

	f.record(t, usage.ToolCopilot, f.now.Add(-22*time.Minute))
	if again := f.generate(t); countKind(again, usage.InsightAchievement) != 0 {
		t.Errorf("milestone awarded twice: %+v", again)
	}
}

func TestService_MarkReadAndDismiss(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	in := &usage.Insight{
		ID: "ins-1", UserID: "alice", Kind: usage.InsightPattern, Priority: usage.PriorityLow,
		Template: "pattern:dominant_tool:chatgpt", RelatedEvents: []string{}, CreatedAt: time.Now(),
	}
	if err := store.InsertInsight(ctx, in); err != nil {
		t.Fatalf("InsertInsight() failed: %v", err)
	}
	svc := NewService(store, nil)

	_, err := svc.MarkRead(ctx, "ins-1", "mallory")
	var authErr *usage.AuthorizationError
	if !errors.As(err, &authErr) || !errors.Is(err, usage.ErrUnauthorized) {
		t.Fatalf("MarkRead() by non-owner error = %v, want AuthorizationError", err)
	}
	if got, _ := store.GetInsight(ctx, "ins-1"); got.Read {
		t.Error("non-owner mutation changed state")
	}

	if _, err := svc.Dismiss(ctx, "missing", "alice"); !errors.Is(err, usage.ErrNotFound) {
		t.Errorf("Dismiss() missing error = %v, want not found", err)
	}

	first, err := svc.Dismiss(ctx, "ins-1", "alice")
	if err != nil || !first.Dismissed || first.DismissedAt == nil {
		t.Fatalf("Dismiss() = %+v, %v", first, err)
	}
	second, err := svc.Dismiss(ctx, "ins-1", "alice")
	if err != nil {
		t.Fatalf("second Dismiss() failed: %v", err)
	}
	if !second.DismissedAt.Equal(*first.DismissedAt) {
		t.Error("second Dismiss() changed dismissed_at")
	}

	active, _ := svc.List(ctx, "alice", usage.InsightFilter{})
	if len(active) != 0 {
		t.Errorf("active insights = %d, want 0", len(active))
	}
	all, _ := svc.List(ctx, "alice", usage.InsightFilter{State: usage.InsightsAll})
	if len(all) != 1 {
		t.Errorf("all insights = %d, want 1", len(all))
	}
	if _, err := svc.List(ctx, "alice", usage.InsightFilter{State: "bogus"}); !errors.Is(err, usage.ErrInvalid) {
		t.Errorf("List() bogus state error = %v", err)
	}
}

func TestService_MarkAllRead(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	for i, tmpl := range []string{"a", "b", "c"} {
		in := &usage.Insight{
			ID: fmt.Sprintf("ins-%d", i), UserID: "alice", Kind: usage.InsightWarning,
			Priority: usage.PriorityHigh, Template: tmpl, RelatedEvents: []string{}, CreatedAt: time.Now(),
		}
		if err := store.InsertInsight(ctx, in); err != nil {
			t.Fatalf("InsertInsight() failed: %v", err)
		}
	}
	svc := NewService(store, nil)
	if _, err := svc.MarkRead(ctx, "ins-0", "alice"); err != nil {
		t.Fatalf("MarkRead() failed: %v", err)
	}

	n, err := svc.MarkAllRead(ctx, "alice")
	if err != nil || n != 2 {
		t.Errorf("MarkAllRead() = %d, %v; want 2", n, err)
	}
	visible, _ := svc.List(ctx, "alice", usage.InsightFilter{State: usage.InsightsVisible})
	for _, in := range visible {
		if !in.Read {
			t.Errorf("insight %s still unread", in.ID)
		}
	}
}
