package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/usage"
	"mercator-hq/callisto/pkg/usage/storage"
)

var now = time.Date(2025, 11, 19, 15, 0, 0, 0, time.UTC)

type staticResolver struct{ policy *usage.Policy }

func (r staticResolver) ActivePolicy(ctx context.Context, at time.Time) (*usage.Policy, error) {
	if r.policy != nil && r.policy.ActiveAt(at) {
		return r.policy, nil
	}
	return nil, nil
}

type recordingRegenerator struct {
	mu    sync.Mutex
	calls []string
	fail  int
	block chan struct{}
}

func (r *recordingRegenerator) Generate(ctx context.Context, userID string) ([]*usage.Insight, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID)
	if r.fail > 0 {
		r.fail--
		return nil, errors.New("boom")
	}
	return nil, nil
}

func (r *recordingRegenerator) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func testPolicy(daily, weekly int) *usage.Policy {
	return &usage.Policy{
		ID:             "pol-1",
		Title:          "Course policy",
		Version:        "1",
		Status:         usage.PolicyActive,
		EffectiveFrom:  now.AddDate(0, -1, 0),
		MaxDailyUsage:  daily,
		MaxWeeklyUsage: weekly,
	}
}

func newLedger(t *testing.T, p *usage.Policy) (*Ledger, *storage.MemoryStorage, *recordingRegenerator) {
	t.Helper()
	store := storage.NewMemoryStorage()
	regen := &recordingRegenerator{}
	d := NewDispatcher(regen, DispatcherConfig{}, nil, nil)
	l := New(store, staticResolver{policy: p}, d, Options{
		Clock: func() time.Time { return now },
	})
	return l, store, regen
}

func validRequest() RecordRequest {
	return RecordRequest{
		UserID:          "student-1",
		Tool:            usage.ToolChatGPT,
		UsageType:       usage.UsageDebugging,
		Description:     "  fixing a segfault  ",
		CourseCode:      "CS101",
		Citation:        "ChatGPT, 2025",
		DurationMinutes: 15,
		TokensUsed:      800,
	}
}

func TestRecord(t *testing.T) {
	l, store, regen := newLedger(t, testPolicy(5, 20))
	ctx := context.Background()

	event, err := l.Record(ctx, validRequest())
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	if event.ID == "" {
		t.Error("expected generated id")
	}
	if !event.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", event.Timestamp, now)
	}
	if usage.StringValue(event.PolicyID) != "pol-1" {
		t.Errorf("PolicyID = %v, want pol-1", event.PolicyID)
	}
	if !event.Compliant {
		t.Errorf("expected compliant event, note %q", event.ComplianceNote)
	}
	if event.Description != "fixing a segfault" {
		t.Errorf("Description = %q, want trimmed", event.Description)
	}

	stored, err := store.EventsForUser(ctx, "student-1", usage.EventFilter{})
	if err != nil {
		t.Fatalf("EventsForUser() failed: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != event.ID {
		t.Fatalf("stored events = %v, want the recorded event", stored)
	}

	if calls := regen.Calls(); len(calls) != 1 || calls[0] != "student-1" {
		t.Errorf("regeneration calls = %v, want [student-1]", calls)
	}
}

func TestRecord_ExplicitTimestamp(t *testing.T) {
	l, _, _ := newLedger(t, testPolicy(5, 20))

	req := validRequest()
	req.Timestamp = now.Add(-48 * time.Hour)
	event, err := l.Record(context.Background(), req)
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if !event.Timestamp.Equal(req.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", event.Timestamp, req.Timestamp)
	}

	// Within the allowed clock skew.
	req.Timestamp = now.Add(2 * time.Minute)
	if _, err := l.Record(context.Background(), req); err != nil {
		t.Errorf("Record() with small skew failed: %v", err)
	}
}

func TestRecord_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RecordRequest)
		field  string
	}{
		{"missing user", func(r *RecordRequest) { r.UserID = " " }, "user_id"},
		{"unknown tool", func(r *RecordRequest) { r.Tool = "bard" }, "tool"},
		{"empty tool", func(r *RecordRequest) { r.Tool = "" }, "tool"},
		{"unknown usage type", func(r *RecordRequest) { r.UsageType = "homework" }, "usage_type"},
		{"negative duration", func(r *RecordRequest) { r.DurationMinutes = -1 }, "duration_minutes"},
		{"negative tokens", func(r *RecordRequest) { r.TokensUsed = -5 }, "tokens_used"},
		{"long description", func(r *RecordRequest) { r.Description = strings.Repeat("x", 2001) }, "description"},
		{"future timestamp", func(r *RecordRequest) { r.Timestamp = now.Add(time.Hour) }, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store, regen := newLedger(t, testPolicy(5, 20))
			req := validRequest()
			tt.mutate(&req)

			_, err := l.Record(context.Background(), req)
			if !errors.Is(err, usage.ErrInvalid) {
				t.Fatalf("Record() error = %v, want ErrInvalid", err)
			}
			var verr *usage.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("error field = %v, want %q", err, tt.field)
			}

			stored, _ := store.EventsForUser(context.Background(), "student-1", usage.EventFilter{})
			if len(stored) != 0 {
				t.Errorf("expected nothing stored, got %d events", len(stored))
			}
			if len(regen.Calls()) != 0 {
				t.Error("expected no regeneration for rejected event")
			}
		})
	}
}

func TestRecord_DailyLimitFlagsEvent(t *testing.T) {
	l, _, _ := newLedger(t, testPolicy(2, 0))
	ctx := context.Background()

	var events []*usage.Event
	for i := 0; i < 3; i++ {
		req := validRequest()
		req.Timestamp = now.Add(time.Duration(i-3) * time.Minute)
		e, err := l.Record(ctx, req)
		if err != nil {
			t.Fatalf("Record() %d failed: %v", i, err)
		}
		events = append(events, e)
	}

	if !events[0].Compliant || !events[1].Compliant {
		t.Error("expected the first two events to be compliant")
	}
	if events[2].Compliant {
		t.Error("expected the third event to be flagged")
	}
	if !strings.Contains(events[2].ComplianceNote, "daily limit of 2") {
		t.Errorf("ComplianceNote = %q", events[2].ComplianceNote)
	}
}

func TestRecord_WeeklyLimitFlagsEvent(t *testing.T) {
	l, _, _ := newLedger(t, testPolicy(0, 2))
	ctx := context.Background()

	var last *usage.Event
	for i := 0; i < 3; i++ {
		req := validRequest()
		req.Timestamp = now.AddDate(0, 0, i-3)
		e, err := l.Record(ctx, req)
		if err != nil {
			t.Fatalf("Record() %d failed: %v", i, err)
		}
		last = e
	}

	if last.Compliant {
		t.Error("expected third event in the week to be flagged")
	}
	if !strings.Contains(last.ComplianceNote, "weekly limit of 2") {
		t.Errorf("ComplianceNote = %q", last.ComplianceNote)
	}
}

func TestRecord_NoActivePolicy(t *testing.T) {
	l, _, _ := newLedger(t, nil)

	event, err := l.Record(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if event.PolicyID != nil {
		t.Errorf("PolicyID = %q, want nil", *event.PolicyID)
	}
	if !event.Compliant {
		t.Error("events without a policy are compliant")
	}
}

func TestEventsFor(t *testing.T) {
	store := storage.NewMemoryStorage()
	l := New(store, staticResolver{}, nil, Options{
		Clock:               func() time.Time { return now },
		DefaultHistoryLimit: 3,
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		req := validRequest()
		req.Timestamp = now.Add(-time.Duration(i) * time.Hour)
		if i == 4 {
			req.Tool = usage.ToolClaude
		}
		if _, err := l.Record(ctx, req); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter usage.EventFilter
		want   int
	}{
		{"default limit", usage.EventFilter{}, 3},
		{"all", usage.EventFilter{Limit: -1}, 5},
		{"by tool", usage.EventFilter{Tool: usage.ToolClaude}, 1},
		{"window", usage.EventFilter{Window: usage.RangeWindow(now.Add(-150*time.Minute), now.Add(time.Minute)), Limit: -1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := l.EventsFor(ctx, "student-1", tt.filter)
			if err != nil {
				t.Fatalf("EventsFor() failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}

	events, _ := l.EventsFor(ctx, "student-1", usage.EventFilter{Limit: -1})
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.After(events[i-1].Timestamp) {
			t.Fatal("events are not newest first")
		}
	}
}

func TestEventsFor_InvalidFilter(t *testing.T) {
	l, _, _ := newLedger(t, nil)
	ctx := context.Background()

	filters := []usage.EventFilter{
		{Tool: "bard"},
		{UsageType: "homework"},
		{Window: usage.RangeWindow(now, now.Add(-time.Hour))},
	}
	for _, f := range filters {
		if _, err := l.EventsFor(ctx, "student-1", f); !errors.Is(err, usage.ErrInvalid) {
			t.Errorf("EventsFor(%+v) error = %v, want ErrInvalid", f, err)
		}
	}
}

func TestSummary(t *testing.T) {
	l, _, _ := newLedger(t, nil)
	ctx := context.Background()

	offsets := []time.Duration{
		-time.Hour,           // today
		-2 * time.Hour,       // today
		-3 * 24 * time.Hour,  // week
		-20 * 24 * time.Hour, // month
		-60 * 24 * time.Hour, // older
	}
	for i, off := range offsets {
		req := validRequest()
		req.Timestamp = now.Add(off)
		if i == 0 {
			req.Tool = usage.ToolCopilot
			req.UsageType = usage.UsageLearning
		}
		if _, err := l.Record(ctx, req); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	s, err := l.Summary(ctx, "student-1")
	if err != nil {
		t.Fatalf("Summary() failed: %v", err)
	}

	if s.Today != 2 || s.Week != 3 || s.Month != 4 || s.Total != 5 {
		t.Errorf("counts = today %d week %d month %d total %d, want 2/3/4/5", s.Today, s.Week, s.Month, s.Total)
	}
	if s.TotalMinutes != 75 {
		t.Errorf("TotalMinutes = %d, want 75", s.TotalMinutes)
	}

	counts := make(map[string]int)
	for _, c := range s.ByTool {
		counts[c.Key] = c.Count
	}
	if counts["chatgpt"] != 4 || counts["copilot"] != 1 || counts["gemini"] != 0 {
		t.Errorf("ByTool = %+v", s.ByTool)
	}
	if len(s.ByTool) != len(usage.Tools) || len(s.ByType) != len(usage.UsageTypes) {
		t.Error("expected an entry for every tool and usage type")
	}

	if len(s.Trend) != TrendDays {
		t.Fatalf("len(Trend) = %d, want %d", len(s.Trend), TrendDays)
	}
	last := s.Trend[TrendDays-1]
	if last.Day != "2025-11-19" || last.Count != 2 {
		t.Errorf("last trend day = %+v, want 2025-11-19 with 2", last)
	}
	if s.Trend[0].Day != "2025-10-21" {
		t.Errorf("first trend day = %s, want 2025-10-21", s.Trend[0].Day)
	}
}

func TestSummary_NoEvents(t *testing.T) {
	l, _, _ := newLedger(t, nil)

	s, err := l.Summary(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Summary() failed: %v", err)
	}
	if s.Total != 0 || len(s.Trend) != TrendDays {
		t.Errorf("unexpected summary %+v", s)
	}
}
