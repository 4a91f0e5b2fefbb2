package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/callisto/pkg/compliance"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/export"
	"mercator-hq/callisto/pkg/feedback"
	"mercator-hq/callisto/pkg/insights"
	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/server/handlers"
	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/telemetry/health"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
	"mercator-hq/callisto/pkg/usage/storage"
)

type testEnv struct {
	handler http.Handler
	store   *storage.MemoryStorage
}

func newTestEnv(t *testing.T, daily int) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	policies := policy.NewStore(store, nil)
	if daily > 0 {
		_, err := policies.Create(ctx, &usage.Policy{
			Title:          "Course policy",
			Version:        "1",
			Status:         usage.PolicyActive,
			EffectiveFrom:  time.Now().AddDate(0, -1, 0),
			MaxDailyUsage:  daily,
			MaxWeeklyUsage: daily * 5,
		})
		if err != nil {
			t.Fatalf("Create() policy failed: %v", err)
		}
	}

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, prometheus.NewRegistry())
	evaluator := compliance.NewEvaluator(store, store, policies, compliance.Options{Metrics: collector})
	generator := insights.NewGenerator(store, store, policies, evaluator, insights.Options{Metrics: collector})
	dispatcher := ledger.NewDispatcher(generator, ledger.DispatcherConfig{}, collector, nil)
	l := ledger.New(store, policies, dispatcher, ledger.Options{Metrics: collector})

	checker := health.New(time.Second, "test")
	checker.RegisterCheck("storage", health.StorageCheck(store))

	cfg := config.DefaultConfig()
	srv := New(&cfg.Server, Options{
		API: handlers.NewAPI(handlers.Deps{
			Ledger:    l,
			Evaluator: evaluator,
			Policies:  policies,
			Insights:  insights.NewService(store, nil),
			Feedback:  feedback.NewService(store, nil),
			Export:    export.NewService(store, nil),
		}),
		Health:  checker,
		Metrics: collector,
	})
	return &testEnv{handler: srv.Handler(), store: store}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("Marshal() failed: %v", err)
			}
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set(middleware.DefaultUserHeader, user)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return v
}

func usageBody() map[string]any {
	return map[string]any{
		"tool":             "claude",
		"usage_type":       "debugging",
		"description":      "tracking down a nil map write",
		"course_code":      "CS101",
		"citation":         "Claude, 2025",
		"duration_minutes": 20,
	}
}

func TestUsage_RecordAndList(t *testing.T) {
	env := newTestEnv(t, 5)

	w := env.do(t, http.MethodPost, "/v1/usage", "student-1", usageBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /v1/usage = %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	event := decode[usage.Event](t, w)
	if event.UserID != "student-1" || event.PolicyID == nil || !event.Compliant {
		t.Errorf("unexpected event %+v", event)
	}

	w = env.do(t, http.MethodGet, "/v1/usage?window=today", "student-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/usage = %d: %s", w.Code, w.Body.String())
	}
	list := decode[handlers.EventsResponse](t, w)
	if list.Count != 1 || list.Events[0].ID != event.ID {
		t.Errorf("unexpected list %+v", list)
	}

	w = env.do(t, http.MethodGet, "/v1/usage", "student-2", nil)
	if other := decode[handlers.EventsResponse](t, w); other.Count != 0 || other.Events == nil {
		t.Errorf("student-2 sees %+v, want an empty list", other)
	}
}

func TestUsage_RecordTriggersInsights(t *testing.T) {
	env := newTestEnv(t, 5)
	if w := env.do(t, http.MethodPost, "/v1/usage", "student-1", usageBody()); w.Code != http.StatusCreated {
		t.Fatalf("POST /v1/usage = %d", w.Code)
	}

	snaps, err := env.store.Snapshots(context.Background(), "student-1", 0)
	if err != nil {
		t.Fatalf("Snapshots() failed: %v", err)
	}
	if len(snaps) != 1 || snaps[0].WindowKind != usage.WindowToday {
		t.Errorf("expected one today snapshot from regeneration, got %d", len(snaps))
	}
}

func TestUsage_Errors(t *testing.T) {
	env := newTestEnv(t, 5)

	tests := []struct {
		name     string
		method   string
		path     string
		user     string
		body     any
		status   int
		errType  string
		errParam string
	}{
		{"missing identity", http.MethodPost, "/v1/usage", "", usageBody(), http.StatusUnauthorized, middleware.ErrorTypeAuthentication, ""},
		{"unknown tool", http.MethodPost, "/v1/usage", "u", map[string]any{"tool": "bard", "usage_type": "learning"}, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, "tool"},
		{"negative duration", http.MethodPost, "/v1/usage", "u", map[string]any{"tool": "claude", "usage_type": "learning", "duration_minutes": -3}, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, "duration_minutes"},
		{"malformed json", http.MethodPost, "/v1/usage", "u", "{not json", http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, ""},
		{"unknown field", http.MethodPost, "/v1/usage", "u", map[string]any{"tool": "claude", "usage_type": "learning", "user_id": "someone-else"}, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, ""},
		{"bad window", http.MethodGet, "/v1/usage?window=year", "u", nil, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, "window"},
		{"range without end", http.MethodGet, "/v1/usage?window=range&start=2025-11-01", "u", nil, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, "end"},
		{"bad limit", http.MethodGet, "/v1/usage?limit=-1", "u", nil, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.user, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			resp := decode[middleware.ErrorResponse](t, w)
			if resp.Error.Type != tt.errType {
				t.Errorf("error type = %q, want %q", resp.Error.Type, tt.errType)
			}
			if resp.Error.Param != tt.errParam {
				t.Errorf("error param = %q, want %q", resp.Error.Param, tt.errParam)
			}
		})
	}
}

func TestUsage_RangeWindow(t *testing.T) {
	env := newTestEnv(t, 5)
	env.do(t, http.MethodPost, "/v1/usage", "u", usageBody())

	start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w := env.do(t, http.MethodGet, "/v1/usage?window=range&start="+start+"&end="+end, "u", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode[handlers.EventsResponse](t, w); got.Count != 1 {
		t.Errorf("count = %d, want 1", got.Count)
	}
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, 5)
	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/v1/usage", "u", usageBody())
	}

	w := env.do(t, http.MethodGet, "/v1/summary", "u", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	s := decode[ledger.Summary](t, w)
	if s.Today != 3 || s.Total != 3 || len(s.Trend) != ledger.TrendDays {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestCompliance(t *testing.T) {
	env := newTestEnv(t, 2)
	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/v1/usage", "u", usageBody())
	}

	w := env.do(t, http.MethodGet, "/v1/compliance?window=today", "u", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	snap := decode[usage.Snapshot](t, w)
	if snap.EventCount != 3 || snap.Threshold != 2 || snap.Score != 50 || snap.Level != usage.LevelWarning {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	before, _ := env.store.Snapshots(context.Background(), "u", 0)
	env.do(t, http.MethodGet, "/v1/compliance", "u", nil)
	after, _ := env.store.Snapshots(context.Background(), "u", 0)
	if len(after) != len(before) {
		t.Error("GET /v1/compliance must not store snapshots")
	}

	w = env.do(t, http.MethodGet, "/v1/compliance/history", "u", nil)
	history := decode[handlers.HistoryResponse](t, w)
	if len(history.Snapshots) != 3 {
		t.Errorf("history has %d snapshots, want 3 (one per regeneration)", len(history.Snapshots))
	}
}

func TestCompliance_NoPolicy(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodPost, "/v1/usage", "u", usageBody())

	snap := decode[usage.Snapshot](t, env.do(t, http.MethodGet, "/v1/compliance", "u", nil))
	if snap.Score != 100 || snap.Level != usage.LevelCompliant || snap.PolicyID != nil {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	active := decode[handlers.ActivePolicyResponse](t, env.do(t, http.MethodGet, "/v1/policies/active", "u", nil))
	if active.Policy != nil {
		t.Errorf("expected no active policy, got %+v", active.Policy)
	}
}

func TestActivePolicy(t *testing.T) {
	env := newTestEnv(t, 5)
	active := decode[handlers.ActivePolicyResponse](t, env.do(t, http.MethodGet, "/v1/policies/active", "u", nil))
	if active.Policy == nil || active.Policy.MaxDailyUsage != 5 {
		t.Errorf("unexpected active policy %+v", active.Policy)
	}
}

func TestInsights_ReadAndDismiss(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	for _, in := range []*usage.Insight{
		{ID: "mine", UserID: "student-1", Kind: usage.InsightPattern, Priority: usage.PriorityLow, Template: "a", CreatedAt: time.Now()},
		{ID: "other", UserID: "student-1", Kind: usage.InsightWarning, Priority: usage.PriorityHigh, Template: "b", CreatedAt: time.Now()},
	} {
		if err := env.store.InsertInsight(ctx, in); err != nil {
			t.Fatalf("InsertInsight() failed: %v", err)
		}
	}

	list := decode[handlers.InsightsResponse](t, env.do(t, http.MethodGet, "/v1/insights", "student-1", nil))
	if len(list.Insights) != 2 || list.Insights[0].ID != "other" {
		t.Fatalf("unexpected insights %+v", list.Insights)
	}

	w := env.do(t, http.MethodPost, "/v1/insights/mine/read", "student-2", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-owner read = %d, want 403", w.Code)
	}
	w = env.do(t, http.MethodPost, "/v1/insights/missing/dismiss", "student-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing dismiss = %d, want 404", w.Code)
	}

	for i := 0; i < 2; i++ {
		w = env.do(t, http.MethodPost, "/v1/insights/mine/dismiss", "student-1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("dismiss = %d: %s", w.Code, w.Body.String())
		}
	}
	if in := decode[usage.Insight](t, w); !in.Dismissed {
		t.Error("insight not dismissed")
	}

	all := decode[handlers.InsightsResponse](t, env.do(t, http.MethodGet, "/v1/insights?state=all", "student-1", nil))
	if len(all.Insights) != 2 {
		t.Errorf("state=all returned %d, want 2", len(all.Insights))
	}

	n := decode[handlers.MarkAllReadResponse](t, env.do(t, http.MethodPost, "/v1/insights/read-all", "student-1", nil))
	if n.Updated != 1 {
		t.Errorf("read-all updated %d, want 1", n.Updated)
	}

	if w := env.do(t, http.MethodGet, "/v1/insights?state=bogus", "student-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad state = %d, want 400", w.Code)
	}
}

func TestFeedback(t *testing.T) {
	env := newTestEnv(t, 5)

	w := env.do(t, http.MethodPost, "/v1/feedback", "u", map[string]any{
		"kind":        "feature",
		"title":       "Weekly email digest",
		"description": "Send me my weekly summary.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /v1/feedback = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/v1/feedback", "u", map[string]any{"kind": "feature"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid feedback = %d, want 400", w.Code)
	}

	list := decode[handlers.FeedbackResponse](t, env.do(t, http.MethodGet, "/v1/feedback", "u", nil))
	if len(list.Feedback) != 1 || list.Feedback[0].Status != usage.FeedbackNew {
		t.Errorf("unexpected feedback list %+v", list.Feedback)
	}
}

func TestExportAndDelete(t *testing.T) {
	env := newTestEnv(t, 5)
	env.do(t, http.MethodPost, "/v1/usage", "u", usageBody())

	w := env.do(t, http.MethodGet, "/v1/export", "u", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/export = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	doc := decode[export.Document](t, w)
	if doc.UserID != "u" || len(doc.UsageEvents) != 1 || len(doc.ComplianceSnapshots) != 1 {
		t.Errorf("unexpected export %+v", doc)
	}

	w = env.do(t, http.MethodGet, "/v1/export?format=csv", "u", nil)
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("CSV has %d rows, want header and one event", len(rows))
	}

	if w := env.do(t, http.MethodGet, "/v1/export?format=xml", "u", nil); w.Code != http.StatusBadRequest {
		t.Errorf("format=xml = %d, want 400", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/v1/data", "u", nil); w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /v1/data = %d", w.Code)
	}
	doc = decode[export.Document](t, env.do(t, http.MethodGet, "/v1/export", "u", nil))
	if len(doc.UsageEvents) != 0 || len(doc.ComplianceSnapshots) != 0 {
		t.Errorf("data left after delete: %+v", doc)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, 5)
	env.do(t, http.MethodPost, "/v1/usage", "u", usageBody())

	for _, path := range []string{"/health", "/ready"} {
		if w := env.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200 without identity", path, w.Code)
		}
	}

	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"test_usage_events_recorded_total", "test_http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, 5)
	if w := env.do(t, http.MethodPut, "/v1/usage", "u", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /v1/usage = %d, want 405", w.Code)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1:0"
	srv := New(&cfg.Server, Options{Health: health.New(time.Second, "test")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == nil {
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if srv.IsRunning() {
		t.Error("server still running after shutdown")
	}
}
