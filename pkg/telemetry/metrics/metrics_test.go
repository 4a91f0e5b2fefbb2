package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:         true,
		Namespace:       "test",
		Subsystem:       "usage",
		DurationBuckets: []float64{0.001, 0.01, 0.1, 1},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.Registry() != registry {
		t.Error("collector registry not set correctly")
	}

	defaulted := NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	if defaulted.config.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("namespace = %q, want default", defaulted.config.Namespace)
	}
	if len(defaulted.config.DurationBuckets) == 0 {
		t.Error("duration buckets not defaulted")
	}
}

func TestCollector_RecordEvent(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordEvent("claude", "debugging", true)
	collector.RecordEvent("claude", "debugging", true)
	collector.RecordEvent("chatgpt", "research", false)
	collector.RecordRejectedEvent("duration_minutes")
	collector.RecordRejectedEvent("")

	if got := testutil.ToFloat64(collector.ledgerMetrics.eventsTotal.WithLabelValues("claude", "debugging", "true")); got != 2 {
		t.Errorf("claude events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ledgerMetrics.eventsTotal.WithLabelValues("chatgpt", "research", "false")); got != 1 {
		t.Errorf("chatgpt events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ledgerMetrics.rejectedTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("rejected unknown = %v, want 1", got)
	}
}

func TestCollector_RecordEvaluation(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	tests := []struct {
		window string
		level  string
	}{
		{"today", "compliant"},
		{"week", "warning"},
		{"week", "warning"},
		{"month", "violation"},
	}
	for _, tt := range tests {
		collector.RecordEvaluation(tt.window, tt.level, 2*time.Millisecond)
	}

	if got := testutil.ToFloat64(collector.complianceMetrics.evaluationsTotal.WithLabelValues("week", "warning")); got != 2 {
		t.Errorf("week warnings = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(collector.complianceMetrics.evaluationDuration); got != 3 {
		t.Errorf("duration series = %d, want 3", got)
	}

	collector.RecordSweep(10, 1)
	if got := testutil.ToFloat64(collector.complianceMetrics.sweepUsers); got != 10 {
		t.Errorf("sweep users = %v, want 10", got)
	}
	if got := testutil.ToFloat64(collector.complianceMetrics.sweepLastRun); got == 0 {
		t.Error("sweep last run not set")
	}
}

func TestCollector_Insights(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordInsight("achievement", "low")
	collector.RecordRegeneration(time.Millisecond, nil)
	collector.RecordRegeneration(time.Millisecond, errors.New("boom"))
	collector.RecordInsightsPruned(4)
	collector.SetRegenerationQueueDepth(3)

	if got := testutil.ToFloat64(collector.insightMetrics.generatedTotal.WithLabelValues("achievement", "low")); got != 1 {
		t.Errorf("generated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.insightMetrics.regenerationFailures); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.insightMetrics.prunedTotal); got != 4 {
		t.Errorf("pruned = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.insightMetrics.queueDepth); got != 3 {
		t.Errorf("queue depth = %v, want 3", got)
	}
}

func TestCollector_Policy(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordPolicySync(2, 1, nil)
	collector.RecordPolicySync(0, 0, errors.New("bad file"))
	collector.RecordPolicyResolution("ambiguous")

	if got := testutil.ToFloat64(collector.policyMetrics.syncsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed syncs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.policyMetrics.changesTotal.WithLabelValues("created")); got != 2 {
		t.Errorf("created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.policyMetrics.resolutionsTotal.WithLabelValues("ambiguous")); got != 1 {
		t.Errorf("ambiguous = %v, want 1", got)
	}
}

func TestCollector_HTTPRouteLimit(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.routeLimiter = NewCardinalityLimiter(1)

	collector.RecordHTTPRequest("GET", "/v1/usage", 200, time.Millisecond)
	collector.RecordHTTPRequest("GET", "/nope", 404, time.Millisecond)

	if got := testutil.ToFloat64(collector.httpMetrics.requestsTotal.WithLabelValues("GET", "/v1/usage", "200")); got != 1 {
		t.Errorf("usage requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.httpMetrics.requestsTotal.WithLabelValues("GET", "other", "404")); got != 1 {
		t.Errorf("overflow requests = %v, want 1", got)
	}
}

func TestCollector_DisabledAndNil(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, nil)

	collector.RecordEvent("claude", "debugging", true)
	if got := testutil.ToFloat64(collector.ledgerMetrics.eventsTotal.WithLabelValues("claude", "debugging", "true")); got != 0 {
		t.Errorf("disabled collector recorded %v events", got)
	}

	var nilCollector *Collector
	nilCollector.RecordEvent("claude", "debugging", true)
	nilCollector.RecordEvaluation("today", "compliant", time.Millisecond)
	nilCollector.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordEvent("gemini", "learning", true)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_usage_events_recorded_total") {
		t.Error("scrape output does not contain events_recorded_total")
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)
	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("first two label sets should be allowed")
	}
	if cl.Allow("c") {
		t.Error("third label set should be rejected")
	}
	if !cl.Allow("a") {
		t.Error("known label set should stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("count = %d, want 2", cl.Count())
	}
}
