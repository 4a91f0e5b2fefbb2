package metrics

import (
	"sync"
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every Prometheus metric exported by Callisto.
//
// All Record methods are safe on a nil *Collector and on a collector whose
// configuration has metrics disabled; both make them no-ops. Services take
// an optional collector and call it unconditionally.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	ledgerMetrics     *LedgerMetrics
	complianceMetrics *ComplianceMetrics
	insightMetrics    *InsightMetrics
	policyMetrics     *PolicyMetrics
	httpMetrics       *HTTPMetrics

	// Route labels are bounded by the router, but requests that match no
	// route would otherwise add one series per path.
	routeLimiter *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh private one.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
	}

	c := &Collector{
		config:       cfg,
		registry:     registry,
		routeLimiter: NewCardinalityLimiter(200),
	}

	c.ledgerMetrics = NewLedgerMetrics(cfg, registry)
	c.complianceMetrics = NewComplianceMetrics(cfg, registry)
	c.insightMetrics = NewInsightMetrics(cfg, registry)
	c.policyMetrics = NewPolicyMetrics(cfg, registry)
	c.httpMetrics = NewHTTPMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordEvent counts a persisted usage event.
func (c *Collector) RecordEvent(tool, usageType string, compliant bool) {
	if !c.enabled() {
		return
	}
	c.ledgerMetrics.RecordEvent(tool, usageType, compliant)
}

// RecordRejectedEvent counts a usage event rejected by validation.
func (c *Collector) RecordRejectedEvent(field string) {
	if !c.enabled() {
		return
	}
	c.ledgerMetrics.RecordRejected(field)
}

// RecordEvaluation records one compliance evaluation.
//
// Parameters:
//   - window: window kind evaluated ("today", "week", ...)
//   - level: resulting compliance level
//   - duration: time spent counting events and checking rules
func (c *Collector) RecordEvaluation(window, level string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.complianceMetrics.RecordEvaluation(window, level, duration)
}

// RecordSweep records a finished compliance sweep over users.
func (c *Collector) RecordSweep(users, failures int) {
	if !c.enabled() {
		return
	}
	c.complianceMetrics.RecordSweep(users, failures)
}

// RecordInsight counts a newly persisted insight.
func (c *Collector) RecordInsight(kind, priority string) {
	if !c.enabled() {
		return
	}
	c.insightMetrics.RecordGenerated(kind, priority)
}

// RecordRegeneration records one insight regeneration run.
func (c *Collector) RecordRegeneration(duration time.Duration, err error) {
	if !c.enabled() {
		return
	}
	c.insightMetrics.RecordRegeneration(duration, err)
}

// RecordInsightsPruned counts insights removed by the retention job.
func (c *Collector) RecordInsightsPruned(n int64) {
	if !c.enabled() {
		return
	}
	c.insightMetrics.RecordPruned(n)
}

// SetRegenerationQueueDepth reports the number of queued regenerations.
func (c *Collector) SetRegenerationQueueDepth(depth int) {
	if !c.enabled() {
		return
	}
	c.insightMetrics.SetQueueDepth(depth)
}

// RecordPolicySync records a policy file sync.
func (c *Collector) RecordPolicySync(created, transitioned int, err error) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordSync(created, transitioned, err)
}

// RecordPolicyResolution records an active-policy lookup.
// result is "found", "none" or "ambiguous".
func (c *Collector) RecordPolicyResolution(result string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordResolution(result)
}

// RecordHTTPRequest records a served API request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	if !c.routeLimiter.Allow(method + " " + route) {
		route = "other"
	}
	c.httpMetrics.RecordRequest(method, route, status, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct label sets admitted for a
// metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// label sets.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits under the
// limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
