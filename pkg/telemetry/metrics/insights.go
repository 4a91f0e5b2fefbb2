package metrics

import (
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// InsightMetrics tracks insight generation and retention.
type InsightMetrics struct {
	generatedTotal       *prometheus.CounterVec
	regenerationDuration prometheus.Histogram
	regenerationFailures prometheus.Counter
	prunedTotal          prometheus.Counter
	queueDepth           prometheus.Gauge
}

// NewInsightMetrics creates and registers insight metrics.
func NewInsightMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *InsightMetrics {
	im := &InsightMetrics{
		generatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "insights_generated_total",
				Help:      "Total number of insights created",
			},
			[]string{"kind", "priority"},
		),
		regenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "insight_regeneration_duration_seconds",
			Help:      "Duration of per-user insight regeneration in seconds",
			Buckets:   cfg.DurationBuckets,
		}),
		regenerationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "insight_regeneration_failures_total",
			Help:      "Total number of failed insight regenerations",
		}),
		prunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "insights_pruned_total",
			Help:      "Total number of insights deleted by retention",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "insight_queue_depth",
			Help:      "Number of insight regenerations waiting for a worker",
		}),
	}

	registry.MustRegister(
		im.generatedTotal,
		im.regenerationDuration,
		im.regenerationFailures,
		im.prunedTotal,
		im.queueDepth,
	)
	return im
}

// RecordGenerated counts a new insight.
func (im *InsightMetrics) RecordGenerated(kind, priority string) {
	im.generatedTotal.WithLabelValues(kind, priority).Inc()
}

// RecordRegeneration observes a regeneration run and counts failures.
func (im *InsightMetrics) RecordRegeneration(duration time.Duration, err error) {
	im.regenerationDuration.Observe(duration.Seconds())
	if err != nil {
		im.regenerationFailures.Inc()
	}
}

// RecordPruned counts pruned insights.
func (im *InsightMetrics) RecordPruned(n int64) {
	im.prunedTotal.Add(float64(n))
}

// SetQueueDepth sets the regeneration queue depth.
func (im *InsightMetrics) SetQueueDepth(depth int) {
	im.queueDepth.Set(float64(depth))
}
