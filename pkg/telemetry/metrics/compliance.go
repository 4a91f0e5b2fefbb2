package metrics

import (
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ComplianceMetrics tracks compliance evaluations and sweeps.
//
// Metrics:
//   - callisto_usage_evaluations_total{window,level}
//   - callisto_usage_evaluation_duration_seconds{window}
//   - callisto_usage_sweep_users_total
//   - callisto_usage_sweep_failures_total
//   - callisto_usage_sweep_last_run_timestamp_seconds
type ComplianceMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	sweepUsers         prometheus.Counter
	sweepFailures      prometheus.Counter
	sweepLastRun       prometheus.Gauge
}

// NewComplianceMetrics creates and registers compliance metrics.
func NewComplianceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ComplianceMetrics {
	cm := &ComplianceMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of compliance evaluations by resulting level",
			},
			[]string{"window", "level"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of compliance evaluations in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"window"},
		),
		sweepUsers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "sweep_users_total",
			Help:      "Total number of users evaluated by the periodic sweep",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "sweep_failures_total",
			Help:      "Total number of per-user evaluation failures during sweeps",
		}),
		sweepLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "sweep_last_run_timestamp_seconds",
			Help:      "Unix time of the last completed compliance sweep",
		}),
	}

	registry.MustRegister(
		cm.evaluationsTotal,
		cm.evaluationDuration,
		cm.sweepUsers,
		cm.sweepFailures,
		cm.sweepLastRun,
	)
	return cm
}

// RecordEvaluation records one evaluation.
func (cm *ComplianceMetrics) RecordEvaluation(window, level string, duration time.Duration) {
	cm.evaluationsTotal.WithLabelValues(window, level).Inc()
	cm.evaluationDuration.WithLabelValues(window).Observe(duration.Seconds())
}

// RecordSweep records the outcome of a sweep.
func (cm *ComplianceMetrics) RecordSweep(users, failures int) {
	cm.sweepUsers.Add(float64(users))
	cm.sweepFailures.Add(float64(failures))
	cm.sweepLastRun.SetToCurrentTime()
}
