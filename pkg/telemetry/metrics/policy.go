package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks policy file syncs and active-policy resolution.
//
// Metrics:
//   - callisto_usage_policy_syncs_total{status}
//   - callisto_usage_policy_changes_total{change}
//   - callisto_usage_policy_resolutions_total{result}
type PolicyMetrics struct {
	syncsTotal       *prometheus.CounterVec
	changesTotal     *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		syncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_syncs_total",
				Help:      "Total number of policy file syncs",
			},
			[]string{"status"},
		),
		changesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_changes_total",
				Help:      "Total number of policies created or transitioned by syncs",
			},
			[]string{"change"},
		),
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_resolutions_total",
				Help:      "Total number of active policy lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(pm.syncsTotal, pm.changesTotal, pm.resolutionsTotal)
	return pm
}

// RecordSync records one sync and the changes it applied.
func (pm *PolicyMetrics) RecordSync(created, transitioned int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pm.syncsTotal.WithLabelValues(status).Inc()
	pm.changesTotal.WithLabelValues("created").Add(float64(created))
	pm.changesTotal.WithLabelValues("transitioned").Add(float64(transitioned))
}

// RecordResolution counts an active-policy lookup.
func (pm *PolicyMetrics) RecordResolution(result string) {
	pm.resolutionsTotal.WithLabelValues(result).Inc()
}
