package metrics

import (
	"strconv"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks usage event ingestion.
//
// Metrics:
//   - callisto_usage_events_recorded_total{tool,type,compliant}
//   - callisto_usage_events_rejected_total{field}
type LedgerMetrics struct {
	eventsTotal   *prometheus.CounterVec
	rejectedTotal *prometheus.CounterVec
}

// NewLedgerMetrics creates and registers ledger metrics.
func NewLedgerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LedgerMetrics {
	lm := &LedgerMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_recorded_total",
				Help:      "Total number of usage events recorded",
			},
			[]string{"tool", "type", "compliant"},
		),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_rejected_total",
				Help:      "Total number of usage events rejected by validation",
			},
			[]string{"field"},
		),
	}

	registry.MustRegister(lm.eventsTotal, lm.rejectedTotal)
	return lm
}

// RecordEvent counts a stored event.
func (lm *LedgerMetrics) RecordEvent(tool, usageType string, compliant bool) {
	lm.eventsTotal.WithLabelValues(tool, usageType, strconv.FormatBool(compliant)).Inc()
}

// RecordRejected counts a rejected event by the offending field.
func (lm *LedgerMetrics) RecordRejected(field string) {
	if field == "" {
		field = "unknown"
	}
	lm.rejectedTotal.WithLabelValues(field).Inc()
}
