// Package metrics provides Prometheus metrics for Callisto.
//
// A Collector owns a private registry and groups metrics by concern:
//
//   - Ledger: events recorded by tool, usage type and compliance flag,
//     and events rejected by validation
//   - Compliance: evaluations by window and level, evaluation duration,
//     and sweep progress
//   - Insights: insights generated by kind and priority, regeneration
//     duration and failures, retention pruning, and async queue depth
//   - Policy: file syncs, changes applied by syncs, and active-policy
//     resolutions (found, none, ambiguous)
//   - HTTP: API requests by method, route and status
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordEvent("claude", "debugging", true)
//	collector.RecordEvaluation("week", "compliant", 3*time.Millisecond)
//	mux.Handle("/metrics", collector.Handler())
//
// Every Record method is a no-op on a nil collector or when metrics are
// disabled, so components accept a *Collector that may be nil.
package metrics
