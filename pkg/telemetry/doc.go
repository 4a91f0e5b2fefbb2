// Package telemetry groups Callisto's observability packages.
//
//   - logging: log/slog setup with context fields and PII redaction
//   - metrics: Prometheus collector for ledger, compliance, insight,
//     policy and HTTP metrics
//   - health: liveness and readiness probes
//
// Every component takes a *slog.Logger and an optional *metrics.Collector;
// a nil collector disables metrics without further checks at call sites.
package telemetry
