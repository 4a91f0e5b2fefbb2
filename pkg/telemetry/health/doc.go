// Package health implements the /health and /ready probes.
//
// /health answers 200 whenever the process is serving. /ready runs every
// registered check concurrently, each under its own timeout, and answers
// 503 when any of them fails. Callisto registers:
//
//   - storage: a Ping against the configured backend
//   - insight_queue: fails when async regeneration is 90% backed up
//
//	checker := health.New(5*time.Second, version)
//	checker.RegisterCheck("storage", health.StorageCheck(store))
//	mux.Handle("GET /ready", checker.ReadinessHandler())
package health
