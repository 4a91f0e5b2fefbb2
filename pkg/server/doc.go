// Package server provides the Callisto HTTP API server.
//
// The server ties together the /v1 API handlers, health endpoints and the
// Prometheus scrape endpoint behind one middleware chain, and manages the
// listener lifecycle.
//
// # Routes
//
//	POST   /v1/usage                     record a usage event
//	GET    /v1/usage                     usage history (?window=&tool=&type=&start=&end=&limit=)
//	GET    /v1/summary                   dashboard counts and 30-day trend
//	GET    /v1/compliance                evaluate against the active policy (?window=)
//	GET    /v1/compliance/history        stored snapshots
//	GET    /v1/insights                  insights (?state=active|visible|all)
//	POST   /v1/insights/read-all         mark every active insight read
//	POST   /v1/insights/{id}/read        mark one insight read
//	POST   /v1/insights/{id}/dismiss     dismiss one insight
//	GET    /v1/policies/active           the policy in force now
//	POST   /v1/feedback, GET /v1/feedback
//	GET    /v1/export                    data export attachment (?format=json|csv)
//	DELETE /v1/data                      delete all of the caller's data
//	GET    /health, /ready               liveness and readiness
//	GET    /metrics                      Prometheus metrics
//
// Every /v1 route requires the user id header (X-User-ID by default), set
// by the authentication proxy in front of the service.
//
// # Usage
//
//	srv := server.New(&cfg.Server, server.Options{
//	    API:     handlers.NewAPI(deps),
//	    Health:  checker,
//	    Metrics: collector,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled and then shuts down gracefully
// within server.shutdown_timeout.
package server
