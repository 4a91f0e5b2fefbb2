// Package middleware provides the HTTP middleware chain of the API server.
//
// The server applies, from outermost to innermost:
//
//	RecoveryMiddleware      panics become 500 responses
//	RequestIDMiddleware     X-Request-ID in, context and response header
//	LoggingMiddleware       one structured log line per request
//	CORSMiddleware          CORS headers and preflight handling
//	TimeoutMiddleware       per-request context deadline
//	MetricsMiddleware       request counts and latency by route pattern
//
// IdentityMiddleware is applied per route to the /v1 API only. It reads
// the authenticated user id from a header set by the upstream
// authentication proxy and rejects requests without one.
//
// Request and user ids are stored with the logging package's context
// helpers so every log line written while handling the request carries
// them.
package middleware
