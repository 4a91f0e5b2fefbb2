package middleware

import (
	"net/http"
	"time"

	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// MetricsMiddleware records request counts and latency. It must wrap the
// ServeMux directly so the matched route pattern is visible after the
// request is served.
func MetricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if collector == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			collector.RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}
