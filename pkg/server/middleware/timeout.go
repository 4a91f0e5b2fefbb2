package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request with a context deadline. Handlers
// and the storage calls below them observe the deadline and fail with
// context.DeadlineExceeded, which the handlers map to 504.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
