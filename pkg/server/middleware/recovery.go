package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// RecoveryMiddleware turns handler panics into 500 responses. The panic and
// stack are logged; clients see a generic message.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.ErrorContext(r.Context(), "panic in handler",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					WriteError(w, http.StatusInternalServerError, ErrorTypeServerError,
						"An internal error occurred. Please try again later.", "")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
