package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/telemetry/logging"
)

const (
	// RequestIDHeader is the HTTP header for request ID.
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 128
)

// RequestIDMiddleware assigns every request an id and echoes it in the
// X-Request-ID response header. A client-supplied id is kept when it is
// not absurdly long.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
