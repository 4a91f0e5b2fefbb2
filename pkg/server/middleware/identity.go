package middleware

import (
	"net/http"
	"strings"

	"mercator-hq/callisto/pkg/telemetry/logging"
)

// DefaultUserHeader carries the authenticated user id.
const DefaultUserHeader = "X-User-ID"

// IdentityMiddleware requires the user id header and stores its value in
// the request context. Requests without it get 401.
func IdentityMiddleware(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultUserHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(header))
			if userID == "" {
				WriteError(w, http.StatusUnauthorized, ErrorTypeAuthentication,
					"missing "+header+" header", "")
				return
			}
			ctx := logging.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id of the request.
func UserID(r *http.Request) string {
	return logging.GetUserID(r.Context())
}
