package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"mercator-hq/callisto/pkg/config"
)

// CORSConfig contains configuration for CORS middleware.
type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string // ["*"] allows all
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         int // seconds
}

// CORSConfigFrom converts the server's CORS settings.
func CORSConfigFrom(cfg config.CORSConfig) *CORSConfig {
	return &CORSConfig{
		Enabled:        cfg.Enabled,
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         cfg.MaxAge,
	}
}

// CORSMiddleware adds Cross-Origin Resource Sharing headers and answers
// preflight OPTIONS requests with 204.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if config == nil || !config.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowAll := slices.Contains(config.AllowedOrigins, "*")

			switch {
			case origin != "" && (allowAll || slices.Contains(config.AllowedOrigins, origin)):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				if len(config.ExposedHeaders) > 0 {
					w.Header().Set("Access-Control-Expose-Headers", strings.Join(config.ExposedHeaders, ", "))
				}
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if len(config.AllowedMethods) > 0 {
					w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				}
				if len(config.AllowedHeaders) > 0 {
					w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				}
				if config.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
