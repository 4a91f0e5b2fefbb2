package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler serves the liveness probe. It always answers 200 while
// the process is up.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler serves the readiness probe: 200 when every check passes,
// 503 otherwise.
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "storage": {"status": "unhealthy", "message": "database is locked", "duration_ms": 5001.2},
//	        "insight_queue": {"status": "ok", "duration_ms": 0.01}
//	    },
//	    "timestamp": "2025-11-20T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if status.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, r, code, status)
	}
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, status HealthStatus) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(status)
	}
}
