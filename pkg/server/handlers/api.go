package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/callisto/pkg/compliance"
	"mercator-hq/callisto/pkg/export"
	"mercator-hq/callisto/pkg/feedback"
	"mercator-hq/callisto/pkg/insights"
	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/usage"
)

// DefaultMaxBodyBytes bounds JSON request bodies when unset.
const DefaultMaxBodyBytes = 64 << 10

// Deps are the services behind the API.
type Deps struct {
	Ledger    *ledger.Ledger
	Evaluator *compliance.Evaluator
	Policies  compliance.PolicyResolver
	Insights  *insights.Service
	Feedback  *feedback.Service
	Export    *export.Service
	Logger    *slog.Logger
	Clock     func() time.Time
	MaxBody   int64
	Location  *time.Location
}

// API serves the /v1 routes.
type API struct {
	deps   Deps
	logger *slog.Logger
}

// NewAPI creates the API handlers.
func NewAPI(deps Deps) *API {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.MaxBody <= 0 {
		deps.MaxBody = DefaultMaxBodyBytes
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &API{deps: deps, logger: deps.Logger.With("component", "api")}
}

// Register adds every /v1 route to mux, each wrapped by wrap (usually the
// identity middleware).
func (a *API) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"POST /v1/usage":                 a.recordUsage,
		"GET /v1/usage":                  a.listUsage,
		"GET /v1/summary":                a.summary,
		"GET /v1/compliance":             a.compliance,
		"GET /v1/compliance/history":     a.complianceHistory,
		"GET /v1/insights":               a.listInsights,
		"POST /v1/insights/read-all":     a.markAllRead,
		"POST /v1/insights/{id}/read":    a.markRead,
		"POST /v1/insights/{id}/dismiss": a.dismiss,
		"GET /v1/policies/active":        a.activePolicy,
		"POST /v1/feedback":              a.submitFeedback,
		"GET /v1/feedback":               a.listFeedback,
		"GET /v1/export":                 a.exportData,
		"DELETE /v1/data":                a.deleteData,
	}
	for pattern, h := range routes {
		mux.Handle(pattern, wrap(h))
	}
}

func (a *API) now() time.Time {
	return a.deps.Clock()
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, a.deps.MaxBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &usage.ValidationError{Entity: "request", Reason: fmt.Sprintf("body larger than %d bytes", maxErr.Limit)}
		case errors.Is(err, io.EOF):
			return &usage.ValidationError{Entity: "request", Reason: "empty body"}
		default:
			return &usage.ValidationError{Entity: "request", Reason: "malformed JSON: " + err.Error()}
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service errors to HTTP responses.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *usage.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, verr.Error(), verr.Field)
	case errors.Is(err, usage.ErrUnauthorized):
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrorTypePermissionDenied, err.Error(), "")
	case errors.Is(err, usage.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrorTypeNotFound, err.Error(), "")
	case errors.Is(err, context.DeadlineExceeded):
		middleware.WriteError(w, http.StatusGatewayTimeout, middleware.ErrorTypeGatewayTimeout,
			"request timeout: the request took too long to complete", "")
	default:
		a.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorTypeServerError,
			"An internal error occurred. Please try again later.", "")
	}
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &usage.ValidationError{Entity: "query", Field: name, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

// queryTime parses an RFC 3339 timestamp or a YYYY-MM-DD date in loc.
func queryTime(r *http.Request, name string, loc *time.Location) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, &usage.ValidationError{Entity: "query", Field: name, Reason: "is required for a range window"}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, &usage.ValidationError{Entity: "query", Field: name, Reason: "must be RFC 3339 or YYYY-MM-DD"}
}

// queryWindow builds the window selected by ?window= (and ?start=/&end=
// for ranges). fallback is used when the parameter is absent.
func (a *API) queryWindow(r *http.Request, fallback usage.WindowKind) (usage.Window, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		raw = string(fallback)
	}
	kind, err := usage.ParseWindowKind(raw)
	if err != nil {
		return usage.Window{}, &usage.ValidationError{Entity: "query", Field: "window", Reason: err.Error()}
	}
	if kind != usage.WindowRange {
		return usage.NewWindow(kind, a.now(), a.deps.Location), nil
	}

	start, err := queryTime(r, "start", a.deps.Location)
	if err != nil {
		return usage.Window{}, err
	}
	end, err := queryTime(r, "end", a.deps.Location)
	if err != nil {
		return usage.Window{}, err
	}
	w := usage.RangeWindow(start, end)
	if err := w.Validate(); err != nil {
		return usage.Window{}, &usage.ValidationError{Entity: "query", Field: "end", Reason: err.Error()}
	}
	return w, nil
}
