package handlers

import (
	"net"
	"net/http"
	"strings"

	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/usage"
)

// EventsResponse is the body of GET /v1/usage.
type EventsResponse struct {
	Events []*usage.Event `json:"events"`
	Count  int            `json:"count"`
}

func (a *API) recordUsage(w http.ResponseWriter, r *http.Request) {
	var req ledger.RecordRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	req.UserID = middleware.UserID(r)
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	event, err := a.deps.Ledger.Record(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (a *API) listUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := usage.EventFilter{
		Tool:      usage.Tool(q.Get("tool")),
		UsageType: usage.UsageType(q.Get("type")),
	}

	if q.Get("window") != "" {
		window, err := a.queryWindow(r, usage.WindowAll)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		filter.Window = window
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	filter.Limit = limit

	events, err := a.deps.Ledger.EventsFor(r.Context(), middleware.UserID(r), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []*usage.Event{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events, Count: len(events)})
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	s, err := a.deps.Ledger.Summary(r.Context(), middleware.UserID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// clientIP prefers the first X-Forwarded-For hop set by the proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
