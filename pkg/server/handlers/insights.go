package handlers

import (
	"net/http"

	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/usage"
)

// InsightsResponse is the body of GET /v1/insights.
type InsightsResponse struct {
	Insights []*usage.Insight `json:"insights"`
}

// MarkAllReadResponse is the body of POST /v1/insights/read-all.
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

func (a *API) listInsights(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	filter := usage.InsightFilter{
		State: usage.InsightState(r.URL.Query().Get("state")),
		Kind:  usage.InsightKind(r.URL.Query().Get("kind")),
		Limit: limit,
	}

	list, err := a.deps.Insights.List(r.Context(), middleware.UserID(r), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*usage.Insight{}
	}
	writeJSON(w, http.StatusOK, InsightsResponse{Insights: list})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	in, err := a.deps.Insights.MarkRead(r.Context(), r.PathValue("id"), middleware.UserID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (a *API) dismiss(w http.ResponseWriter, r *http.Request) {
	in, err := a.deps.Insights.Dismiss(r.Context(), r.PathValue("id"), middleware.UserID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (a *API) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.deps.Insights.MarkAllRead(r.Context(), middleware.UserID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MarkAllReadResponse{Updated: n})
}
