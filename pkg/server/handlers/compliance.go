package handlers

import (
	"net/http"

	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/usage"
)

// HistoryResponse is the body of GET /v1/compliance/history.
type HistoryResponse struct {
	Snapshots []*usage.Snapshot `json:"snapshots"`
}

// compliance evaluates the caller against the policy active now. Nothing
// is stored.
func (a *API) compliance(w http.ResponseWriter, r *http.Request) {
	window, err := a.queryWindow(r, usage.WindowWeek)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	policy, err := a.deps.Policies.ActivePolicy(r.Context(), a.now())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	snap, err := a.deps.Evaluator.Evaluate(r.Context(), middleware.UserID(r), policy, window)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) complianceHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	snaps, err := a.deps.Evaluator.History(r.Context(), middleware.UserID(r), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if snaps == nil {
		snaps = []*usage.Snapshot{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Snapshots: snaps})
}
