package handlers

import (
	"net/http"

	"mercator-hq/callisto/pkg/usage"
)

// ActivePolicyResponse is the body of GET /v1/policies/active. Policy is
// null when no policy is in force.
type ActivePolicyResponse struct {
	Policy *usage.Policy `json:"policy"`
}

func (a *API) activePolicy(w http.ResponseWriter, r *http.Request) {
	p, err := a.deps.Policies.ActivePolicy(r.Context(), a.now())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivePolicyResponse{Policy: p})
}
