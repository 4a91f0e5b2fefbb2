package handlers

import (
	"net/http"

	"mercator-hq/callisto/pkg/feedback"
	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/usage"
)

// FeedbackResponse is the body of GET /v1/feedback.
type FeedbackResponse struct {
	Feedback []*usage.Feedback `json:"feedback"`
}

func (a *API) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedback.Request
	if err := a.decodeJSON(w, r, &req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	fb, err := a.deps.Feedback.Submit(r.Context(), middleware.UserID(r), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

func (a *API) listFeedback(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	list, err := a.deps.Feedback.ListForUser(r.Context(), middleware.UserID(r), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*usage.Feedback{}
	}
	writeJSON(w, http.StatusOK, FeedbackResponse{Feedback: list})
}
