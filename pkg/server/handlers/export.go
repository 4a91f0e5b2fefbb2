package handlers

import (
	"fmt"
	"net/http"

	"mercator-hq/callisto/pkg/export"
	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/usage"
)

// exportData streams the caller's data as a JSON attachment, or their usage
// events as CSV with ?format=csv.
func (a *API) exportData(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		a.writeServiceError(w, r, &usage.ValidationError{Entity: "query", Field: "format", Reason: "must be json or csv"})
		return
	}

	userID := middleware.UserID(r)
	doc, err := a.deps.Export.Export(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	filename := fmt.Sprintf("callisto-export-%s.%s", doc.ExportedAt.Format("20060102T150405Z"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.NewCSVExporter(true).Export(r.Context(), doc.UsageEvents, w)
	} else {
		w.Header().Set("Content-Type", "application/json")
		err = export.NewJSONExporter(true).Export(r.Context(), doc, w)
	}
	if err != nil {
		// Headers are already sent.
		a.logger.ErrorContext(r.Context(), "export write failed", "format", format, "error", err)
	}
}

func (a *API) deleteData(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Export.DeleteUser(r.Context(), middleware.UserID(r)); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
