package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// handleExportReport aggregates a summary for the range and appends it
// to the configured external report sheet.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.svc.Reports == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "report export not configured"})
		return
	}
	space, err := spaceParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, err := dateParam(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := dateParam(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if from.IsZero() || to.IsZero() {
		badRequest(w, "from and to are required (YYYY-MM-DD)")
		return
	}

	cctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	fromAt, toAt := from.StartOfDay(), to.EndOfDay()
	sum, err := s.svc.Analytics.Summarize(cctx, user, space, fromAt, toAt)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ref, err := s.svc.Reports.Export(cctx, user, space, fromAt, toAt, sum)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Report exported",
		"user_id", user, "space", string(space), "ref", ref)
	writeJSON(w, http.StatusCreated, map[string]string{"ref": ref})
}
