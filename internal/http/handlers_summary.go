package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"budgeteer/internal/core"
)

func summaryPrefix(userID string, space core.Space) string {
	return "summary:" + userID + ":" + string(space) + ":"
}

func summaryKey(userID string, space core.Space, from, to core.Date) string {
	return summaryPrefix(userID, space) + from.String() + ":" + to.String()
}

// invalidateSummaries drops every cached summary for the user's space.
// Called after any write that can change an aggregate.
func (s *Server) invalidateSummaries(ctx context.Context, userID string, space core.Space) {
	if s.summaries == nil {
		return
	}
	s.summaries.InvalidatePrefix(ctx, summaryPrefix(userID, space))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, err)
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

	key := summaryKey(user, space, from, to)
	if s.summaries != nil {
		if data, ok := s.summaries.Get(r.Context(), key); ok {
			slog.DebugContext(r.Context(), "Summary cache hit", "user_id", user, "space", string(space))
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}

	// Bound the aggregation so a slow store cannot hang the request.
	cctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()
	sum, err := s.svc.Analytics.Summarize(cctx, user, space, from.StartOfDay(), to.EndOfDay())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := fromSummary(sum)
	if s.summaries != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.summaries.Set(r.Context(), key, data)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
