package http

import (
	"log/slog"
	"net/http"

	"budgeteer/internal/core"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req budgetRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	budget, err := req.toBudget()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Budgets.Create(r.Context(), user, budget)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries(r.Context(), user, created.Space)
	slog.InfoContext(r.Context(), "Budget created",
		"user_id", user, "budget_id", created.ID, "space", string(created.Space))
	writeJSON(w, http.StatusCreated, fromBudget(created))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
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

	budgets, err := s.svc.Budgets.List(r.Context(), user, space)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		resp = append(resp, fromBudget(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
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

	budget, err := s.svc.Budgets.Get(r.Context(), user, space, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromBudget(budget))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
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

	var req budgetPatchRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.svc.Budgets.Update(r.Context(), user, space, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries(r.Context(), user, space)
	writeJSON(w, http.StatusOK, fromBudget(updated))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
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

	if err := s.svc.Budgets.Delete(r.Context(), user, space, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries(r.Context(), user, space)
	w.WriteHeader(http.StatusNoContent)
}

// handleValidateRange is a dry run of the overlap check, so clients can
// flag a conflicting timeline before the user submits the form.
func (s *Server) handleValidateRange(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req validateRangeRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	space, err := parseSpace(req.Space)
	if err != nil {
		writeError(w, r, err)
		return
	}
	period := core.Period(req.Period)
	if err := period.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var end core.Date
	if req.EndDate != "" {
		if end, err = core.ParseDate(req.EndDate); err != nil {
			writeError(w, r, err)
			return
		}
	}

	candidate := core.Range{Start: start, End: core.EffectiveEnd(period, start, end)}
	if err := s.svc.Budgets.ValidateNoOverlap(r.Context(), user, space, candidate, req.ExcludeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"startDate":        candidate.Start.String(),
		"effectiveEndDate": candidate.End.String(),
	})
}

func (s *Server) handleCreateMiniBudget(w http.ResponseWriter, r *http.Request) {
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

	var req miniBudgetRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	mb := core.MiniBudget{
		BudgetID: r.PathValue("id"),
		Name:     req.Name,
		Amount:   core.Money{Cents: req.AmountCents},
		Category: core.Bucket(req.Category),
	}
	created, err := s.svc.Budgets.CreateMiniBudget(r.Context(), user, space, mb)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries(r.Context(), user, space)
	writeJSON(w, http.StatusCreated, fromMiniBudget(created))
}

func (s *Server) handleListMiniBudgets(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	minis, err := s.svc.Budgets.ListMiniBudgets(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]miniBudgetResponse, 0, len(minis))
	for _, mb := range minis {
		resp = append(resp, fromMiniBudget(mb))
	}
	writeJSON(w, http.StatusOK, resp)
}
