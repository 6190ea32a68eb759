package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"budgeteer/internal/core"
	"budgeteer/internal/services"
)

func (s *Server) handleCreateBankLink(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req bankLinkRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	space, err := parseSpace(req.Space)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.BankAccountID) == "" {
		badRequest(w, "bankAccountId is required")
		return
	}

	staged, err := s.svc.BankLinks.Establish(r.Context(), user, space, req.BankAccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]importResponse, 0, len(staged))
	for _, it := range staged {
		resp = append(resp, fromImport(it))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
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
	// Empty status means all.
	status := core.ImportStatus(r.URL.Query().Get("status"))

	imports, err := s.svc.BankLinks.ListImports(r.Context(), user, space, status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]importResponse, 0, len(imports))
	for _, it := range imports {
		resp = append(resp, fromImport(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
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

	// An empty body reconciles with defaults.
	var req reconcileRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	opts := services.ReconcileOptions{
		Type:           core.TransactionType(req.Type),
		Category:       req.Category,
		BudgetCategory: core.Bucket(req.BudgetCategory),
		MiniBudgetID:   req.MiniBudgetID,
	}

	txn, err := s.svc.Reconciler.Reconcile(r.Context(), user, space, r.PathValue("id"), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries(r.Context(), user, space)
	slog.InfoContext(r.Context(), "Import reconciled",
		"user_id", user, "imported_id", r.PathValue("id"), "transaction_id", txn.ID)
	writeJSON(w, http.StatusOK, fromTransaction(txn))
}

func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
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

	ignored, err := s.svc.Reconciler.Ignore(r.Context(), user, space, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromImport(ignored))
}
