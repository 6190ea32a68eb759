package http

import (
	"net/http"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	txn, err := req.toTransaction()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Ledger.Create(r.Context(), user, txn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries(r.Context(), user, created.Space)
	writeJSON(w, http.StatusCreated, fromTransaction(created))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
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

	txns, err := s.svc.Ledger.List(r.Context(), user, space, from.StartOfDay(), to.EndOfDay())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, fromTransaction(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
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

	if err := s.svc.Ledger.Delete(r.Context(), user, space, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries(r.Context(), user, space)
	w.WriteHeader(http.StatusNoContent)
}
