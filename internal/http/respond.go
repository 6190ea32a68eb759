package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"budgeteer/internal/core"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// validationErrs are domain errors that map to 400 rather than 500.
var validationErrs = []error{
	core.ErrInvalidSpace,
	core.ErrInvalidPeriod,
	core.ErrInvalidType,
	core.ErrInvalidDirection,
	core.ErrInvalidBucket,
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidStatus,
	core.ErrEmptyName,
	core.ErrEmptyCategory,
	core.ErrRangeInverted,
}

// writeError maps domain errors onto HTTP statuses. Conflicts keep their
// full message so the client can surface it to the user as-is.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrBudgetOverlap), errors.Is(err, core.ErrAlreadyFinalized):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func isValidationError(err error) bool {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// userID extracts the caller identity. There is no session layer; the
// gateway in front of this service is trusted to set the header.
func userID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if id == "" {
		return "", core.ErrUnauthenticated
	}
	return id, nil
}

func parseSpace(raw string) (core.Space, error) {
	space := core.Space(raw)
	if err := space.Validate(); err != nil {
		return "", err
	}
	return space, nil
}

// spaceParam reads the mandatory space query parameter.
func spaceParam(r *http.Request) (core.Space, error) {
	return parseSpace(r.URL.Query().Get("space"))
}

// dateParam parses an optional YYYY-MM-DD query parameter; a missing
// value yields the zero date, meaning unbounded. Callers expand the
// calendar dates to full-day instant bounds with StartOfDay and
// EndOfDay so boundary-day transactions are never cut off.
func dateParam(r *http.Request, name string) (core.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(raw)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
