package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"pegvault/native/stable"
)

type errorBody struct {
	Kind      string                       `json:"kind"`
	Message   string                       `json:"message"`
	Index     *int                         `json:"index,omitempty"`
	Violation *stable.PeriodLimitViolation `json:"violation,omitempty"`
}

// statusForError maps protocol error kinds onto HTTP statuses.
func statusForError(err error) (int, string) {
	if errors.Is(err, stable.ErrEntityNotFound) {
		return http.StatusNotFound, "not_found"
	}
	kind := stable.Kind(err)
	switch kind {
	case "invalid_input":
		return http.StatusBadRequest, kind
	case "out_of_bounds", "arithmetic_error":
		return http.StatusUnprocessableEntity, kind
	case "period_limit_exceeded", "invalid_state":
		return http.StatusConflict, kind
	case "unauthorized":
		return http.StatusForbidden, kind
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusForError(err)
	body := errorBody{Kind: kind, Message: err.Error()}
	if status == http.StatusInternalServerError {
		body.Message = http.StatusText(status)
	}
	var batchErr *stable.BatchError
	if errors.As(err, &batchErr) {
		index := batchErr.Index
		body.Index = &index
	}
	var violation *stable.PeriodLimitViolation
	if errors.As(err, &violation) {
		body.Violation = violation
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Kind: kind, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
