package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeFault maps the shared error kinds to HTTP statuses.  Anything
// unrecognized is a 500 and the caller should log it.
func writeFault(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, fault.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, fault.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, fault.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, fault.ErrNotQualified):
		writeError(w, http.StatusForbidden, "not_qualified", err.Error())
	default:
		return false
	}
	return true
}
