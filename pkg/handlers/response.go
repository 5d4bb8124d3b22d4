package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError maps service errors onto the HTTP contract: bad input files are
// client errors, unknown sessions are 404, a broken datastore is 503,
// anything else is a 500 with no internal detail leaked.
func WriteError(w http.ResponseWriter, err error) error {
	switch {
	case apperrors.IsBadInput(err):
		return ErrorResponse(w, http.StatusBadRequest, "invalid_file", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return ErrorResponse(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, apperrors.ErrUnavailable):
		return ErrorResponse(w, http.StatusServiceUnavailable, "unavailable", "datastore unavailable, try again later")
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
