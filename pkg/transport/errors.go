package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/modelgate/modelgate/pkg/unified"
)

// apiError is the error body shape clients of the generateContent
// dialects expect.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

// statusName maps an HTTP status code to the canonical status string
// used in error bodies.
func statusName(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusNotImplemented:
		return "UNIMPLEMENTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// WriteError writes a JSON error body with the given HTTP status.
func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Error: apiError{
		Code:    code,
		Message: message,
		Status:  statusName(code),
	}})
}

// WriteTranslationError maps a translation failure to an HTTP error.
// Envelope failures are client errors; everything else is internal.
func WriteTranslationError(w http.ResponseWriter, err error) {
	if errors.Is(err, unified.ErrInvalidEnvelope) {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}
