package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/cv-keeper/internal/errs"
)

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type errorResponse struct {
	Status string       `json:"status"`
	Error  errorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, errorResponse{Status: "error", Error: errorPayload{Code: code, Message: message, RequestID: requestID}})
}

func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, errs.ErrInvalidSequence):
		return http.StatusConflict, "invalid_sequence"
	case errors.Is(err, errs.ErrBadSignature):
		return http.StatusConflict, "bad_signature"
	case errors.Is(err, errs.ErrMalformedEvent):
		return http.StatusConflict, "malformed_event"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
