package httpapi

import (
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"palate/internal/domain"
	"palate/internal/logging"
)

// Error codes carried in error responses.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, Response{
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: chimiddleware.GetReqID(r.Context()),
		},
	})
}

// respondDomainError maps use case errors onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidTaste),
		errors.Is(err, domain.ErrDimensionMismatch):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, domain.ErrNoTasteProfile), errors.Is(err, domain.ErrStaleProfile):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal error", nil)
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
