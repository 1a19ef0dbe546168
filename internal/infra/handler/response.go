package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"inkwell/internal/domain/apperr"
)

const retryAfterSeconds = "1"

// errServiceNotConfigured carries no kind: a missing service is a wiring
// fault, answered as 500 rather than a retryable 503.
var errServiceNotConfigured = errors.New("service not configured")

// envelope wraps every response body.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Status: status, Message: message, Data: data})
}

// writeBadRequest reports a malformed request that never reached a use case.
func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Status:  http.StatusBadRequest,
		Message: err.Error(),
		Error:   string(apperr.KindValidation),
	})
}

// errorStatus maps an error kind to its HTTP status.
func errorStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// responder writes use case errors. Unclassified errors are logged and
// reported with a generic message.
type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return responder{logger: logger}
}

func (rs responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := errorStatus(kind)

	message := err.Error()
	switch kind {
	case apperr.KindUnknown:
		rs.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	case apperr.KindTransient:
		rs.logger.WarnContext(r.Context(), "dependency unavailable", "path", r.URL.Path, "error", err)
		message = "service temporarily unavailable"
	}
	if apperr.Retryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	writeJSON(w, status, envelope{
		Status:  status,
		Message: message,
		Error:   string(kind),
	})
}
