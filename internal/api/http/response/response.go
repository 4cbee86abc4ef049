// Package response writes JSON bodies and maps service errors to HTTP statuses.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Status  int               `json:"status"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", "error", err.Error())
	}
}

func OK(w http.ResponseWriter, v any, logger *logger.Logger) {
	JSON(w, http.StatusOK, v, logger)
}

func Created(w http.ResponseWriter, v any, logger *logger.Logger) {
	JSON(w, http.StatusCreated, v, logger)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error body with an explicit status and message.
func Error(w http.ResponseWriter, status int, message string, logger *logger.Logger) {
	JSON(w, status, ErrorBody{Status: status, Error: http.StatusText(status), Message: message}, logger)
}

// Invalid writes a 400 listing per-field problems.
func Invalid(w http.ResponseWriter, fields map[string]string, logger *logger.Logger) {
	JSON(w, http.StatusBadRequest, ErrorBody{
		Status:  http.StatusBadRequest,
		Error:   http.StatusText(http.StatusBadRequest),
		Message: "validation failed",
		Fields:  fields,
	}, logger)
}

// Status maps an error from the service layer to its HTTP status.
func Status(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthenticated),
		errors.Is(err, model.ErrInvalidCredentials),
		errors.Is(err, model.ErrTokenRevoked),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrTokenMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes the response for a service error. Unexpected errors are
// logged and answered with a generic message.
func FromError(w http.ResponseWriter, r *http.Request, err error, logger *logger.Logger) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error())
		Error(w, status, "internal server error", logger)
		return
	}
	Error(w, status, err.Error(), logger)
}
