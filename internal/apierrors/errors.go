// Package apierrors provides the API response envelope and structured errors.
package apierrors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartcost/backend/internal/correlation"
)

// Envelope wraps every API response.
type Envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// APIError represents a structured API error.
type APIError struct {
	Code       string
	Message    string
	StatusCode int
	Details    []string
}

func (e *APIError) Error() string {
	return e.Message
}

// Write writes the error as a failed envelope.
func (e *APIError) Write(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, e.StatusCode, Envelope{
		Success:   false,
		Message:   e.Message,
		Errors:    e.Details,
		Timestamp: time.Now().UTC(),
		RequestID: correlation.GetID(r.Context()),
	})
}

// WriteSuccess writes data in a successful envelope.
func WriteSuccess(w http.ResponseWriter, r *http.Request, status int, data any, message string) {
	writeEnvelope(w, status, Envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: correlation.GetID(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// Common errors

func NewBadRequestError(message string, details ...string) *APIError {
	return &APIError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		StatusCode: http.StatusNotFound,
		Details:    []string{resource + " " + id + " does not exist"},
	}
}

func NewConflictError(message string) *APIError {
	return &APIError{
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewValidationError(message string, details ...string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// NewInternalError keeps the underlying error text in Details for diagnostics.
func NewInternalError(message string, cause error) *APIError {
	e := &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
	if cause != nil {
		e.Details = []string{cause.Error()}
	}
	return e
}

func NewServiceUnavailableError(service string) *APIError {
	return &APIError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    service + " is temporarily unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}
}

// FromError converts a standard error to an APIError.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return NewInternalError("An unexpected error occurred", err)
}

// ErrorHandler is middleware that turns panics into an internal error envelope.
func ErrorHandler(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					correlation.Logger(r.Context(), logger).Error("panic serving request",
						"path", r.URL.Path,
						"panic", rec,
					)
					NewInternalError("Internal server error", nil).Write(w, r)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
