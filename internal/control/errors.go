package control

import (
	"fmt"
	"net/http"
)

// APIError is the error body returned by the control API.
type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates an APIError.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func internalError(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return NewAPIError(http.StatusInternalServerError, "internal_error", message)
}

func badRequest(code, message string) *APIError {
	return NewAPIError(http.StatusBadRequest, code, message)
}

func conflict(code, message string, details interface{}) *APIError {
	err := NewAPIError(http.StatusConflict, code, message)
	err.Details = details
	return err
}

func unavailable(message string) *APIError {
	return NewAPIError(http.StatusServiceUnavailable, "unavailable", message)
}
