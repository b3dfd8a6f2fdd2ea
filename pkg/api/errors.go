package api

import (
	"fmt"
	"net/http"
)

// ErrorCode categorizes an API error. It is serialized as the "code" field
// of the error envelope.
type ErrorCode string

const (
	CodeValidation          ErrorCode = "validation_error"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeInvalidToken        ErrorCode = "invalid_token"
	CodeServerConfiguration ErrorCode = "server_configuration_error"
	CodeModelNotFound       ErrorCode = "model_not_found"
	CodeUpstream            ErrorCode = "upstream_error"
	CodeInternal            ErrorCode = "internal_error"
)

// APIError is a structured error returned to clients as
// {"error": {"message": ..., "code": ...}}.
type APIError struct {
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
	Param   string    `json:"param,omitempty"`

	// Status overrides the HTTP status derived from Code. Upstream errors
	// use it to carry the status reported by the provider.
	Status int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Code, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus returns the HTTP status code for this error.
func (e *APIError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeModelNotFound:
		return http.StatusNotFound
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewValidationError creates an APIError for bad client input.
func NewValidationError(param, message string) *APIError {
	return &APIError{
		Code:    CodeValidation,
		Param:   param,
		Message: message,
	}
}

// NewUnauthorizedError creates an APIError for missing or malformed credentials.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewInvalidTokenError creates an APIError for credentials that do not match.
func NewInvalidTokenError(message string) *APIError {
	return &APIError{
		Code:    CodeInvalidToken,
		Message: message,
	}
}

// NewConfigurationError creates an APIError for server misconfiguration.
func NewConfigurationError(message string) *APIError {
	return &APIError{
		Code:    CodeServerConfiguration,
		Message: message,
	}
}

// NewModelNotFoundError creates an APIError for a model no provider serves.
func NewModelNotFoundError(model string) *APIError {
	return &APIError{
		Code:    CodeModelNotFound,
		Param:   "model",
		Message: fmt.Sprintf("model %q is not available", model),
	}
}

// NewUpstreamError creates an APIError for a provider failure. A zero
// status maps to 502.
func NewUpstreamError(status int, message string) *APIError {
	return &APIError{
		Code:    CodeUpstream,
		Message: message,
		Status:  status,
	}
}

// NewInternalError creates an APIError for unexpected server failures.
func NewInternalError(message string) *APIError {
	return &APIError{
		Code:    CodeInternal,
		Message: message,
	}
}
