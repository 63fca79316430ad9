package errors

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "voicepipe/internal/app/errors"
)

// ErrorKind represents different types of API errors
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindBadRequest         ErrorKind = "bad_request"
	KindNotFound           ErrorKind = "not_found"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindForbidden          ErrorKind = "forbidden"
	KindConflict           ErrorKind = "conflict"
	KindPayloadTooLarge    ErrorKind = "payload_too_large"
	KindRateLimited        ErrorKind = "rate_limited"
	KindInternal           ErrorKind = "internal"
	KindServiceUnavailable ErrorKind = "service_unavailable"
)

// APIError is the structured error body every endpoint returns. The message
// is serialized as "error" so clients can always rely on that field.
type APIError struct {
	Kind      ErrorKind         `json:"kind"`
	Message   string            `json:"error"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for the error kind
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error with field details
func NewValidationError(message string, fields map[string]string) *APIError {
	return &APIError{Kind: KindValidation, Message: message, Details: fields}
}

// NewBadRequestError creates a bad request error
func NewBadRequestError(message string) *APIError {
	return &APIError{Kind: KindBadRequest, Message: message}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *APIError {
	return &APIError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *APIError {
	return &APIError{Kind: KindUnauthorized, Message: message}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *APIError {
	return &APIError{Kind: KindForbidden, Message: message}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *APIError {
	return &APIError{Kind: KindConflict, Message: message}
}

// NewPayloadTooLargeError creates a payload too large error
func NewPayloadTooLargeError(message string) *APIError {
	return &APIError{Kind: KindPayloadTooLarge, Message: message}
}

// NewRateLimitedError creates a rate limited error
func NewRateLimitedError(message string) *APIError {
	return &APIError{Kind: KindRateLimited, Message: message}
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *APIError {
	return &APIError{Kind: KindInternal, Message: message}
}

// NewServiceUnavailableError creates a service unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{Kind: KindServiceUnavailable, Message: message}
}

// FromDomain translates a domain error into an API error. Unknown errors map
// to a generic internal error so internals never leak to clients.
func FromDomain(err error) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}

	var de *apperrors.Error
	if !errors.As(err, &de) {
		return NewInternalError("internal server error")
	}

	switch de.Kind() {
	case apperrors.KindInvalidInput:
		if errors.Is(err, apperrors.ErrFileTooLarge) {
			return NewPayloadTooLargeError(de.Error())
		}
		return NewBadRequestError(de.Error())
	case apperrors.KindNotFound:
		return &APIError{Kind: KindNotFound, Message: de.Error()}
	case apperrors.KindAccessDenied:
		return NewForbiddenError(de.Error())
	case apperrors.KindConflict:
		return NewConflictError(de.Error())
	case apperrors.KindTransient:
		return NewServiceUnavailableError(de.Error())
	case apperrors.KindStorage:
		return NewInternalError(de.Error())
	default:
		return NewInternalError(de.Error())
	}
}
