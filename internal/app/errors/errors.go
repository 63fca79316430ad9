package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so callers can map it to policy
// (HTTP status, retry eligibility, status transition).
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindAccessDenied Kind = "access_denied"
	KindConflict     Kind = "conflict"
	KindTransient    Kind = "transient"
	KindPermanent    Kind = "permanent"
	KindStorage      Kind = "storage"
	KindInternal     Kind = "internal"
)

// Common sentinel errors
var (
	ErrInvalidFormat       = &Error{kind: KindInvalidInput, message: "unsupported audio format"}
	ErrFileTooLarge        = &Error{kind: KindInvalidInput, message: "file exceeds maximum allowed size"}
	ErrMissingFile         = &Error{kind: KindInvalidInput, message: "no audio file provided"}
	ErrInvalidStatus       = &Error{kind: KindInvalidInput, message: "invalid recording status"}
	ErrRecordingNotFound   = &Error{kind: KindNotFound, message: "recording not found"}
	ErrMetricsNotFound     = &Error{kind: KindNotFound, message: "quality metrics not found"}
	ErrAccessDenied        = &Error{kind: KindAccessDenied, message: "recording belongs to another user"}
	ErrAlreadyProcessing   = &Error{kind: KindConflict, message: "transcription already in progress"}
	ErrAlreadyCompleted    = &Error{kind: KindConflict, message: "recording already transcribed"}
	ErrUnknownUser         = &Error{kind: KindInvalidInput, message: "unknown user"}
	ErrStorageUnavailable  = &Error{kind: KindStorage, message: "blob storage unavailable"}
	ErrQuotaExceeded       = &Error{kind: KindStorage, message: "storage quota exceeded"}
	ErrTranscriptionFailed = &Error{kind: KindPermanent, message: "transcription failed"}
	ErrAnalysisFailed      = &Error{kind: KindInternal, message: "quality analysis failed"}
)

// Error is the standard domain error carrying a kind and optional cause.
type Error struct {
	kind      Kind
	message   string
	retryable bool
	cause     error
}

// New creates a new domain error
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf creates a new formatted domain error
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Transient creates a retry-eligible service failure (rate limit, timeout,
// temporary unavailability).
func Transient(message string, cause error) *Error {
	return &Error{kind: KindTransient, message: message, retryable: true, cause: cause}
}

// Permanent creates a non-retryable service failure (corrupted audio,
// bad credentials).
func Permanent(message string, cause error) *Error {
	return &Error{kind: KindPermanent, message: message, cause: cause}
}

// Wrap attaches context to an error, preserving the kind when the wrapped
// error is already a domain error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return &Error{kind: de.kind, message: message, retryable: de.retryable, cause: err}
	}
	return &Error{kind: KindInternal, message: message, cause: err}
}

// Wrapf attaches formatted context to an error
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on kind and message so wrapped sentinels still compare equal
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.message == t.message
}

// Kind returns the classification of the error
func (e *Error) Kind() Kind {
	return e.kind
}

// Retryable reports whether a bounded retry may succeed
func (e *Error) Retryable() bool {
	return e.retryable
}

// KindOf extracts the kind from any error, defaulting to internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.kind
	}
	return KindInternal
}

// IsRetryable reports whether the error is a transient service failure.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.retryable
	}
	return false
}
