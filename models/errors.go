package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories the API exposes.
type ErrorKind string

const (
	ErrValidation         ErrorKind = "ValidationError"
	ErrNotFound           ErrorKind = "NotFound"
	ErrReferenceNotFound  ErrorKind = "ReferenceNotFound"
	ErrConflict           ErrorKind = "Conflict"
	ErrEvidenceRequired   ErrorKind = "EvidenceRequired"
	ErrPreconditionFailed ErrorKind = "PreconditionFailed"
	ErrInvariantViolation ErrorKind = "InvariantViolation"
	ErrAuditWriteFailed   ErrorKind = "AuditWriteFailed"
	ErrTimeout            ErrorKind = "Timeout"
)

// AppError is the one error type that crosses layer boundaries. Retryable is
// set only for failures a caller can safely repeat (storage timeouts).
type AppError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Retryable bool      `json:"retryable"`
	cause     error
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func NewAppError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Retryable: kind == ErrTimeout}
}

func NewFieldError(kind ErrorKind, message, field string) *AppError {
	e := NewAppError(kind, message)
	e.Field = field
	return e
}

// WrapError attaches an infrastructure cause to a taxonomy kind.
func WrapError(kind ErrorKind, message string, cause error) *AppError {
	e := NewAppError(kind, message)
	e.cause = cause
	return e
}

// KindOf extracts the taxonomy kind from any error in the chain; unknown
// errors report as an empty kind.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether a caller may safely repeat the operation.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
