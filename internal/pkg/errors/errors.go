// Package errors provides the application error taxonomy for SemperVigil.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the seven error categories the job worker and admin API
// dispatch on. Kind determines retry behavior; never inspect Code or
// Message to decide whether to retry.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindTransient   Kind = "transient"
	KindRateLimited Kind = "rate_limited"
	KindPermanent   Kind = "permanent"
	KindCanceled    Kind = "canceled"
	KindInternal    Kind = "internal"
)

// Retryable reports whether a job worker should let River retry a failure
// of this kind. Transient and RateLimited are retryable; everything else
// either can never succeed on retry (Validation, NotFound, Permanent) or
// already represents a deliberate stop (Canceled), except Internal, which
// is retried since it usually reflects a bug surfaced by an unexpected
// condition rather than a verdict about the input.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransient, KindRateLimited, KindInternal:
		return true
	default:
		return false
	}
}

func (k Kind) httpStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindPermanent:
		return http.StatusUnprocessableEntity
	case KindCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel errors for common failure scenarios.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
)

// AppError is a structured application error carrying a Kind (for retry
// dispatch), a machine-readable code, an HTTP status, and an optional
// wrapped cause.
type AppError struct {
	Kind       Kind   `json:"kind"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Retryable reports whether the underlying Kind permits a job retry.
func (e *AppError) Retryable() bool { return e.Kind.Retryable() }

// New creates an AppError of the given kind.
func New(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: kind.httpStatus()}
}

// Wrap wraps an existing error into an AppError of the given kind.
func Wrap(err error, kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: kind.httpStatus(), Err: err}
}

func Validation(code, message string) *AppError  { return New(KindValidation, code, message) }
func NotFound(code, message string) *AppError     { return New(KindNotFound, code, message) }
func Transient(code, message string) *AppError    { return New(KindTransient, code, message) }
func RateLimited(code, message string) *AppError  { return New(KindRateLimited, code, message) }
func Permanent(code, message string) *AppError    { return New(KindPermanent, code, message) }
func Canceled(code, message string) *AppError     { return New(KindCanceled, code, message) }
func Internal(code, message string) *AppError     { return New(KindInternal, code, message) }

// WrapTransient is a convenience for the common "upstream call failed,
// should retry" path (HTTP 5xx, connection reset, timeout).
func WrapTransient(err error, code, message string) *AppError {
	return Wrap(err, KindTransient, code, message)
}

// WrapPermanent is a convenience for an upstream failure that retrying
// will not fix (HTTP 4xx other than 429).
func WrapPermanent(err error, code, message string) *AppError {
	return Wrap(err, KindPermanent, code, message)
}

// IsAppError checks if an error is an AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// RetryableFrom reports whether err should be retried by a job worker: an
// AppError dispatches on its Kind; any other error is treated as Internal
// (retryable), since it was not deliberately classified.
func RetryableFrom(err error) bool {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Retryable()
	}
	return true
}
