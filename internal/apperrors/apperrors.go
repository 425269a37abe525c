// Package apperrors defines the error taxonomy surfaced at the HTTP boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code is a machine-readable error code.
type Code string

// Error codes.
const (
	ErrValidation       Code = "VALIDATION_ERROR"
	ErrNotFound         Code = "NOT_FOUND"
	ErrConflict         Code = "CONFLICT"
	ErrUpstreamNotFound Code = "UPSTREAM_NOT_FOUND"
	ErrUpstreamLimited  Code = "UPSTREAM_RATE_LIMITED"
	ErrUpstreamDenied   Code = "UPSTREAM_ACCESS_DENIED"
	ErrUpstream         Code = "UPSTREAM_ERROR"
	ErrRateLimited      Code = "RATE_LIMITED"
	ErrInternal         Code = "INTERNAL_ERROR"
)

// UpstreamRetryAfter is advertised when the GitHub API budget is exhausted.
const UpstreamRetryAfter = time.Hour

// AppError is an error with a code that maps to an HTTP status.
type AppError struct {
	Code       Code
	Message    string
	RetryAfter time.Duration // set for rate limit errors
	Data       any           // optional payload, such as the existing record on conflict
	Err        error         // underlying cause, never sent to clients
}

// Error implements error.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus returns the HTTP status for the error code.
func (e *AppError) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Title returns the short human-readable error name.
func (e *AppError) Title() string {
	if t, ok := titles[e.Code]; ok {
		return t
	}
	return titles[ErrInternal]
}

// IsUpstream reports whether the error came from the GitHub API.
func (e *AppError) IsUpstream() bool {
	switch e.Code {
	case ErrUpstreamNotFound, ErrUpstreamLimited, ErrUpstreamDenied, ErrUpstream:
		return true
	}
	return false
}

var statusByCode = map[Code]int{
	ErrValidation:       http.StatusBadRequest,
	ErrNotFound:         http.StatusNotFound,
	ErrConflict:         http.StatusConflict,
	ErrUpstreamNotFound: http.StatusNotFound,
	ErrUpstreamLimited:  http.StatusTooManyRequests,
	ErrUpstreamDenied:   http.StatusForbidden,
	ErrUpstream:         http.StatusBadGateway,
	ErrRateLimited:      http.StatusTooManyRequests,
	ErrInternal:         http.StatusInternalServerError,
}

var titles = map[Code]string{
	ErrValidation:       "Validation failed",
	ErrNotFound:         "Not found",
	ErrConflict:         "Conflict",
	ErrUpstreamNotFound: "Repository not found on GitHub",
	ErrUpstreamLimited:  "GitHub API rate limit exceeded",
	ErrUpstreamDenied:   "Access denied by GitHub",
	ErrUpstream:         "GitHub API error",
	ErrRateLimited:      "Too many requests",
	ErrInternal:         "Internal server error",
}

// Validation creates a validation error.
func Validation(format string, args ...any) *AppError {
	return &AppError{Code: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(format string, args ...any) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error carrying the existing resource.
func Conflict(existing any, format string, args ...any) *AppError {
	return &AppError{Code: ErrConflict, Message: fmt.Sprintf(format, args...), Data: existing}
}

// Upstream creates an upstream error of the given code.
func Upstream(code Code, err error) *AppError {
	e := &AppError{Code: code, Message: titles[code], Err: err}
	if code == ErrUpstreamLimited {
		e.RetryAfter = UpstreamRetryAfter
	}
	return e
}

// RateLimited creates a rate limit error.
func RateLimited(message string, retryAfter time.Duration) *AppError {
	return &AppError{Code: ErrRateLimited, Message: message, RetryAfter: retryAfter}
}

// Internal wraps an unexpected error.
func Internal(err error) *AppError {
	msg := "unexpected error"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{Code: ErrInternal, Message: msg, Err: err}
}

// As extracts an *AppError from the chain, wrapping anything else as internal.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
