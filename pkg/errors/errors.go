package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared across packages. Adapter-specific codes (e.g. messaging's
// CodeConnectionFailed) live alongside their package instead of here.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeForbidden       = "FORBIDDEN"
	CodeInternal        = "INTERNAL"
	CodeUnavailable     = "UNAVAILABLE"
	CodeTimeout         = "TIMEOUT"
	CodeUpstream        = "UPSTREAM"
)

// AppError is the structured error type returned at every package boundary
// in this repository: a stable Code, a human Message, and an optional
// wrapped cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// New creates an AppError with the given code, message and optional cause.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Wrap creates an internal AppError around err with an added message.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to a standard HTTP status code.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NotFound creates a CodeNotFound error.
func NotFound(message string, err error) *AppError {
	return New(CodeNotFound, message, err)
}

// Conflict creates a CodeConflict error.
func Conflict(message string, err error) *AppError {
	return New(CodeConflict, message, err)
}

// InvalidArgument creates a CodeInvalidArgument error.
func InvalidArgument(message string, err error) *AppError {
	return New(CodeInvalidArgument, message, err)
}

// Forbidden creates a CodeForbidden error.
func Forbidden(message string, err error) *AppError {
	return New(CodeForbidden, message, err)
}

// Internal creates a CodeInternal error.
func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, err)
}

// Unavailable creates a CodeUnavailable error, used for overload/rejection
// conditions (pool saturation, broker fencing) that callers should not retry
// blindly.
func Unavailable(message string, err error) *AppError {
	return New(CodeUnavailable, message, err)
}

// Timeout creates a CodeTimeout error.
func Timeout(message string, err error) *AppError {
	return New(CodeTimeout, message, err)
}

// Upstream creates a CodeUpstream error, used when a dependent external
// system (not this process) is the cause of failure.
func Upstream(message string, err error) *AppError {
	return New(CodeUpstream, message, err)
}

// Is reports whether err (or any error in its chain) is an AppError with the
// given code. Thin wrapper so callers don't need to import both this package
// and the standard errors package for the common case.
func Is(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// As exposes the standard library's errors.As for convenience.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
