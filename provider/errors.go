package provider

import (
	"errors"
	"fmt"
)

// ErrorCode classifies provider errors.
type ErrorCode string

const (
	// ErrNotFound is returned by the Require helpers when an item that
	// must exist is absent. Base reads and writes never return it.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrValidationFailed is returned when data fails schema checks.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrClosed is returned when an operation runs against a discarded backend.
	ErrClosed ErrorCode = "CLOSED"
	// ErrStorage is returned when a storage operation fails.
	ErrStorage ErrorCode = "STORAGE_ERROR"
)

// Error is a classified provider error with optional details and cause.
type Error struct {
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{code: code, message: message}
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap records an underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error classification.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Details returns additional error details, or nil.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped cause if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// NotFound creates the error the Require helpers return for a missing item.
func NotFound(collection, id string) *Error {
	return NewError(ErrNotFound, fmt.Sprintf("%s/%s not found", collection, id)).
		WithDetail("collection", collection).
		WithDetail("id", id)
}

// IsNotFound reports whether err is (or wraps) a not-found error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.code == ErrNotFound
}

// Closed creates the error returned by operations on a discarded backend.
func Closed(what string) *Error {
	return NewError(ErrClosed, what+" is closed")
}
