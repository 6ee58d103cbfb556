package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Common sentinel errors for quick checks
var (
	// ErrPreconditionFailed is returned when an operation requires a
	// configured listener and none is set.
	ErrPreconditionFailed = errors.New("listener not configured")

	// ErrAlreadyConfigured is returned when a listener is already set.
	ErrAlreadyConfigured = errors.New("listener already configured")

	// ErrNotConnected is returned when the remote publisher endpoint is
	// unreachable.
	ErrNotConnected = errors.New("publisher endpoint not connected")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timeout")

	// ErrInvalidInput is returned when input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal is returned when an internal error occurs.
	ErrInternal = errors.New("internal error")
)

// Error is the base interface for all custom errors in the system.
// It extends the standard error interface with additional context.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
	stack   []uintptr
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// Stack returns the captured stack trace.
func (e *BaseError) Stack() []uintptr {
	return e.stack
}

// captureStack captures the current stack trace.
func captureStack(skip int) []uintptr {
	const maxDepth = 32
	stack := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, stack)
	return stack[:n]
}

// StackTrace returns a formatted stack trace string.
func (e *BaseError) StackTrace() string {
	if len(e.stack) == 0 {
		return ""
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

// PreconditionError represents an operation attempted while the manager was
// not in the required state.
type PreconditionError struct {
	*BaseError
	Operation string
}

// NewPreconditionError creates a new precondition error.
func NewPreconditionError(operation, message string) *PreconditionError {
	if message == "" {
		message = "listener not configured"
	}
	return &PreconditionError{
		BaseError: &BaseError{
			code:    CodeFailedPrecondition,
			message: message,
			stack:   captureStack(1),
		},
		Operation: operation,
	}
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.message)
	}
	return e.message
}

// AlreadyConfiguredError represents an attempt to set a listener while one
// is already active.
type AlreadyConfiguredError struct {
	*BaseError
}

// NewAlreadyConfiguredError creates a new already-configured error.
func NewAlreadyConfiguredError(message string) *AlreadyConfiguredError {
	if message == "" {
		message = "listener already configured"
	}
	return &AlreadyConfiguredError{
		BaseError: &BaseError{
			code:    CodeAlreadyConfigured,
			message: message,
			stack:   captureStack(1),
		},
	}
}

// NotConnectedError represents a failure to reach the remote publisher
// endpoint.
type NotConnectedError struct {
	*BaseError
	Endpoint string
}

// NewNotConnectedError creates a new not-connected error wrapping the
// transport failure.
func NewNotConnectedError(message string, cause error) *NotConnectedError {
	if message == "" {
		message = "publisher endpoint not connected"
	}
	return &NotConnectedError{
		BaseError: &BaseError{
			code:    CodeNotConnected,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
	}
}

// WithEndpoint attaches the endpoint address for diagnostics.
func (e *NotConnectedError) WithEndpoint(endpoint string) *NotConnectedError {
	e.Endpoint = endpoint
	return e
}

// ValidationError represents an input validation error.
type ValidationError struct {
	*BaseError
	Field string
	Value interface{}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		BaseError: &BaseError{
			code:    CodeValidation,
			message: message,
			stack:   captureStack(1),
		},
		Field: field,
		Value: value,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// TimeoutError represents an operation timeout.
type TimeoutError struct {
	*BaseError
	Operation string
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(operation string, cause error) *TimeoutError {
	return &TimeoutError{
		BaseError: &BaseError{
			code:    CodeTimeout,
			message: fmt.Sprintf("%s timed out", operation),
			cause:   cause,
			stack:   captureStack(1),
		},
		Operation: operation,
	}
}

// TransportError represents a transport-level failure that is not a plain
// connectivity problem (bad envelope, protocol violation).
type TransportError struct {
	*BaseError
	Transport string
}

// NewTransportError creates a new transport error.
func NewTransportError(transport, message string, cause error) *TransportError {
	return &TransportError{
		BaseError: &BaseError{
			code:    CodeTransportError,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
		Transport: transport,
	}
}

// Wrap wraps an error with an internal code and message, preserving the
// cause chain for errors.Is/As.
func Wrap(err error, message string) *BaseError {
	return &BaseError{
		code:    CodeInternal,
		message: message,
		cause:   err,
		stack:   captureStack(1),
	}
}
