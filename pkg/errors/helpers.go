package errors

import "errors"

// IsPreconditionFailed checks if an error indicates a missing listener.
func IsPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}

	var preconditionErr *PreconditionError
	return errors.As(err, &preconditionErr) || errors.Is(err, ErrPreconditionFailed)
}

// IsAlreadyConfigured checks if an error indicates a listener was already set.
func IsAlreadyConfigured(err error) bool {
	if err == nil {
		return false
	}

	var alreadyErr *AlreadyConfiguredError
	return errors.As(err, &alreadyErr) || errors.Is(err, ErrAlreadyConfigured)
}

// IsNotConnected checks if an error indicates the remote publisher endpoint
// was unreachable.
func IsNotConnected(err error) bool {
	if err == nil {
		return false
	}

	var notConnectedErr *NotConnectedError
	return errors.As(err, &notConnectedErr) || errors.Is(err, ErrNotConnected)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsTimeout checks if an error indicates a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr) || errors.Is(err, ErrTimeout)
}

// IsTransport checks if an error is a transport-level failure.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// CodeOf returns the error code for an error, or CodeUnknown when the error
// carries no code.
func CodeOf(err error) string {
	if err == nil {
		return CodeOK
	}

	var coded Error
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return CodeUnknown
}
