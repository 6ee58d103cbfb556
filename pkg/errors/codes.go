package errors

// Error codes for categorizing errors across the subscriber client.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeUnknown indicates an unknown error occurred.
	CodeUnknown = "UNKNOWN"

	// CodeInvalidArgument indicates the caller specified an invalid argument.
	CodeInvalidArgument = "INVALID_ARGUMENT"

	// CodeFailedPrecondition indicates an operation was rejected because the
	// manager is not in the required state (e.g. no listener configured).
	CodeFailedPrecondition = "FAILED_PRECONDITION"

	// CodeAlreadyConfigured indicates an attempt to set a listener while one
	// is already active.
	CodeAlreadyConfigured = "ALREADY_CONFIGURED"

	// CodeNotConnected indicates the remote publisher endpoint could not be
	// reached.
	CodeNotConnected = "NOT_CONNECTED"

	// CodeTimeout indicates an operation timed out.
	CodeTimeout = "TIMEOUT"

	// CodeValidation indicates input validation failed.
	CodeValidation = "VALIDATION_ERROR"

	// CodeConfigError indicates a configuration error.
	CodeConfigError = "CONFIG_ERROR"

	// CodeTransportError indicates a transport-level operation failed.
	CodeTransportError = "TRANSPORT_ERROR"

	// CodeSerializationError indicates envelope encoding/decoding failed.
	CodeSerializationError = "SERIALIZATION_ERROR"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"
)

// ErrorCategory represents a high-level error category.
type ErrorCategory string

const (
	// CategoryCaller indicates a caller-side usage error.
	CategoryCaller ErrorCategory = "CALLER_ERROR"

	// CategoryState indicates the manager was in the wrong state for the
	// requested operation.
	CategoryState ErrorCategory = "STATE_ERROR"

	// CategoryConnectivity indicates a remote-endpoint reachability error.
	CategoryConnectivity ErrorCategory = "CONNECTIVITY_ERROR"

	// CategoryTimeout indicates a timeout error.
	CategoryTimeout ErrorCategory = "TIMEOUT_ERROR"

	// CategoryInternal indicates an internal error.
	CategoryInternal ErrorCategory = "INTERNAL_ERROR"
)

// GetCategory returns the category for an error code.
func GetCategory(code string) ErrorCategory {
	switch code {
	case CodeInvalidArgument, CodeValidation, CodeConfigError:
		return CategoryCaller
	case CodeFailedPrecondition, CodeAlreadyConfigured:
		return CategoryState
	case CodeNotConnected, CodeTransportError:
		return CategoryConnectivity
	case CodeTimeout:
		return CategoryTimeout
	default:
		return CategoryInternal
	}
}
