package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Fatal stage errors. The first one raised aborts the run.
const (
	// ErrCodeSource indicates the record source could not be read or grouped.
	ErrCodeSource ErrorCode = "SOURCE_ERROR"
	// ErrCodeTransform indicates a filter or process function failed.
	ErrCodeTransform ErrorCode = "TRANSFORM_ERROR"
	// ErrCodeSink indicates a pass or fail sink could not be opened or written.
	ErrCodeSink ErrorCode = "SINK_ERROR"
	// ErrCodeAborted indicates the run was cancelled by its supervisor.
	ErrCodeAborted ErrorCode = "ABORTED"
)

// Configuration errors
const (
	// ErrCodeInvalidConfig indicates an option is missing or out of range.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Outcome errors
const (
	// ErrCodeAllRejected indicates every record was rejected and none written.
	ErrCodeAllRejected ErrorCode = "ALL_REJECTED"
	// ErrCodeTransient marks a failure that may succeed when retried.
	ErrCodeTransient ErrorCode = "TRANSIENT"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransient: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
