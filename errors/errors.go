package errors

import (
	stderrors "errors"
	"fmt"
)

// Stage names used in AppError.Stage.
const (
	StageFeeder    = "feeder"
	StageWorker    = "worker"
	StageCollector = "collector"
	StageRunner    = "runner"
)

// AppError is the unified pipeline error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Stage names the pipeline stage that raised the error, if any.
	Stage string `json:"stage,omitempty"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithStage sets the stage that raised the error and returns the receiver.
func (e *AppError) WithStage(stage string) *AppError {
	e.Stage = stage
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Stage error constructors ---

// SourceError wraps a failure to read or group the record source.
func SourceError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeSource, Message: "record source failed",
		Stage: StageFeeder, Cause: cause,
	}
}

// TransformError wraps a failure raised by a filter or process function
// while handling the work item identified by key.
func TransformError(key any, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransform, Message: fmt.Sprintf("transform failed for key %v", key),
		Stage: StageWorker, Cause: cause,
		Details: map[string]any{"key": key},
	}
}

// SinkError wraps a failure to open or write the named sink.
func SinkError(sink string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSink, Message: fmt.Sprintf("%s sink failed", sink),
		Stage: StageCollector, Cause: cause,
		Details: map[string]any{"sink": sink},
	}
}

// Aborted reports a run cancelled from outside the pipeline, e.g. by a
// context deadline.
func Aborted(cause error) *AppError {
	return &AppError{
		Code: ErrCodeAborted, Message: "pipeline aborted",
		Stage: StageRunner, Cause: cause,
	}
}

// InvalidConfig reports an option that is missing or out of range.
func InvalidConfig(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("invalid config: %s", reason),
		Details: details,
	}
}

// Validation creates an AppError for struct validation failures.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: message,
	}
}

// AllRejected reports a run in which every one of records was rejected and
// nothing was written.
func AllRejected(records int) *AppError {
	return &AppError{
		Code: ErrCodeAllRejected, Message: fmt.Sprintf("all %d records were rejected", records),
		Details: map[string]any{"records": records},
	}
}

// Transient marks cause as retryable.
func Transient(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransient, Message: "transient failure",
		Retryable: true, Cause: cause,
	}
}

// --- Inspection helpers ---

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Code returns the code of the outermost AppError in err's chain, or "".
func Code(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsRetryable reports whether any AppError in err's chain is retryable.
func IsRetryable(err error) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Retryable {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
