package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified error type of the fixture engine.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
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

// Wrap creates an AppError with the given code around cause.
// A nil cause yields nil so call sites can wrap unconditionally.
func Wrap(cause error, code ErrorCode, message string) error {
	if cause == nil {
		return nil
	}
	return New(code, message).WithCause(cause)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		appErr, ok := AsAppError(err)
		if !ok {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// --- Constructors ---

// FixtureNotFound creates an error for a fixture path that does not resolve.
func FixtureNotFound(path string) *AppError {
	return &AppError{
		Code: ErrCodeFixtureNotFound, Message: fmt.Sprintf("fixture %q was not found", path),
		Details: map[string]any{"path": path},
	}
}

// InvalidFixture creates an error for fixture content that cannot be decoded.
func InvalidFixture(path, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidFixture, Message: fmt.Sprintf("fixture %q is invalid: %s", path, reason),
		Details: map[string]any{"path": path},
	}
}

// InvalidIdentifier creates an error for an _id value that is not a valid native identifier.
func InvalidIdentifier(value any) *AppError {
	return &AppError{
		Code: ErrCodeInvalidIdentifier, Message: fmt.Sprintf("cannot coerce %v (%T) to an object id", value, value),
		Details: map[string]any{"value": value},
	}
}

// InsertError creates an error for a rejected collection batch.
func InsertError(collection string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInsert, Message: fmt.Sprintf("insert into %q failed", collection),
		Details: map[string]any{"collection": collection}, Cause: cause,
	}
}

// UploadError creates an error for a failed blob upload.
func UploadError(filename string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeUpload, Message: fmt.Sprintf("upload of %q failed", filename),
		Details: map[string]any{"filename": filename}, Cause: cause,
	}
}

// DownloadError creates an error for a failed blob download.
func DownloadError(filename string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDownload, Message: fmt.Sprintf("download of %q failed", filename),
		Details: map[string]any{"filename": filename}, Cause: cause,
	}
}

// NamespaceAbsent creates the benign error reported when dropping a missing namespace.
func NamespaceAbsent(namespace string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeNamespaceAbsent, Message: fmt.Sprintf("namespace %q does not exist", namespace),
		Details: map[string]any{"namespace": namespace}, Cause: cause,
	}
}

// DatabaseError creates an error for any other store fault.
func DatabaseError(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: fmt.Sprintf("database %s failed", operation),
		Retryable: true, Details: map[string]any{"operation": operation}, Cause: cause,
	}
}

// ConnectionFailed creates an error for a failed connection to the database server.
func ConnectionFailed(target string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("unable to connect to %s", target),
		Retryable: true, Details: map[string]any{"target": target}, Cause: cause,
	}
}

// ProviderError creates an error for a server provider that failed to provision or stop.
func ProviderError(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProvider, Message: fmt.Sprintf("server provider %q failed", provider),
		Details: map[string]any{"provider": provider}, Cause: cause,
	}
}

// NotStarted creates an error for an operation issued before Start.
func NotStarted(component string) *AppError {
	return &AppError{
		Code: ErrCodeNotStarted, Message: fmt.Sprintf("%s is not started", component),
		Details: map[string]any{"component": component},
	}
}

// InvalidConfig creates an error for an invalid configuration value.
func InvalidConfig(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidConfig, Message: message}
}
