package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Fixture errors
const (
	// ErrCodeFixtureNotFound indicates a fixture reference could not be resolved.
	ErrCodeFixtureNotFound ErrorCode = "FIXTURE_NOT_FOUND"
	// ErrCodeInvalidFixture indicates fixture content could not be decoded.
	ErrCodeInvalidFixture ErrorCode = "INVALID_FIXTURE"
	// ErrCodeInvalidIdentifier indicates an _id value could not be coerced to a native identifier.
	ErrCodeInvalidIdentifier ErrorCode = "INVALID_IDENTIFIER"
)

// Store errors
const (
	// ErrCodeInsert indicates the store rejected a document batch.
	ErrCodeInsert ErrorCode = "INSERT_ERROR"
	// ErrCodeUpload indicates a blob could not be written to the bucket.
	ErrCodeUpload ErrorCode = "UPLOAD_ERROR"
	// ErrCodeDownload indicates a blob could not be read back from the bucket.
	ErrCodeDownload ErrorCode = "DOWNLOAD_ERROR"
	// ErrCodeNamespaceAbsent indicates a drop targeted a namespace that does not exist.
	ErrCodeNamespaceAbsent ErrorCode = "NAMESPACE_ABSENT"
	// ErrCodeDatabaseError indicates any other store fault.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

// Lifecycle errors
const (
	// ErrCodeConnectionFailed indicates a failed connection to the database server.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeProvider indicates the server provider could not provision or stop an instance.
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"
	// ErrCodeNotStarted indicates an operation ran before Start.
	ErrCodeNotStarted ErrorCode = "NOT_STARTED"
	// ErrCodeInvalidConfig indicates the configuration is invalid or a feature is disabled.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed: true,
	ErrCodeDatabaseError:    true,
}

// IsRetryableCode returns true if the error code indicates a transient failure.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
