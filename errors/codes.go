// Package errors provides the error taxonomy shared by the rsync command builder,
// the process supervisor and the tooling built on top of them.
// It extends Go's standard error handling with structured error codes, attached
// context and an advisory (warning) classification.
package errors

// ErrorCode represents a specific error condition.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Configuration errors.

	// CodeInvalidConfig indicates the sync specification or a job file is invalid.
	// Raised before any process is built; never silently downgraded.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeInvalidInput indicates an argument passed to an API is malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Lifecycle errors.

	// CodeInvalidState indicates an operation was attempted from a state that forbids it,
	// for example starting a supervisor twice.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeConflict indicates a resource is already owned by someone else,
	// for example an output file locked by another supervisor.
	CodeConflict ErrorCode = "CONFLICT"

	// Execution errors.

	// CodeSpawnFailed indicates the executable could not be located or exec failed.
	CodeSpawnFailed ErrorCode = "SPAWN_FAILED"

	// CodeExecutionFailed indicates the child process exited with a non-zero status.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// CodeTerminated indicates the child process was killed before it could exit on its own.
	CodeTerminated ErrorCode = "TERMINATED"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// Advisory.

	// CodeUsageWarning marks a non-fatal misuse. Execution continues and the
	// error is returned only so callers can surface it.
	CodeUsageWarning ErrorCode = "USAGE_WARNING"

	// Resource errors.

	// CodeNotFound indicates a requested resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeIO indicates a filesystem operation failed.
	CodeIO ErrorCode = "IO_ERROR"

	// System errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
