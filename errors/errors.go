package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// PlatformError is implemented by every error created by this package.
// Use As to extract it from a wrapped chain:
//
//	var perr errors.PlatformError
//	if errors.As(err, &perr) && perr.Code() == errors.CodeInvalidState {
//	    ...
//	}
type PlatformError interface {
	error

	// Code returns the error classification.
	Code() ErrorCode

	// Message returns the human-readable message without the cause.
	Message() string

	// Context returns additional key/value details. Never nil.
	Context() map[string]any

	// Unwrap returns the underlying cause, if any.
	Unwrap() error
}

type platformError struct {
	code    ErrorCode
	message string
	context map[string]any
	cause   error
}

func (e *platformError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *platformError) Code() ErrorCode { return e.code }

func (e *platformError) Message() string { return e.message }

func (e *platformError) Context() map[string]any {
	if e.context == nil {
		return map[string]any{}
	}
	return maps.Clone(e.context)
}

func (e *platformError) Unwrap() error { return e.cause }

// Is reports a match when target is a PlatformError with the same code and no
// message of its own, which lets sentinel values like ErrInvalidState be used
// with errors.Is.
func (e *platformError) Is(target error) bool {
	t, ok := target.(*platformError)
	if !ok {
		return false
	}
	return t.code == e.code && (t.message == "" || t.message == e.message)
}

// Sentinels for errors.Is checks. They carry only a code.
var (
	ErrInvalidConfig = &platformError{code: CodeInvalidConfig}
	ErrInvalidState  = &platformError{code: CodeInvalidState}
	ErrSpawnFailed   = &platformError{code: CodeSpawnFailed}
	ErrUsageWarning  = &platformError{code: CodeUsageWarning}
	ErrConflict      = &platformError{code: CodeConflict}
)

// New creates a new error with the given code and message.
//
//nolint:ireturn // constructors return the interface so callers never depend on the concrete type.
func New(code ErrorCode, message string) PlatformError {
	return &platformError{code: code, message: message}
}

// Newf creates a new error with a printf-style message.
//
//nolint:ireturn // see New.
func Newf(code ErrorCode, format string, args ...any) PlatformError {
	return &platformError{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a code and message. A nil cause still yields an error.
//
//nolint:ireturn // see New.
func Wrap(cause error, code ErrorCode, message string) PlatformError {
	return &platformError{code: code, message: message, cause: cause}
}

// WrapWithContext wraps cause and attaches key/value context.
//
//nolint:ireturn // see New.
func WrapWithContext(cause error, code ErrorCode, message string, context map[string]any) PlatformError {
	return &platformError{code: code, message: message, cause: cause, context: maps.Clone(context)}
}

// NewWithContext creates a new error with key/value context and no cause.
//
//nolint:ireturn // see New.
func NewWithContext(code ErrorCode, message string, context map[string]any) PlatformError {
	return &platformError{code: code, message: message, context: maps.Clone(context)}
}

// GetCode returns the code of the first PlatformError in err's chain,
// or CodeUnknown if there is none. A nil error yields "".
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var perr PlatformError
	if stderrors.As(err, &perr) {
		return perr.Code()
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsWarning reports whether err is advisory only.
func IsWarning(err error) bool {
	return HasCode(err, CodeUsageWarning)
}

// Warning creates a usage warning.
//
//nolint:ireturn // see New.
func Warning(message string) PlatformError {
	return New(CodeUsageWarning, message)
}

// Is is errors.Is from the standard library, re-exported for convenience.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is errors.As from the standard library, re-exported for convenience.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join is errors.Join from the standard library, re-exported for convenience.
func Join(errs ...error) error { return stderrors.Join(errs...) }
