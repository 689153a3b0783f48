// Package errors provides coded domain errors for the library engine.
//
// Usage:
//
//	// In services - return typed errors
//	if _, err := os.Stat(dest); err == nil {
//	    return errors.DestinationExistsf("file %q already exists", dest)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrBookNotFound) {
//	    ...
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    os.Exit(domainErr.Code.ExitCode())
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeBookNotFound      Code = "BOOK_NOT_FOUND"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeValidation        Code = "VALIDATION"
	CodeInvalidAuthor     Code = "INVALID_AUTHOR"
	CodeDestinationExists Code = "DESTINATION_EXISTS"
	CodeNoFilename        Code = "NO_FILENAME"
	CodeInternal          Code = "INTERNAL"
)

// ExitCode returns the process exit status the CLI uses for an error code.
func (c Code) ExitCode() int {
	switch c {
	case CodeValidation, CodeInvalidAuthor:
		return 2
	case CodeNotFound, CodeBookNotFound, CodeNoFilename:
		return 3
	case CodeAlreadyExists, CodeDestinationExists:
		return 4
	default:
		return 1
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrBookNotFound      = &Error{Code: CodeBookNotFound, Message: "book not found"}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInvalidAuthor     = &Error{Code: CodeInvalidAuthor, Message: "invalid author name"}
	ErrDestinationExists = &Error{Code: CodeDestinationExists, Message: "destination already exists"}
	ErrNoFilename        = &Error{Code: CodeNoFilename, Message: "book has no associated file"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// BookNotFound creates a book not found error for the given uuid.
func BookNotFound(uuid string) *Error {
	return &Error{Code: CodeBookNotFound, Message: fmt.Sprintf("book %s not found", uuid)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// AlreadyExistsf creates an already exists error with formatted message.
func AlreadyExistsf(format string, args ...any) *Error {
	return &Error{Code: CodeAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// InvalidAuthor creates an invalid author error naming the rejected value.
func InvalidAuthor(author string) *Error {
	return &Error{Code: CodeInvalidAuthor, Message: fmt.Sprintf("author %q is not usable as a directory name", author)}
}

// DestinationExistsf creates a name collision error with formatted message.
func DestinationExistsf(format string, args ...any) *Error {
	return &Error{Code: CodeDestinationExists, Message: fmt.Sprintf(format, args...)}
}

// NoFilename creates a no filename error for the given book title.
func NoFilename(title string) *Error {
	return &Error{Code: CodeNoFilename, Message: fmt.Sprintf("book %q has no associated file", title)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
