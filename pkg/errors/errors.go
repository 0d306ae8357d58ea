// Package errors defines the coded errors reqlint returns.
//
// Every failure a user or API client can act on carries a [Code]. The CLI
// prints [UserMessage] and the HTTP API maps the code to a status:
//
//   - INVALID_*: the input could not be parsed or validated (400)
//   - *NOT_FOUND: a file, package or stored report does not exist (404)
//   - NETWORK_ERROR, TIMEOUT, RATE_LIMITED: the package index misbehaved
//   - INTERNAL_ERROR, UNSUPPORTED: everything else
//
// Build errors with [New] or [Wrap] and test them with [Is]:
//
//	err := errors.New(errors.ErrCodeInvalidSpecifier, "unknown operator in %q", spec)
//	if errors.Is(err, errors.ErrCodeInvalidSpecifier) {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidPackage   Code = "INVALID_PACKAGE"
	ErrCodeInvalidFormat    Code = "INVALID_FORMAT"
	ErrCodeInvalidManifest  Code = "INVALID_MANIFEST"
	ErrCodeInvalidSpecifier Code = "INVALID_SPECIFIER"
	ErrCodeInvalidVersion   Code = "INVALID_VERSION"
	ErrCodeInvalidMarker    Code = "INVALID_MARKER"
	ErrCodeInvalidPath      Code = "INVALID_PATH"

	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"
	ErrCodeReportNotFound  Code = "REPORT_NOT_FOUND"

	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with a formatted message around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// coded is implemented by error types that report their code through a
// method, such as [RateLimitedError].
type coded interface {
	error
	Code() Code
}

// GetCode returns the code of the outermost coded error in err's chain, or ""
// when there is none.
func GetCode(err error) Code {
	var e *Error
	var c coded
	switch {
	case err == nil:
		return ""
	case errors.As(err, &e):
		return e.Code
	case errors.As(err, &c):
		return c.Code()
	}
	return ""
}

// Is reports whether the outermost coded error in err's chain has code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// UserMessage returns the message of the outermost [*Error] without its code
// prefix, or err.Error() for other errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError is returned when the index answers 429.
type RateLimitedError struct {
	RetryAfter int // seconds, 0 when the index did not say
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns [ErrCodeRateLimited].
func (e *RateLimitedError) Code() Code { return ErrCodeRateLimited }
