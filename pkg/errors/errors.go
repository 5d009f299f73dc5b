// Package errors defines the coded errors shared by parsegraph's packages.
//
// Every failure that crosses a package boundary is an [*Error] carrying a
// [Code]. Callers branch on the code rather than on message text:
//
//	res, err := svc.Analyze(ctx, code)
//	switch {
//	case errors.Is(err, errors.ErrCodeInvalidInput):
//	    // nothing was sent
//	case errors.Is(err, errors.ErrCodeTimeout):
//	    // the backend did not answer in time, even after retries
//	}
//
// The local host turns codes into HTTP statuses and the CLI into exit codes.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code is a machine-readable failure category.
type Code string

const (
	// Bad input or payload. Never retried.
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Backend transport.
	ErrCodeTimeout Code = "TIMEOUT"
	ErrCodeHTTP    Code = "HTTP_ERROR"
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Graph rendering and export.
	ErrCodeRenderUnavailable Code = "RENDER_UNAVAILABLE"
	ErrCodeRenderFailed      Code = "RENDER_FAILED"
	ErrCodeNothingToExport   Code = "NOTHING_TO_EXPORT"
	ErrCodeSurfaceNotFound   Code = "SURFACE_NOT_FOUND"

	ErrCodeCancelled Code = "CANCELLED"
	ErrCodeInternal  Code = "INTERNAL_ERROR"
)

// Error is a coded failure with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error formats as "CODE: message" or "CODE: message: cause".
func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error with a formatted message around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// outermost returns the first *Error in err's chain, or nil.
func outermost(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	e := outermost(err)
	return e != nil && e.Code == code
}

// GetCode returns the code of the outermost *Error, or "" if there is none.
func GetCode(err error) Code {
	if e := outermost(err); e != nil {
		return e.Code
	}
	return ""
}

// UserMessage renders err for people: messages along the chain without codes.
func UserMessage(err error) string {
	e := outermost(err)
	switch {
	case e == nil:
		return err.Error()
	case e.Cause == nil:
		return e.Message
	}
	return e.Message + ": " + UserMessage(e.Cause)
}

// Cancelled reports whether err is a CANCELLED error or a context
// cancellation.
func Cancelled(err error) bool {
	return Is(err, ErrCodeCancelled) || errors.Is(err, context.Canceled)
}

// IsValidation reports whether err is a validation failure. Validation
// failures describe bad input or a malformed payload and are never retried.
func IsValidation(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidConfig:
		return true
	}
	return false
}
