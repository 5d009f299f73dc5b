package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	perrors "github.com/matzehuels/parsegraph/pkg/errors"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindNetwork covers connection failures, DNS errors and broken bodies.
	KindNetwork Kind = iota
	// KindTimeout means the hard per-call deadline expired.
	KindTimeout
	// KindHTTP means the server answered with a non-2xx status.
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	default:
		return "network"
	}
}

// TransportError is the classified failure of a single [Client.Send] call.
type TransportError struct {
	Kind       Kind
	StatusCode int           // set for KindHTTP
	Status     string        // status text for KindHTTP, e.g. "Not Found"
	Timeout    time.Duration // set for KindTimeout
	Err        error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
	case KindTimeout:
		return fmt.Sprintf("request timed out after %s", e.Timeout)
	default:
		if e.Err != nil {
			return fmt.Sprintf("network error: %v", e.Err)
		}
		return "network error"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help. Only client errors (4xx)
// are permanent; timeouts, 5xx and network failures are transient.
func (e *TransportError) Permanent() bool {
	return e.Kind == KindHTTP && e.StatusCode >= 400 && e.StatusCode < 500
}

// Code maps the failure onto the shared error code taxonomy.
func (e *TransportError) Code() perrors.Code {
	switch e.Kind {
	case KindHTTP:
		return perrors.ErrCodeHTTP
	case KindTimeout:
		return perrors.ErrCodeTimeout
	default:
		return perrors.ErrCodeNetwork
	}
}

func httpError(code int) *TransportError {
	return &TransportError{Kind: KindHTTP, StatusCode: code, Status: http.StatusText(code)}
}

// PermanentError wraps an error to indicate it must not be retried.
// Wrap failures that describe a malformed request or response with this type
// so that [Retry] gives up immediately.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError. Permanent(nil) returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err should stop a retry loop: an explicit
// [PermanentError], a 4xx [TransportError], or a validation error.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.As(err, new(*PermanentError)) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Permanent()
	}
	return perrors.IsValidation(err)
}

// CodeOf returns the error code that best describes err.
func CodeOf(err error) perrors.Code {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code()
	}
	if code := perrors.GetCode(err); code != "" {
		return code
	}
	return perrors.ErrCodeInternal
}
