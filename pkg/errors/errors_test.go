package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{New(ErrCodeInvalidInput, "source text is empty"), "INVALID_INPUT: source text is empty"},
		{New(ErrCodeHTTP, "backend returned %d", 503), "HTTP_ERROR: backend returned 503"},
		{Wrap(ErrCodeNetwork, errors.New("connection refused"), "POST /analyse"), "NETWORK_ERROR: POST /analyse: connection refused"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := context.DeadlineExceeded
	err := Wrap(ErrCodeTimeout, cause, "analysis timed out")

	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is should see through to the cause")
	}
}

func TestCodeLookup(t *testing.T) {
	inner := New(ErrCodeInvalidFormat, "missing parseTree")
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{"direct", New(ErrCodeSurfaceNotFound, "no surface ast"), ErrCodeSurfaceNotFound},
		{"outermost wins", Wrap(ErrCodeHTTP, inner, "analysis failed"), ErrCodeHTTP},
		{"behind fmt wrap", fmt.Errorf("file main.rs: %w", inner), ErrCodeInvalidFormat},
		{"plain", errors.New("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %q, want %q", got, tt.code)
			}
			if tt.code != "" && !Is(tt.err, tt.code) {
				t.Errorf("Is(err, %s) = false", tt.code)
			}
			if Is(tt.err, ErrCodeInternal) {
				t.Error("Is should not match an unrelated code")
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"single", New(ErrCodeInvalidInput, "source text is empty"), "source text is empty"},
		{"chain", Wrap(ErrCodeHTTP, New(ErrCodeInvalidFormat, "bad payload"), "analysis failed"), "analysis failed: bad payload"},
		{"plain cause", Wrap(ErrCodeNetwork, errors.New("connection refused"), "backend unreachable"), "backend unreachable: connection refused"},
		{"plain", errors.New("plain error"), "plain error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	for _, code := range []Code{ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidConfig} {
		if !IsValidation(New(code, "x")) {
			t.Errorf("%s should be a validation error", code)
		}
	}
	for _, err := range []error{New(ErrCodeTimeout, "x"), New(ErrCodeNetwork, "x"), errors.New("plain")} {
		if IsValidation(err) {
			t.Errorf("%v should not be a validation error", err)
		}
	}
}

func TestCancelled(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{Wrap(ErrCodeCancelled, context.Canceled, "analysis cancelled"), true},
		{fmt.Errorf("batch: %w", context.Canceled), true},
		{New(ErrCodeTimeout, "analysis timed out"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := Cancelled(tt.err); got != tt.want {
			t.Errorf("Cancelled(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
