package upstream

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassTransport represents network, DNS and timeout failures.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassDecode represents a body that is not the expected JSON envelope.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassLogical represents an envelope whose code field is not 200.
	ErrorClassLogical ErrorClass = "logical"
)

// Sentinels matched with errors.Is against an *UpstreamError.
var (
	ErrTransport = errors.New("upstream transport failure")
	ErrDecode    = errors.New("upstream decode failure")
	ErrLogical   = errors.New("upstream logical failure")
)

// UpstreamError describes a failed image lookup.
type UpstreamError struct {
	// Class is the failure kind.
	Class ErrorClass

	// Device is the device category that was requested.
	Device string

	// StatusCode is the HTTP status of the upstream response (0 on transport failure).
	StatusCode int

	// Code is the code field from the JSON envelope (logical failures only).
	Code int

	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	switch e.Class {
	case ErrorClassLogical:
		return fmt.Sprintf("upstream %s error for %q (status %d): code %d",
			e.Class, e.Device, e.StatusCode, e.Code)
	case ErrorClassTransport:
		return fmt.Sprintf("upstream %s error for %q: %v", e.Class, e.Device, e.Err)
	default:
		return fmt.Sprintf("upstream %s error for %q (status %d): %v",
			e.Class, e.Device, e.StatusCode, e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's class.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Class == ErrorClassTransport
	case ErrDecode:
		return e.Class == ErrorClassDecode
	case ErrLogical:
		return e.Class == ErrorClassLogical
	}
	return false
}

// ClassOf returns the class of err, or "" when err is not an upstream failure.
func ClassOf(err error) ErrorClass {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Class
	}
	return ""
}
