package router

import (
	"errors"
	"fmt"
)

// ErrRunning is returned when routes are registered after Run has started.
var ErrRunning = errors.New("router already running")

// ErrPanic marks a HandlerError caused by a recovered panic.
var ErrPanic = errors.New("handler panicked")

// HandlerError records a failed handler invocation with its event context.
type HandlerError struct {
	Route   string
	EventID string
	Path    string
	Seq     int64
	Err     error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("route %s: event %s at %s (seq=%d): %v", e.Route, e.EventID, e.Path, e.Seq, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// IsPanic reports whether err came from a recovered handler panic.
func IsPanic(err error) bool {
	return errors.Is(err, ErrPanic)
}
