package env

import (
	"errors"
	"fmt"
)

// Package sentinel errors.
var (
	ErrNotInSetup  = errors.New("environment has already started")
	ErrNotRunning  = errors.New("environment is not running")
	ErrNotPaused   = errors.New("environment is not paused")
	ErrTerminal    = errors.New("environment has terminated")
	ErrUnknownApp  = errors.New("unknown app")
	ErrBadInterval = errors.New("time increment must be positive")
)

// ValidationError surfaces a condition timeout, a milestone timeout, or a
// tripped minefield on the loop goroutine. It moves the environment to FAILED.
type ValidationError struct {
	EventID string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for event %s: %s", e.EventID, e.Reason)
}
