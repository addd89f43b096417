package scenario

import (
	"errors"
	"fmt"
)

// Package sentinel errors.
var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrDuplicateEvent = errors.New("event id already present")
)

// AuthoringError reports a structural invariant violation surfaced
// synchronously at scenario build or mutation time.
type AuthoringError struct {
	EventID string
	Rule    string
	Detail  string
}

func (e *AuthoringError) Error() string {
	return fmt.Sprintf("invalid scenario: event %s violates %s: %s", e.EventID, e.Rule, e.Detail)
}
