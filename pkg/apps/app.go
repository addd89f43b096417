// Package apps defines the contract between the simulation environment and
// the pluggable stateful apps, the tool registry keyed on (app, function),
// and the event-registration wrapper that turns every tool invocation into
// exactly one logged CompletedEvent.
package apps

import "encoding/json"

// App is the minimal contract every simulated app implements. Apps own
// private mutable state, expose their tool methods through Tools, and
// support snapshotting via GetState/LoadState.
type App interface {
	// Name returns the unique app name used in tool routing.
	Name() string
	// Tools returns the event-registered tool methods of the app.
	Tools() []Tool
	// GetState returns a JSON snapshot of the app state.
	GetState() (json.RawMessage, error)
	// LoadState replaces the app state from a snapshot.
	LoadState(state json.RawMessage) error
	// Reset restores the app to its initial state.
	Reset()
}
