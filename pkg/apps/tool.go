package apps

import (
	"context"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// Handler executes a tool call against app state. Nested tool calls made by
// a handler run with event registration disabled and stay out of the log.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool describes one event-registered app method: its routing key, the
// operation class, an optional JSON Schema for the argument object, and the
// handler bound to the owning app's state.
type Tool struct {
	App           string
	Name          string
	Description   string
	OperationType events.OperationType
	ArgsSchema    map[string]any
	Handler       Handler
}

// FullName returns the registry key "app.function".
func (t Tool) FullName() string {
	return t.App + "." + t.Name
}
