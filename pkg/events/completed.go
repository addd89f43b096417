package events

// Metadata carries the outcome of an executed event.
type Metadata struct {
	ReturnValue any    `json:"return_value"`
	Exception   string `json:"exception,omitempty"`
	StackTrace  string `json:"stack_trace,omitempty"`
	Completed   bool   `json:"completed"`
}

// CompletedEvent is an executed event plus its outcome. Completed events are
// append-only: once logged they are never mutated.
type CompletedEvent struct {
	*Event
	Metadata Metadata
}

// Failed reports whether the event's action threw or never completed.
func (ce *CompletedEvent) Failed() bool {
	return !ce.Metadata.Completed || ce.Metadata.Exception != ""
}
