package events

import (
	"encoding/json"
	"sort"
	"sync"
)

// Log is the append-only record of completed events. Appends are serialized
// by an internal mutex because the agent may invoke tools from a goroutine
// other than the environment loop. Readout is ordered by
// (event_time, append order).
type Log struct {
	mu      sync.Mutex
	entries []*CompletedEvent
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append records a completed event. Exactly one append happens per tool
// invocation; completed events are never mutated afterwards.
func (l *Log) Append(ce *CompletedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, ce)
}

// Len returns the number of logged events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// List returns a copy of the log ordered by (event_time, append order).
func (l *Log) List() []*CompletedEvent {
	l.mu.Lock()
	out := make([]*CompletedEvent, len(l.entries))
	copy(out, l.entries)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := 0.0, 0.0
		if out[i].Time != nil {
			ti = *out[i].Time
		}
		if out[j].Time != nil {
			tj = *out[j].Time
		}
		return ti < tj
	})
	return out
}

// Find returns the first logged event with the given id.
func (l *Log) Find(id string) (*CompletedEvent, bool) {
	for _, ce := range l.List() {
		if ce.ID == id {
			return ce, true
		}
	}
	return nil, false
}

// MarshalJSON serializes the ordered log in the wire format.
func (l *Log) MarshalJSON() ([]byte, error) {
	wires := make([]*WireEvent, 0, l.Len())
	for _, ce := range l.List() {
		wires = append(wires, toWire(ce.Event, &ce.Metadata))
	}
	return json.Marshal(wires)
}
