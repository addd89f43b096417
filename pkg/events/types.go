// Package events defines the event model of the simulation: typed events
// forming a DAG, the time-ordered priority queue, the future-event queue, and
// the append-only log of completed events.
package events

import "errors"

// EventType discriminates the event variants.
type EventType string

// Event type constants.
const (
	EventTypeUser       EventType = "USER"
	EventTypeEnv        EventType = "ENV"
	EventTypeAgent      EventType = "AGENT"
	EventTypeCondition  EventType = "CONDITION"
	EventTypeValidation EventType = "VALIDATION"
	EventTypeStop       EventType = "STOP"
)

// IsValid checks if the event type is a known variant.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeUser, EventTypeEnv, EventTypeAgent,
		EventTypeCondition, EventTypeValidation, EventTypeStop:
		return true
	default:
		return false
	}
}

// OperationType classifies a tool call as a read or a write against app state.
type OperationType string

// Operation type constants.
const (
	OperationRead  OperationType = "READ"
	OperationWrite OperationType = "WRITE"
)

// IsValid checks if the operation type is valid.
func (o OperationType) IsValid() bool {
	return o == OperationRead || o == OperationWrite
}

// TimeComparator selects how the judge compares an oracle event's relative
// time against the agent's. The zero value means "unset".
type TimeComparator string

// Time comparator constants.
const (
	ComparatorEqual       TimeComparator = "EQUAL"
	ComparatorLessThan    TimeComparator = "LESS_THAN"
	ComparatorGreaterThan TimeComparator = "GREATER_THAN"
)

// IsValid checks if the comparator is valid (empty counts as unset, not valid).
func (c TimeComparator) IsValid() bool {
	return c == ComparatorEqual || c == ComparatorLessThan || c == ComparatorGreaterThan
}

// WorldState is the read-only view of the environment handed to condition and
// validation predicates. Implemented by env.Environment.
type WorldState interface {
	// CurrentTime returns the current virtual time in seconds.
	CurrentTime() float64
	// App returns the registered app with the given name.
	App(name string) (any, bool)
}

// Package sentinel errors.
var (
	ErrNegativeDelay   = errors.New("relative time must be non-negative")
	ErrBothTimesSet    = errors.New("event_time and event_relative_time are mutually exclusive")
	ErrUnresolvedTime  = errors.New("event has no resolved event_time")
	ErrSelfDependency  = errors.New("event cannot depend on itself")
	ErrMismatchedDelay = errors.New("followed_by requires one delay per successor")
)
