package events

import (
	"github.com/google/uuid"
)

// Event is the single event type of the simulation. The Type tag selects the
// variant; CONDITION and VALIDATION events carry their predicate spec in the
// corresponding field, everything else carries an Action (nil for STOP).
//
// Dependencies and Successors are maintained symmetrically: adding a
// dependency through DependsOn records the back-edge on the parent. The
// pointer graph is in-memory only; on the wire both sides serialize as id
// lists (see wire.go).
type Event struct {
	ID           string
	Type         EventType
	Time         *float64
	RelativeTime *float64
	Dependencies []*Event
	Successors   []*Event
	Action       *Action

	// Oracle authoring fields, consumed only by the judge.
	IsOracle     bool
	Comparator   TimeComparator
	AbsoluteTime *float64

	// Variant payloads for CONDITION and VALIDATION events.
	Condition  *ConditionSpec
	Validation *ValidationSpec
}

// New creates an event of the given type with a generated id.
func New(t EventType) *Event {
	return &Event{ID: uuid.NewString(), Type: t}
}

// NewWithAction creates an event of the given type carrying an action.
func NewWithAction(t EventType, action *Action) *Event {
	e := New(t)
	e.Action = action
	return e
}

// NewStop creates a STOP event scheduled at the given absolute virtual time.
func NewStop(at float64) *Event {
	e := New(EventTypeStop)
	e.Time = &at
	return e
}

// WithID overrides the generated id. Returns the event for chaining.
func (e *Event) WithID(id string) *Event {
	if id != "" {
		e.ID = id
	}
	return e
}

// At sets the absolute event time. Returns ErrBothTimesSet when a relative
// time is already recorded.
func (e *Event) At(t float64) error {
	if t < 0 {
		return ErrNegativeDelay
	}
	if e.RelativeTime != nil {
		return ErrBothTimesSet
	}
	e.Time = &t
	return nil
}

// DependsOn adds parent as a dependency and records the back-edge on the
// parent. An optional delay sets the relative time added after all
// dependencies complete; a negative delay is rejected, and a delay is
// rejected when an absolute time is already set.
func (e *Event) DependsOn(parent *Event, delay ...float64) error {
	if parent == e {
		return ErrSelfDependency
	}
	if len(delay) > 0 {
		d := delay[0]
		if d < 0 {
			return ErrNegativeDelay
		}
		if e.Time != nil {
			return ErrBothTimesSet
		}
		e.RelativeTime = &d
	}
	for _, dep := range e.Dependencies {
		if dep == parent {
			return nil
		}
	}
	e.Dependencies = append(e.Dependencies, parent)
	parent.Successors = append(parent.Successors, e)
	return nil
}

// FollowedBy is the symmetric helper: each successor gains this event as a
// dependency with the matching delay. delays may be nil (no delay) or must
// have one entry per successor.
func (e *Event) FollowedBy(successors []*Event, delays []float64) error {
	if delays != nil && len(delays) != len(successors) {
		return ErrMismatchedDelay
	}
	for i, s := range successors {
		var err error
		if delays != nil {
			err = s.DependsOn(e, delays[i])
		} else {
			err = s.DependsOn(e)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// IsReady reports whether the event's absolute time is set or every
// dependency has one, i.e. ResolveAbsoluteTime can run.
func (e *Event) IsReady() bool {
	if e.Time != nil {
		return true
	}
	for _, dep := range e.Dependencies {
		if dep.Time == nil {
			return false
		}
	}
	return true
}

// ResolveAbsoluteTime computes the absolute event time when unset:
// start + relative for root events, max(dependency times) + relative
// otherwise. A no-op when the time is already set or a dependency is still
// unresolved.
func (e *Event) ResolveAbsoluteTime(start float64) {
	if e.Time != nil {
		return
	}
	rel := 0.0
	if e.RelativeTime != nil {
		rel = *e.RelativeTime
	}
	if len(e.Dependencies) == 0 {
		t := start + rel
		e.Time = &t
		return
	}
	maxDep := 0.0
	for i, dep := range e.Dependencies {
		if dep.Time == nil {
			return
		}
		if i == 0 || *dep.Time > maxDep {
			maxDep = *dep.Time
		}
	}
	t := maxDep + rel
	e.Time = &t
}

// Oracle tags the event as scenario-authored expected agent behavior.
// Returns the event for chaining.
func (e *Event) Oracle() *Event {
	e.IsOracle = true
	return e
}

// WithComparator sets the time comparator used by the judge. Only meaningful
// on oracle events.
func (e *Event) WithComparator(c TimeComparator) *Event {
	e.Comparator = c
	return e
}

// DependencyIDs returns the dependency ids in insertion order.
func (e *Event) DependencyIDs() []string {
	ids := make([]string, len(e.Dependencies))
	for i, d := range e.Dependencies {
		ids[i] = d.ID
	}
	return ids
}

// SuccessorIDs returns the successor ids in insertion order.
func (e *Event) SuccessorIDs() []string {
	ids := make([]string, len(e.Successors))
	for i, s := range e.Successors {
		ids[i] = s.ID
	}
	return ids
}

// Completed wraps the event into a CompletedEvent with the given metadata.
func (e *Event) Completed(meta Metadata) *CompletedEvent {
	return &CompletedEvent{Event: e, Metadata: meta}
}
