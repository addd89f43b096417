// Package scenario implements the authoring surface of the simulator: a
// container of apps and an event DAG, with mutation operations that
// revalidate the structural invariants, per-event turn indexing, and JSON
// load/store of the serialized scenario format.
package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/env"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// Scenario holds the apps and the event DAG of one evaluation case. Events
// are kept in insertion order; the id index and the turn index are rebuilt
// on every mutation.
type Scenario struct {
	Name      string
	EnvConfig env.Config

	// InitAndPopulateApps constructs the apps and their initial contents.
	InitAndPopulateApps func(reg *apps.Registry) error
	// BuildEventsFlow builds the event DAG through the mutation surface.
	BuildEventsFlow func(s *Scenario) error
	// Validate runs scenario-specific checks against the finished run.
	Validate func(e *env.Environment) error

	registry *apps.Registry
	events   []*events.Event
	index    map[string]*events.Event
	turnIdx  map[string]int
}

// New creates an empty scenario.
func New(name string, cfg env.Config) *Scenario {
	return &Scenario{
		Name:      name,
		EnvConfig: cfg,
		registry:  apps.NewRegistry(),
		index:     make(map[string]*events.Event),
		turnIdx:   make(map[string]int),
	}
}

// Registry returns the scenario's app registry.
func (s *Scenario) Registry() *apps.Registry { return s.registry }

// Events returns the events in insertion order.
func (s *Scenario) Events() []*events.Event {
	out := make([]*events.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Event returns the event with the given id.
func (s *Scenario) Event(id string) (*events.Event, bool) {
	e, ok := s.index[id]
	return e, ok
}

// OracleEvents returns the oracle-tagged events in insertion order.
func (s *Scenario) OracleEvents() []*events.Event {
	var out []*events.Event
	for _, e := range s.events {
		if e.IsOracle {
			out = append(out, e)
		}
	}
	return out
}

// TurnIndex returns the turn the event belongs to.
func (s *Scenario) TurnIndex(id string) (int, bool) {
	t, ok := s.turnIdx[id]
	return t, ok
}

// Build runs the authoring hooks and leaves the scenario validated.
func (s *Scenario) Build() error {
	if s.InitAndPopulateApps != nil {
		if err := s.InitAndPopulateApps(s.registry); err != nil {
			return fmt.Errorf("init apps for scenario %s: %w", s.Name, err)
		}
	}
	if s.BuildEventsFlow != nil {
		if err := s.BuildEventsFlow(s); err != nil {
			return fmt.Errorf("build events for scenario %s: %w", s.Name, err)
		}
	}
	return s.revalidate()
}

// AddEvent inserts the event and revalidates every structural invariant
// plus the turn-time rule for the new event.
func (s *Scenario) AddEvent(e *events.Event) error {
	if _, dup := s.index[e.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, e.ID)
	}
	s.events = append(s.events, e)
	s.index[e.ID] = e
	if err := s.revalidate(); err != nil {
		return err
	}
	return s.validateTurnTimes(e)
}

// EditEvent applies the mutation to the identified event and revalidates.
// A failed revalidation leaves the scenario invalid; the caller owns the
// repair.
func (s *Scenario) EditEvent(id string, mutate func(e *events.Event) error) error {
	e, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}
	if err := mutate(e); err != nil {
		return err
	}
	if err := s.revalidate(); err != nil {
		return err
	}
	return s.validateTurnTimes(e)
}

// DeleteEvent removes the event, detaches its edges on both sides, and
// revalidates the remaining graph.
func (s *Scenario) DeleteEvent(id string) error {
	e, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}

	for _, dep := range e.Dependencies {
		dep.Successors = removeEvent(dep.Successors, e)
	}
	for _, succ := range e.Successors {
		succ.Dependencies = removeEvent(succ.Dependencies, e)
	}
	delete(s.index, id)
	s.events = removeEvent(s.events, e)

	return s.revalidate()
}

func removeEvent(list []*events.Event, e *events.Event) []*events.Event {
	out := list[:0]
	for _, item := range list {
		if item != e {
			out = append(out, item)
		}
	}
	return out
}

// Capture invokes a tool in capture mode: the handler does not run and the
// returned event carries the bound action, ready to be chained and added.
func (s *Scenario) Capture(app, function string, args map[string]any) (*events.Event, error) {
	inv := apps.NewInvoker(s.registry, discardRecorder{})
	ev, _, err := inv.Call(apps.WithCapture(context.Background()), app, function, args)
	return ev, err
}

// discardRecorder backs capture-mode invocations, which never record.
type discardRecorder struct{}

func (discardRecorder) RecordCompleted(*events.CompletedEvent) {}
func (discardRecorder) CurrentTime() float64                   { return 0 }

// NewEnvironment creates an environment over the scenario's apps and
// schedules the root events. Successors enter the queue as their parents
// complete.
func (s *Scenario) NewEnvironment(logger *slog.Logger) (*env.Environment, error) {
	e, err := env.New(s.EnvConfig, s.registry, logger)
	if err != nil {
		return nil, err
	}
	for _, ev := range s.events {
		if len(ev.Dependencies) > 0 {
			continue
		}
		if err := e.Schedule(ev); err != nil {
			return nil, fmt.Errorf("schedule root event %s: %w", ev.ID, err)
		}
	}
	return e, nil
}
