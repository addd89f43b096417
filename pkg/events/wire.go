package events

import (
	"encoding/json"
	"fmt"
)

// WireEvent is the serialized scenario form of an event. Graph edges are id
// lists on the wire; UnmarshalGraph rebuilds the pointer edges. Condition and
// validation predicates are closures and do not round-trip — their events
// keep type, timing, and edges only.
type WireEvent struct {
	ClassName           string      `json:"class_name"`
	EventType           EventType   `json:"event_type"`
	EventTime           *float64    `json:"event_time"`
	EventRelativeTime   *float64    `json:"event_relative_time"`
	EventID             string      `json:"event_id"`
	Dependencies        []string    `json:"dependencies"`
	Successors          []string    `json:"successors"`
	Action              *wireAction `json:"action"`
	EventTimeComparator string      `json:"event_time_comparator,omitempty"`
	AbsoluteEventTime   *float64    `json:"absolute_event_time,omitempty"`
	Metadata            *Metadata   `json:"metadata,omitempty"`
}

type wireAction struct {
	ClassName     string         `json:"class_name"`
	AppName       string         `json:"app_name"`
	FunctionName  string         `json:"function_name"`
	Args          map[string]any `json:"args"`
	ResolvedArgs  map[string]any `json:"resolved_args,omitempty"`
	OperationType OperationType  `json:"operation_type"`
}

func classNameFor(e *Event) string {
	switch {
	case e.Type == EventTypeStop:
		return "StopEvent"
	case e.Condition != nil:
		return "ConditionCheckEvent"
	case e.Validation != nil && e.Validation.AgentScoped:
		return "AgentValidationEvent"
	case e.Validation != nil:
		return "ValidationEvent"
	case e.IsOracle:
		return "OracleEvent"
	default:
		return "Event"
	}
}

func toWire(e *Event, meta *Metadata) *WireEvent {
	w := &WireEvent{
		ClassName:         classNameFor(e),
		EventType:         e.Type,
		EventTime:         e.Time,
		EventRelativeTime: e.RelativeTime,
		EventID:           e.ID,
		Dependencies:      e.DependencyIDs(),
		Successors:        e.SuccessorIDs(),
		AbsoluteEventTime: e.AbsoluteTime,
		Metadata:          meta,
	}
	if meta != nil {
		w.ClassName = "CompletedEvent"
	}
	if e.Comparator != "" {
		w.EventTimeComparator = string(e.Comparator)
	}
	if e.Action != nil {
		w.Action = &wireAction{
			ClassName:     "Action",
			AppName:       e.Action.App,
			FunctionName:  e.Action.Function,
			Args:          e.Action.Args,
			ResolvedArgs:  e.Action.ResolvedArgs,
			OperationType: e.Action.OperationType,
		}
	}
	return w
}

func fromWire(w *WireEvent) (*Event, error) {
	if !w.EventType.IsValid() {
		return nil, fmt.Errorf("unknown event_type %q for event %s", w.EventType, w.EventID)
	}
	e := &Event{
		ID:           w.EventID,
		Type:         w.EventType,
		Time:         w.EventTime,
		RelativeTime: w.EventRelativeTime,
		AbsoluteTime: w.AbsoluteEventTime,
		IsOracle:     w.ClassName == "OracleEvent",
	}
	if w.EventTimeComparator != "" {
		c := TimeComparator(w.EventTimeComparator)
		if !c.IsValid() {
			return nil, fmt.Errorf("unknown event_time_comparator %q for event %s", w.EventTimeComparator, w.EventID)
		}
		e.Comparator = c
	}
	if w.Action != nil {
		e.Action = &Action{
			App:           w.Action.AppName,
			Function:      w.Action.FunctionName,
			Args:          w.Action.Args,
			ResolvedArgs:  w.Action.ResolvedArgs,
			OperationType: w.Action.OperationType,
		}
	}
	return e, nil
}

// MarshalGraph serializes events with their DAG edges as id lists.
func MarshalGraph(evs []*Event) ([]byte, error) {
	wires := make([]*WireEvent, len(evs))
	for i, e := range evs {
		wires[i] = toWire(e, nil)
	}
	return json.MarshalIndent(wires, "", "  ")
}

// UnmarshalGraph parses serialized events and rebuilds the dependency and
// successor pointer edges by id. An edge naming an unknown id is an error.
func UnmarshalGraph(data []byte) ([]*Event, error) {
	var wires []*WireEvent
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("failed to parse event graph: %w", err)
	}

	evs := make([]*Event, len(wires))
	byID := make(map[string]*Event, len(wires))
	for i, w := range wires {
		e, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		if _, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate event_id %q", e.ID)
		}
		evs[i] = e
		byID[e.ID] = e
	}

	for i, w := range wires {
		e := evs[i]
		for _, depID := range w.Dependencies {
			dep, ok := byID[depID]
			if !ok {
				return nil, fmt.Errorf("event %s depends on unknown event %q", e.ID, depID)
			}
			e.Dependencies = append(e.Dependencies, dep)
			dep.Successors = append(dep.Successors, e)
		}
	}
	return evs, nil
}

// MarshalCompleted serializes a log of completed events, metadata included.
func MarshalCompleted(log []*CompletedEvent) ([]byte, error) {
	wires := make([]*WireEvent, len(log))
	for i, ce := range log {
		meta := ce.Metadata
		wires[i] = toWire(ce.Event, &meta)
	}
	return json.MarshalIndent(wires, "", "  ")
}

// UnmarshalCompleted parses a serialized log of completed events.
func UnmarshalCompleted(data []byte) ([]*CompletedEvent, error) {
	var wires []*WireEvent
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("failed to parse completed events: %w", err)
	}

	out := make([]*CompletedEvent, len(wires))
	byID := make(map[string]*Event, len(wires))
	for i, w := range wires {
		e, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		byID[e.ID] = e
		meta := Metadata{Completed: true}
		if w.Metadata != nil {
			meta = *w.Metadata
		}
		out[i] = e.Completed(meta)
	}
	for i, w := range wires {
		e := out[i].Event
		for _, depID := range w.Dependencies {
			if dep, ok := byID[depID]; ok {
				e.Dependencies = append(e.Dependencies, dep)
				dep.Successors = append(dep.Successors, e)
			}
		}
	}
	return out, nil
}
