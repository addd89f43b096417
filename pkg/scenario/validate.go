package scenario

import (
	"fmt"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// The conversation surface: agent replies terminate a turn, user prompts
// open one.
const (
	auiApp             = "agentuserinterface"
	sendMessageToUser  = "send_message_to_user"
	sendMessageToAgent = "send_message_to_agent"
)

func isTool(e *events.Event, function string) bool {
	return e.Action != nil && e.Action.App == auiApp && e.Action.Function == function
}

func isUserReply(e *events.Event) bool { return isTool(e, sendMessageToUser) }

func isAgentPrompt(e *events.Event) bool { return isTool(e, sendMessageToAgent) }

func isMessageEvent(e *events.Event) bool { return isUserReply(e) || isAgentPrompt(e) }

// revalidate rebuilds the turn index and checks the structural invariants of
// the whole graph. Called after every mutation.
func (s *Scenario) revalidate() error {
	order, err := s.topoOrder()
	if err != nil {
		return err
	}
	s.turnIdx = computeTurns(order)

	for _, e := range s.events {
		if err := s.checkEvent(e); err != nil {
			return err
		}
	}
	return s.checkSingleConversation()
}

// topoOrder returns the events in dependency order; a cycle is an
// authoring error.
func (s *Scenario) topoOrder() ([]*events.Event, error) {
	indegree := make(map[*events.Event]int, len(s.events))
	for _, e := range s.events {
		indegree[e] = len(e.Dependencies)
	}

	var ready []*events.Event
	for _, e := range s.events {
		if indegree[e] == 0 {
			ready = append(ready, e)
		}
	}

	order := make([]*events.Event, 0, len(s.events))
	for len(ready) > 0 {
		e := ready[0]
		ready = ready[1:]
		order = append(order, e)
		for _, succ := range e.Successors {
			if _, mine := indegree[succ]; !mine {
				continue
			}
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	if len(order) != len(s.events) {
		return nil, &AuthoringError{Rule: "acyclic dependency graph", Detail: "dependency cycle detected"}
	}
	return order, nil
}

// computeTurns assigns each event to a conversation turn: an event inherits
// the maximum turn of its parents, bumped by one when a non-reply follows a
// turn-terminating agent reply.
func computeTurns(order []*events.Event) map[string]int {
	turns := make(map[string]int, len(order))
	for _, e := range order {
		turn := 0
		for _, dep := range e.Dependencies {
			t := turns[dep.ID]
			if isUserReply(dep) && !isUserReply(e) {
				t++
			}
			if t > turn {
				turn = t
			}
		}
		turns[e.ID] = turn
	}
	return turns
}

func (s *Scenario) checkEvent(e *events.Event) error {
	if !e.Type.IsValid() {
		return &AuthoringError{EventID: e.ID, Rule: "event type", Detail: fmt.Sprintf("unknown type %q", e.Type)}
	}
	if e.Time != nil && *e.Time < 0 {
		return &AuthoringError{EventID: e.ID, Rule: "non-negative time", Detail: "event_time is negative"}
	}
	if e.RelativeTime != nil && *e.RelativeTime < 0 {
		return &AuthoringError{EventID: e.ID, Rule: "non-negative time", Detail: "event_relative_time is negative"}
	}
	if e.Time != nil && e.RelativeTime != nil {
		return &AuthoringError{EventID: e.ID, Rule: "time exclusivity", Detail: "event_time and event_relative_time both set"}
	}

	// Scheduled no earlier than its parents plus the authored delay.
	if e.Time != nil && len(e.Dependencies) > 0 {
		maxDep, known := 0.0, true
		for i, dep := range e.Dependencies {
			if dep.Time == nil {
				known = false
				break
			}
			if i == 0 || *dep.Time > maxDep {
				maxDep = *dep.Time
			}
		}
		rel := 0.0
		if e.RelativeTime != nil {
			rel = *e.RelativeTime
		}
		if known && *e.Time < maxDep+rel {
			return &AuthoringError{
				EventID: e.ID,
				Rule:    "time ordering",
				Detail:  fmt.Sprintf("event_time %.3f precedes dependencies at %.3f", *e.Time, maxDep+rel),
			}
		}
	}

	if e.Type == events.EventTypeAgent && len(e.Dependencies) == 0 {
		return &AuthoringError{
			EventID: e.ID,
			Rule:    "agent events follow a trigger",
			Detail:  "AGENT event has no dependencies",
		}
	}

	if e.Type == events.EventTypeEnv {
		if len(e.Dependencies) != 1 {
			return &AuthoringError{
				EventID: e.ID,
				Rule:    "env trigger",
				Detail:  fmt.Sprintf("ENV event has %d dependencies, want exactly 1", len(e.Dependencies)),
			}
		}
		dep := e.Dependencies[0]
		switch {
		case dep.Type == events.EventTypeUser, dep.Type == events.EventTypeEnv:
		case dep.Type == events.EventTypeAgent && isAgentPrompt(dep):
		default:
			return &AuthoringError{
				EventID: e.ID,
				Rule:    "env trigger",
				Detail:  fmt.Sprintf("ENV event depends on %s event %s", dep.Type, dep.ID),
			}
		}
	}

	// Turn boundaries need no check here: computeTurns already places every
	// non-reply successor of a turn-terminating reply into the next turn.
	return nil
}

// checkSingleConversation enforces a single user↔agent message chain: every
// message event has at most one nearest message ancestor, is the nearest
// ancestor of at most one message event, and only one chain root exists.
func (s *Scenario) checkSingleConversation() error {
	ancestors := make(map[*events.Event][]*events.Event)

	var nearest func(e *events.Event, seen map[*events.Event]bool) []*events.Event
	nearest = func(e *events.Event, seen map[*events.Event]bool) []*events.Event {
		var out []*events.Event
		for _, dep := range e.Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if isMessageEvent(dep) {
				out = append(out, dep)
				continue
			}
			out = append(out, nearest(dep, seen)...)
		}
		return out
	}

	roots := 0
	children := make(map[*events.Event]int)
	for _, e := range s.events {
		if !isMessageEvent(e) {
			continue
		}
		anc := nearest(e, map[*events.Event]bool{})
		ancestors[e] = anc
		if len(anc) > 1 {
			return &AuthoringError{
				EventID: e.ID,
				Rule:    "single conversation branch",
				Detail:  fmt.Sprintf("message event follows %d message events", len(anc)),
			}
		}
		if len(anc) == 0 {
			roots++
			if roots > 1 {
				return &AuthoringError{
					EventID: e.ID,
					Rule:    "single conversation branch",
					Detail:  "more than one conversation start",
				}
			}
		} else {
			children[anc[0]]++
			if children[anc[0]] > 1 {
				return &AuthoringError{
					EventID: e.ID,
					Rule:    "single conversation branch",
					Detail:  fmt.Sprintf("message event %s has multiple message successors", anc[0].ID),
				}
			}
		}
	}
	return nil
}

// validateTurnTimes applies the per-turn timing rule to a newly added or
// edited event. The rule only engages when some event in the turn carries a
// relative time above one second; turns authored entirely with delays in
// {0, 1} skip it.
func (s *Scenario) validateTurnTimes(e *events.Event) error {
	turn, ok := s.turnIdx[e.ID]
	if !ok {
		return nil
	}

	if len(e.Dependencies) > 0 {
		first := s.turnIdx[e.Dependencies[0].ID]
		for _, dep := range e.Dependencies[1:] {
			if s.turnIdx[dep.ID] != first {
				return &AuthoringError{
					EventID: e.ID,
					Rule:    "turn timing",
					Detail:  "dependencies span multiple turns",
				}
			}
		}
	}

	var turnEvents []*events.Event
	engaged := false
	for _, other := range s.events {
		if s.turnIdx[other.ID] != turn {
			continue
		}
		turnEvents = append(turnEvents, other)
		if other.RelativeTime != nil && *other.RelativeTime > 1 {
			engaged = true
		}
	}
	if !engaged {
		return nil
	}

	accum := s.accumulatedTimes(turnEvents, turn)

	var reply *events.Event
	maxOther := 0.0
	for _, other := range turnEvents {
		if isUserReply(other) {
			reply = other
		} else if accum[other.ID] > maxOther {
			maxOther = accum[other.ID]
		}
	}

	if isUserReply(e) {
		if accum[e.ID] != maxOther {
			return &AuthoringError{
				EventID: e.ID,
				Rule:    "turn timing",
				Detail: fmt.Sprintf("reply accumulated time %.3f must equal the turn maximum %.3f",
					accum[e.ID], maxOther),
			}
		}
		return nil
	}
	if reply != nil && accum[e.ID] > accum[reply.ID] {
		return &AuthoringError{
			EventID: e.ID,
			Rule:    "turn timing",
			Detail: fmt.Sprintf("accumulated time %.3f exceeds the turn reply at %.3f",
				accum[e.ID], accum[reply.ID]),
		}
	}
	return nil
}

// accumulatedTimes computes, per event of a turn, the relative time summed
// along the dependency chain from the turn start.
func (s *Scenario) accumulatedTimes(turnEvents []*events.Event, turn int) map[string]float64 {
	inTurn := make(map[string]bool, len(turnEvents))
	for _, e := range turnEvents {
		inTurn[e.ID] = true
	}

	accum := make(map[string]float64, len(turnEvents))
	var compute func(e *events.Event) float64
	compute = func(e *events.Event) float64 {
		if v, done := accum[e.ID]; done {
			return v
		}
		base := 0.0
		for _, dep := range e.Dependencies {
			if !inTurn[dep.ID] || s.turnIdx[dep.ID] != turn {
				continue
			}
			if v := compute(dep); v > base {
				base = v
			}
		}
		rel := 0.0
		if e.RelativeTime != nil {
			rel = *e.RelativeTime
		}
		accum[e.ID] = base + rel
		return accum[e.ID]
	}
	for _, e := range turnEvents {
		compute(e)
	}
	return accum
}
