package events

import (
	"fmt"
	"strings"
)

// Predicate evaluates a condition against the current world state.
type Predicate func(ws WorldState) (bool, error)

// ConditionSpec is the payload of a CONDITION event: a predicate re-checked
// every EveryTicks ticks until it holds or the timeout elapses. The spec is
// shared between re-emitted instances so the check count carries over.
type ConditionSpec struct {
	Check      Predicate
	EveryTicks int
	Timeout    int // in ticks; <= 0 means no timeout
	CheckCount int

	baseID string
}

// TimedOut reports whether the condition has exhausted its tick budget.
func (s *ConditionSpec) TimedOut() bool {
	return s.Timeout > 0 && s.CheckCount*s.EveryTicks >= s.Timeout
}

// Milestone is a named predicate used by validation events.
type Milestone struct {
	Name  string
	Check Predicate
}

// ValidationSpec is the payload of a VALIDATION event: all milestones must
// become true within the timeout, and any minefield becoming true aborts the
// run with a failure. Achieved state is shared across re-emitted instances.
type ValidationSpec struct {
	Milestones []Milestone
	Minefields []Milestone
	EveryTicks int
	Timeout    int // in ticks; <= 0 means no timeout
	CheckCount int
	Achieved   []bool

	// AgentScoped marks the agent-validation variant, which judges agent
	// behavior rather than environment state.
	AgentScoped bool

	baseID string
}

// TimedOut reports whether the validation has exhausted its tick budget.
func (s *ValidationSpec) TimedOut() bool {
	return s.Timeout > 0 && s.CheckCount*s.EveryTicks >= s.Timeout
}

// Evaluate runs minefields then pending milestones against the world state.
// It returns done=true when every milestone has been achieved, and the name
// of the first tripped minefield otherwise.
func (s *ValidationSpec) Evaluate(ws WorldState) (done bool, tripped string, err error) {
	for _, m := range s.Minefields {
		ok, cerr := m.Check(ws)
		if cerr != nil {
			return false, "", fmt.Errorf("minefield %q: %w", m.Name, cerr)
		}
		if ok {
			return false, m.Name, nil
		}
	}
	if s.Achieved == nil {
		s.Achieved = make([]bool, len(s.Milestones))
	}
	done = true
	for i, m := range s.Milestones {
		if s.Achieved[i] {
			continue
		}
		ok, cerr := m.Check(ws)
		if cerr != nil {
			return false, "", fmt.Errorf("milestone %q: %w", m.Name, cerr)
		}
		if ok {
			s.Achieved[i] = true
		} else {
			done = false
		}
	}
	return done, "", nil
}

// PendingMilestones returns the names of milestones not yet achieved.
func (s *ValidationSpec) PendingMilestones() []string {
	var pending []string
	for i, m := range s.Milestones {
		if i >= len(s.Achieved) || !s.Achieved[i] {
			pending = append(pending, m.Name)
		}
	}
	return pending
}

// NewConditionCheck creates a CONDITION event carrying the given predicate.
func NewConditionCheck(check Predicate, everyTicks, timeout int) *Event {
	if everyTicks < 1 {
		everyTicks = 1
	}
	e := New(EventTypeCondition)
	e.Condition = &ConditionSpec{
		Check:      check,
		EveryTicks: everyTicks,
		Timeout:    timeout,
		baseID:     e.ID,
	}
	return e
}

// NewValidation creates a VALIDATION event with the given milestones and
// minefields.
func NewValidation(milestones, minefields []Milestone, everyTicks, timeout int) *Event {
	if everyTicks < 1 {
		everyTicks = 1
	}
	e := New(EventTypeValidation)
	e.Validation = &ValidationSpec{
		Milestones: milestones,
		Minefields: minefields,
		EveryTicks: everyTicks,
		Timeout:    timeout,
		Achieved:   make([]bool, len(milestones)),
		baseID:     e.ID,
	}
	return e
}

// NewAgentValidation creates the agent-scoped validation variant.
func NewAgentValidation(milestones, minefields []Milestone, everyTicks, timeout int) *Event {
	e := NewValidation(milestones, minefields, everyTicks, timeout)
	e.Validation.AgentScoped = true
	return e
}

// NextCheck re-emits the event for its next periodic check. The new instance
// shares the variant spec (counters and achieved milestones carry over), is
// scheduled EveryTicks ticks after the current instance, takes the base id
// suffixed with the check count, and takes over the successors of the old
// instance so they fire only once the check finally passes.
func (e *Event) NextCheck(tickSeconds float64) *Event {
	next := &Event{
		Type:         e.Type,
		RelativeTime: e.RelativeTime,
		Dependencies: e.Dependencies,
		Condition:    e.Condition,
		Validation:   e.Validation,
		IsOracle:     e.IsOracle,
	}

	var baseID string
	var every, count int
	switch {
	case e.Condition != nil:
		baseID, every, count = e.Condition.baseID, e.Condition.EveryTicks, e.Condition.CheckCount
	case e.Validation != nil:
		baseID, every, count = e.Validation.baseID, e.Validation.EveryTicks, e.Validation.CheckCount
	default:
		baseID, every, count = e.ID, 1, 0
	}
	if baseID == "" {
		baseID = strings.SplitN(e.ID, "_check_", 2)[0]
	}
	next.ID = fmt.Sprintf("%s_check_%d", baseID, count)

	if e.Time != nil {
		t := *e.Time + float64(every)*tickSeconds
		next.Time = &t
	}

	// Re-point successors from the old instance to the new one.
	next.Successors = e.Successors
	for _, s := range next.Successors {
		for i, dep := range s.Dependencies {
			if dep == e {
				s.Dependencies[i] = next
			}
		}
	}
	e.Successors = nil

	return next
}
