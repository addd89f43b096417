package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorld struct{ t float64 }

func (w fakeWorld) CurrentTime() float64   { return w.t }
func (w fakeWorld) App(string) (any, bool) { return nil, false }

func TestConditionTimedOut(t *testing.T) {
	e := NewConditionCheck(func(WorldState) (bool, error) { return false, nil }, 2, 6)
	spec := e.Condition

	assert.False(t, spec.TimedOut())
	spec.CheckCount = 2
	assert.False(t, spec.TimedOut())
	spec.CheckCount = 3
	assert.True(t, spec.TimedOut(), "3 checks x 2 ticks reaches the 6-tick timeout")
}

func TestNextCheckRepointsSuccessors(t *testing.T) {
	cond := NewConditionCheck(func(WorldState) (bool, error) { return false, nil }, 1, 10)
	require.NoError(t, cond.At(5))

	succ := New(EventTypeEnv)
	require.NoError(t, succ.DependsOn(cond))

	cond.Condition.CheckCount = 1
	next := cond.NextCheck(1.0)

	require.NotNil(t, next.Time)
	assert.Equal(t, 6.0, *next.Time)
	assert.Equal(t, cond.Condition.baseID+"_check_1", next.ID)
	assert.Same(t, cond.Condition, next.Condition, "spec is shared so counters carry over")

	// The successor now depends on the new instance, not the old one.
	require.Len(t, succ.Dependencies, 1)
	assert.Same(t, next, succ.Dependencies[0])
	assert.Empty(t, cond.Successors)
	require.Len(t, next.Successors, 1)
	assert.Same(t, succ, next.Successors[0])
}

func TestValidationEvaluateMilestones(t *testing.T) {
	first, second := false, false
	e := NewValidation([]Milestone{
		{Name: "first", Check: func(WorldState) (bool, error) { return first, nil }},
		{Name: "second", Check: func(WorldState) (bool, error) { return second, nil }},
	}, nil, 1, 10)
	spec := e.Validation

	done, tripped, err := spec.Evaluate(fakeWorld{})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, tripped)
	assert.Equal(t, []string{"first", "second"}, spec.PendingMilestones())

	// Milestones may flip true at different checks; achieved state sticks.
	first = true
	done, _, err = spec.Evaluate(fakeWorld{})
	require.NoError(t, err)
	assert.False(t, done)

	first, second = false, true
	done, _, err = spec.Evaluate(fakeWorld{})
	require.NoError(t, err)
	assert.True(t, done, "first was already achieved, second just flipped")
}

func TestValidationMinefieldTrips(t *testing.T) {
	e := NewValidation(
		[]Milestone{{Name: "goal", Check: func(WorldState) (bool, error) { return true, nil }}},
		[]Milestone{{Name: "door_unlocked", Check: func(WorldState) (bool, error) { return true, nil }}},
		1, 10,
	)

	done, tripped, err := e.Validation.Evaluate(fakeWorld{})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "door_unlocked", tripped)
}

func TestAgentValidationIsAgentScoped(t *testing.T) {
	e := NewAgentValidation(nil, nil, 1, 5)
	assert.Equal(t, EventTypeValidation, e.Type)
	assert.True(t, e.Validation.AgentScoped)
}
