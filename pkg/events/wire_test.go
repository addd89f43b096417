package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleGraph(t *testing.T) []*Event {
	user := NewWithAction(EventTypeUser, &Action{
		App:           "agentuserinterface",
		Function:      "send_message_to_agent",
		Args:          map[string]any{"content": "find the image file"},
		OperationType: OperationWrite,
	}).WithID("user-0")
	require.NoError(t, user.At(0))

	agent := NewWithAction(EventTypeAgent, &Action{
		App:           "agentuserinterface",
		Function:      "send_message_to_user",
		Args:          map[string]any{"content": "llama.jpg"},
		OperationType: OperationWrite,
	}).WithID("agent-0").Oracle().WithComparator(ComparatorLessThan)
	require.NoError(t, agent.DependsOn(user, 1))

	stop := NewStop(30)
	stop.ID = "stop-0"

	return []*Event{user, agent, stop}
}

func TestGraphRoundTrip(t *testing.T) {
	original := buildSampleGraph(t)

	data, err := MarshalGraph(original)
	require.NoError(t, err)

	restored, err := UnmarshalGraph(data)
	require.NoError(t, err)
	require.Len(t, restored, len(original))

	byID := make(map[string]*Event)
	for _, e := range restored {
		byID[e.ID] = e
	}

	user := byID["user-0"]
	agent := byID["agent-0"]
	stop := byID["stop-0"]
	require.NotNil(t, user)
	require.NotNil(t, agent)
	require.NotNil(t, stop)

	// Ids, timing, and edges survive the round trip.
	assert.Equal(t, EventTypeUser, user.Type)
	assert.Equal(t, 0.0, *user.Time)
	assert.Equal(t, []string{"user-0"}, agent.DependencyIDs())
	assert.Equal(t, []string{"agent-0"}, user.SuccessorIDs())
	assert.Equal(t, 1.0, *agent.RelativeTime)
	assert.True(t, agent.IsOracle)
	assert.Equal(t, ComparatorLessThan, agent.Comparator)
	assert.Equal(t, EventTypeStop, stop.Type)
	assert.Equal(t, 30.0, *stop.Time)

	// Action contents survive.
	require.NotNil(t, agent.Action)
	assert.Equal(t, "send_message_to_user", agent.Action.Function)
	assert.Equal(t, "llama.jpg", agent.Action.Args["content"])
	assert.Equal(t, OperationWrite, agent.Action.OperationType)

	// Serializing again yields the same wire form.
	again, err := MarshalGraph(restored)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestUnmarshalGraphRejectsUnknownDependency(t *testing.T) {
	_, err := UnmarshalGraph([]byte(`[
		{"class_name":"Event","event_type":"AGENT","event_id":"a","dependencies":["ghost"],"successors":[]}
	]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestUnmarshalGraphRejectsDuplicateIDs(t *testing.T) {
	_, err := UnmarshalGraph([]byte(`[
		{"class_name":"Event","event_type":"USER","event_id":"dup","dependencies":[],"successors":[]},
		{"class_name":"Event","event_type":"USER","event_id":"dup","dependencies":[],"successors":[]}
	]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestUnmarshalGraphRejectsUnknownType(t *testing.T) {
	_, err := UnmarshalGraph([]byte(`[
		{"class_name":"Event","event_type":"BOGUS","event_id":"x","dependencies":[],"successors":[]}
	]`))
	assert.Error(t, err)
}

func TestLogListOrdering(t *testing.T) {
	l := NewLog()

	e2 := timedEvent(t, "b", 2)
	e1 := timedEvent(t, "a", 1)
	l.Append(e2.Completed(Metadata{Completed: true}))
	l.Append(e1.Completed(Metadata{Completed: true}))

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	found, ok := l.Find("b")
	require.True(t, ok)
	assert.False(t, found.Failed())
}

func TestCompletedFailed(t *testing.T) {
	e := timedEvent(t, "x", 0)

	ok := e.Completed(Metadata{Completed: true})
	assert.False(t, ok.Failed())

	failed := e.Completed(Metadata{Completed: true, Exception: "boom"})
	assert.True(t, failed.Failed())

	unfinished := e.Completed(Metadata{})
	assert.True(t, unfinished.Failed())
}
