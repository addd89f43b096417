package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/llm"
)

func at(e *events.Event, t float64) *events.Event {
	e.Time = &t
	return e
}

func action(app, fn string, op events.OperationType, args map[string]any) *events.Action {
	return &events.Action{App: app, Function: fn, Args: args, OperationType: op}
}

func done(e *events.Event, ret any) *events.CompletedEvent {
	return e.Completed(events.Metadata{ReturnValue: ret, Completed: true})
}

// fixture builds one turn: user prompt, an expected write, an expected
// reply depending on the write.
type fixture struct {
	prompt, write, reply *events.Event
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	prompt := at(events.NewWithAction(events.EventTypeUser,
		action("agentuserinterface", "send_message_to_agent", events.OperationWrite,
			map[string]any{"content": "save the note then confirm"})).WithID("u1"), 0)

	write := events.NewWithAction(events.EventTypeAgent,
		action("files", "write_file", events.OperationWrite,
			map[string]any{"path": "/notes.txt", "content": "note"})).WithID("o-write").Oracle()
	require.NoError(t, write.DependsOn(prompt))
	at(write, 1)

	reply := events.NewWithAction(events.EventTypeAgent,
		action("agentuserinterface", "send_message_to_user", events.OperationWrite,
			map[string]any{"content": "saved"})).WithID("o-reply").Oracle()
	require.NoError(t, reply.DependsOn(write))
	at(reply, 2)

	return fixture{prompt: prompt, write: write, reply: reply}
}

func (f fixture) oracle() []*events.Event {
	return []*events.Event{f.prompt, f.write, f.reply}
}

// replay renders the oracle as the agent trace it prescribes.
func (f fixture) replay() []*events.CompletedEvent {
	return []*events.CompletedEvent{
		done(f.prompt, nil),
		done(f.write, "ok"),
		done(f.reply, nil),
	}
}

func singleTurn(string) int { return 0 }

func newGraphJudge() *GraphJudge {
	return NewGraphJudge(&Config{}, nil)
}

func TestJudgeReflexivity(t *testing.T) {
	f := newFixture(t)

	j, err := newGraphJudge().Judge(context.Background(), f.replay(), f.oracle(), singleTurn)
	require.NoError(t, err)
	assert.True(t, j.Success, j.FailureReason)
	assert.Equal(t, "o-write", j.AgentToOracle["o-write"])
	assert.Equal(t, "o-reply", j.AgentToOracle["o-reply"])
}

func TestJudgeToleratesExtraUserMessage(t *testing.T) {
	f := newFixture(t)

	extra := at(events.NewWithAction(events.EventTypeAgent,
		action("agentuserinterface", "send_message_to_user", events.OperationWrite,
			map[string]any{"content": "working on it"})).WithID("a-extra"), 1)
	log := f.replay()
	log = append(log[:1], append([]*events.CompletedEvent{done(extra, nil)}, log[1:]...)...)

	j, err := newGraphJudge().Judge(context.Background(), log, f.oracle(), singleTurn)
	require.NoError(t, err)
	assert.True(t, j.Success, j.FailureReason)

	// A second extra message exceeds the allowance.
	extra2 := at(events.NewWithAction(events.EventTypeAgent,
		action("agentuserinterface", "send_message_to_user", events.OperationWrite,
			map[string]any{"content": "almost"})).WithID("a-extra2"), 1)
	log = append(log, done(extra2, nil))

	j, err = newGraphJudge().Judge(context.Background(), log, f.oracle(), singleTurn)
	require.NoError(t, err)
	require.False(t, j.Success)
	counts, ok := j.Failure.(*ToolCallCountsFailure)
	require.True(t, ok, j.FailureReason)
	assert.Contains(t, counts.Extra, "agentuserinterface.send_message_to_user")
}

func TestJudgeMissingToolCall(t *testing.T) {
	f := newFixture(t)
	log := []*events.CompletedEvent{done(f.prompt, nil), done(f.reply, nil)}

	j, err := newGraphJudge().Judge(context.Background(), log, f.oracle(), singleTurn)
	require.NoError(t, err)
	require.False(t, j.Success)
	counts, ok := j.Failure.(*ToolCallCountsFailure)
	require.True(t, ok, j.FailureReason)
	assert.Equal(t, []string{"files.write_file"}, counts.Missing)
}

func TestJudgeUnorderedListInsensitivity(t *testing.T) {
	f := newFixture(t)
	f.write.Action.Args = map[string]any{"attendees": []any{"alice", "bob"}}
	f.write.Action.Function = "invite"
	f.write.Action.App = "calendar"

	agentWrite := at(events.NewWithAction(events.EventTypeAgent,
		action("calendar", "invite", events.OperationWrite,
			map[string]any{"attendees": []any{"bob", "alice"}})).WithID("a-write"), 1)
	log := []*events.CompletedEvent{
		done(f.prompt, nil), done(agentWrite, "ok"), done(f.reply, nil),
	}

	cfg := &Config{PerToolArgCheckers: map[string]map[string]CheckerType{
		"calendar.invite": {"attendees": CheckerUnorderedList},
	}}
	j, err := NewGraphJudge(cfg, nil).Judge(context.Background(), log, f.oracle(), singleTurn)
	require.NoError(t, err)
	assert.True(t, j.Success, j.FailureReason)
	assert.Equal(t, "o-write", j.AgentToOracle["a-write"])
}

func TestJudgePlaceholderResolution(t *testing.T) {
	f := newFixture(t)
	f.reply.Action.Args = map[string]any{"content": "{{o-write}}"}

	agentWrite := at(events.NewWithAction(events.EventTypeAgent,
		action("files", "write_file", events.OperationWrite,
			map[string]any{"path": "/notes.txt", "content": "note"})).WithID("a-write"), 1)
	agentReply := at(events.NewWithAction(events.EventTypeAgent,
		action("agentuserinterface", "send_message_to_user", events.OperationWrite,
			map[string]any{"content": "file-789"})).WithID("a-reply"), 2)
	log := []*events.CompletedEvent{
		done(f.prompt, nil), done(agentWrite, "file-789"), done(agentReply, nil),
	}

	j, err := newGraphJudge().Judge(context.Background(), log, f.oracle(), singleTurn)
	require.NoError(t, err)
	assert.True(t, j.Success, j.FailureReason,
		"oracle {{o-write}} resolves to the matched event's return value")
}

func TestJudgeCausalityOrdering(t *testing.T) {
	f := newFixture(t)

	// The agent replied before doing the work.
	agentReply := at(events.NewWithAction(events.EventTypeAgent,
		action("agentuserinterface", "send_message_to_user", events.OperationWrite,
			map[string]any{"content": "saved"})).WithID("a-reply"), 1)
	agentWrite := at(events.NewWithAction(events.EventTypeAgent,
		action("files", "write_file", events.OperationWrite,
			map[string]any{"path": "/notes.txt", "content": "note"})).WithID("a-write"), 2)
	log := []*events.CompletedEvent{
		done(f.prompt, nil), done(agentReply, nil), done(agentWrite, "ok"),
	}

	j, err := newGraphJudge().Judge(context.Background(), log, f.oracle(), singleTurn)
	require.NoError(t, err)
	require.False(t, j.Success)
	matching, ok := j.Failure.(*OracleEventMatchingFailure)
	require.True(t, ok, j.FailureReason)
	assert.Equal(t, "o-reply", matching.OracleID)
	require.NotEmpty(t, matching.Comparisons)
	assert.Contains(t, matching.Comparisons[0].Detail, "not earlier in the log")
}

func TestJudgeMissingEnvEvent(t *testing.T) {
	f := newFixture(t)
	oracle := f.oracle()

	log := f.replay()[1:] // prompt never logged

	j, err := newGraphJudge().Judge(context.Background(), log, oracle, singleTurn)
	require.NoError(t, err)
	require.False(t, j.Success)
	envFail, ok := j.Failure.(*EnvOracleMatchingFailure)
	require.True(t, ok, j.FailureReason)
	assert.Equal(t, "u1", envFail.OracleID)
}

func TestJudgeCycleIsAnError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.write.DependsOn(f.reply)) // write → reply → write

	_, err := newGraphJudge().Judge(context.Background(), f.replay(), f.oracle(), singleTurn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestToolJudgeScriptedModeSkipsSoft(t *testing.T) {
	stub := llm.NewStubEngine("[[failure]]")
	cfg := &Config{
		Engine:                stub,
		PerToolSoftCheckers:   map[string][]CheckerType{"files.write_file": {SoftContent}},
		ScriptedCheckerParams: map[string]map[string]CheckerType{},
	}
	tj := NewToolJudge(cfg)

	a := action("files", "write_file", events.OperationWrite, map[string]any{"path": "/a"})
	ok, detail, err := tj.Judge(context.Background(), a, a, "o1", "")
	require.NoError(t, err)
	assert.True(t, ok, detail)
	assert.Zero(t, stub.CallCount(), "scripted mode never consults the engine")
}

func TestToolJudgeSoftCheckerRuns(t *testing.T) {
	stub := llm.NewStubEngine("[[success]]")
	cfg := &Config{
		Engine:              stub,
		PerToolSoftCheckers: map[string][]CheckerType{"files.write_file": {SoftContent}},
	}
	tj := NewToolJudge(cfg)

	a := action("files", "write_file", events.OperationWrite, map[string]any{"path": "/a"})
	ok, _, err := tj.Judge(context.Background(), a, a, "o1", "save a note")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, stub.CallCount())
}

func TestInContextJudge(t *testing.T) {
	f := newFixture(t)
	stub := llm.NewStubEngine("looks right\n[[success]]")

	j, err := NewInContextJudge(stub).Judge(context.Background(), f.replay(), f.oracle())
	require.NoError(t, err)
	assert.True(t, j.Success)

	stub = llm.NewStubEngine("the note was never saved\n[[failure]]")
	j, err = NewInContextJudge(stub).Judge(context.Background(), f.replay(), f.oracle())
	require.NoError(t, err)
	require.False(t, j.Success)
	assert.Contains(t, j.FailureReason, "failure")
}
