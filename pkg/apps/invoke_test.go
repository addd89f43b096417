package apps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

type fakeRecorder struct {
	now       float64
	completed []*events.CompletedEvent
}

func (r *fakeRecorder) RecordCompleted(ce *events.CompletedEvent) {
	r.completed = append(r.completed, ce)
}
func (r *fakeRecorder) CurrentTime() float64 { return r.now }

func echoRegistry(t *testing.T, inner *Invoker) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(Tool{
		App:           "echo",
		Name:          "say",
		OperationType: events.OperationRead,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	}))
	require.NoError(t, r.Register(Tool{
		App:           "echo",
		Name:          "fail",
		OperationType: events.OperationWrite,
		Handler: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	}))
	require.NoError(t, r.Register(Tool{
		App:           "echo",
		Name:          "explode",
		OperationType: events.OperationWrite,
		Handler: func(context.Context, map[string]any) (any, error) {
			panic("kaput")
		},
	}))
	if inner != nil {
		require.NoError(t, r.Register(Tool{
			App:           "echo",
			Name:          "nested",
			OperationType: events.OperationWrite,
			Handler: func(ctx context.Context, _ map[string]any) (any, error) {
				_, res, err := inner.Call(ctx, "echo", "say", map[string]any{"text": "inner"})
				return res, err
			},
		}))
	}
	return r
}

func TestCallRecordsExactlyOneCompletedEvent(t *testing.T) {
	rec := &fakeRecorder{now: 42}
	inv := NewInvoker(echoRegistry(t, nil), rec)

	ev, res, err := inv.Call(context.Background(), "echo", "say", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", res)

	require.Len(t, rec.completed, 1)
	ce := rec.completed[0]
	assert.Same(t, ev, ce.Event)
	assert.Equal(t, events.EventTypeAgent, ce.Type)
	assert.Equal(t, 42.0, *ce.Time)
	assert.Equal(t, "hi", ce.Metadata.ReturnValue)
	assert.False(t, ce.Failed())
}

func TestCallRecordsHandlerError(t *testing.T) {
	rec := &fakeRecorder{}
	inv := NewInvoker(echoRegistry(t, nil), rec)

	_, _, err := inv.Call(context.Background(), "echo", "fail", nil)
	require.Error(t, err)

	require.Len(t, rec.completed, 1)
	assert.True(t, rec.completed[0].Failed())
	assert.Equal(t, "boom", rec.completed[0].Metadata.Exception)
}

func TestCallRecoversPanicWithStack(t *testing.T) {
	rec := &fakeRecorder{}
	inv := NewInvoker(echoRegistry(t, nil), rec)

	_, _, err := inv.Call(context.Background(), "echo", "explode", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaput")

	require.Len(t, rec.completed, 1)
	assert.True(t, rec.completed[0].Failed())
	assert.NotEmpty(t, rec.completed[0].Metadata.StackTrace)
}

func TestNestedCallsAreNotLogged(t *testing.T) {
	rec := &fakeRecorder{}
	inv := &Invoker{recorder: rec}
	inv.registry = echoRegistry(t, inv)

	_, res, err := inv.Call(context.Background(), "echo", "nested", nil)
	require.NoError(t, err)
	assert.Equal(t, "inner", res)

	require.Len(t, rec.completed, 1, "only the outer call is logged")
	assert.Equal(t, "nested", rec.completed[0].Action.Function)
}

func TestCaptureModeReturnsUnexecutedEvent(t *testing.T) {
	rec := &fakeRecorder{}
	inv := NewInvoker(echoRegistry(t, nil), rec)

	ev, res, err := inv.Call(WithCapture(context.Background()), "echo", "fail", map[string]any{"k": "v"})
	require.NoError(t, err, "handler must not run in capture mode")
	assert.Nil(t, res)

	require.NotNil(t, ev)
	assert.Nil(t, ev.Time)
	assert.Equal(t, "echo.fail", ev.Action.ToolName())
	assert.Equal(t, map[string]any{"k": "v"}, ev.Action.Args)
	assert.Empty(t, rec.completed)
}

func TestExecutePreservesEventIdentity(t *testing.T) {
	rec := &fakeRecorder{now: 7}
	inv := NewInvoker(echoRegistry(t, nil), rec)

	ev := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App:      "echo",
		Function: "say",
		Args:     map[string]any{"text": "scheduled"},
	}).WithID("env-1")

	res, err := inv.Execute(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "scheduled", res)

	require.Len(t, rec.completed, 1)
	assert.Equal(t, "env-1", rec.completed[0].ID)
	assert.Equal(t, events.EventTypeEnv, rec.completed[0].Type)
}

func TestExecuteUsesResolvedArgs(t *testing.T) {
	rec := &fakeRecorder{}
	inv := NewInvoker(echoRegistry(t, nil), rec)

	ev := events.NewWithAction(events.EventTypeEnv, &events.Action{
		App:          "echo",
		Function:     "say",
		Args:         map[string]any{"text": "{{other.ret}}"},
		ResolvedArgs: map[string]any{"text": "resolved"},
	})

	res, err := inv.Execute(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "resolved", res)
}

func TestCallUnknownTool(t *testing.T) {
	inv := NewInvoker(NewRegistry(), &fakeRecorder{})
	_, _, err := inv.Call(context.Background(), "no", "tool", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}
