package env

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// counterApp increments on demand and fails on request.
type counterApp struct {
	mu    sync.Mutex
	count int
}

func (a *counterApp) Name() string { return "counter" }

func (a *counterApp) Tools() []apps.Tool {
	return []apps.Tool{
		{
			Name:          "inc",
			OperationType: events.OperationWrite,
			Handler: func(context.Context, map[string]any) (any, error) {
				a.mu.Lock()
				defer a.mu.Unlock()
				a.count++
				return a.count, nil
			},
		},
		{
			Name:          "boom",
			OperationType: events.OperationWrite,
			Handler: func(context.Context, map[string]any) (any, error) {
				return nil, errors.New("boom")
			},
		},
	}
}

func (a *counterApp) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *counterApp) GetState() (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return json.Marshal(map[string]int{"count": a.count})
}

func (a *counterApp) LoadState(state json.RawMessage) error {
	var s map[string]int
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	a.mu.Lock()
	a.count = s["count"]
	a.mu.Unlock()
	return nil
}

func (a *counterApp) Reset() {
	a.mu.Lock()
	a.count = 0
	a.mu.Unlock()
}

func newTestEnv(t *testing.T, cfg Config) (*Environment, *counterApp) {
	t.Helper()
	app := &counterApp{}
	r := apps.NewRegistry()
	require.NoError(t, r.RegisterApp(app))
	e, err := New(cfg, r, nil)
	require.NoError(t, err)
	return e, app
}

func envEvent(tool string, at float64) *events.Event {
	e := events.NewWithAction(events.EventTypeEnv, &events.Action{App: "counter", Function: tool})
	t := at
	e.Time = &t
	return e
}

func TestRunExecutesEventsInOrder(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 10})

	first := envEvent("inc", 2).WithID("a")
	second := envEvent("inc", 5).WithID("b")
	require.NoError(t, e.Schedule(second))
	require.NoError(t, e.Schedule(first))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, 2, app.Count())

	logged := e.Log().List()
	require.Len(t, logged, 2)
	assert.Equal(t, "a", logged[0].ID)
	assert.Equal(t, "b", logged[1].ID)
	assert.Equal(t, 2.0, *logged[0].Time)
}

func TestStopEventHaltsTheLoop(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 100})

	require.NoError(t, e.Schedule(envEvent("inc", 1)))
	require.NoError(t, e.Schedule(events.NewStop(3)))
	require.NoError(t, e.Schedule(envEvent("inc", 50)))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, 1, app.Count(), "events after the stop never run")
}

func TestSuccessorsFireAfterCompletionWithDelay(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 20})

	root := envEvent("inc", 2)
	child := events.NewWithAction(events.EventTypeEnv, &events.Action{App: "counter", Function: "inc"})
	require.NoError(t, child.DependsOn(root, 3))
	require.NoError(t, e.Schedule(root))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 2, app.Count())

	logged := e.Log().List()
	require.Len(t, logged, 2)
	assert.Equal(t, 5.0, *logged[1].Time, "child runs at parent time + delay")
}

func TestFailedEventGatesSuccessors(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 20})

	root := envEvent("boom", 1)
	child := events.NewWithAction(events.EventTypeEnv, &events.Action{App: "counter", Function: "inc"})
	require.NoError(t, child.DependsOn(root, 1))
	require.NoError(t, e.Schedule(root))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 0, app.Count())

	logged := e.Log().List()
	require.Len(t, logged, 1)
	assert.True(t, logged[0].Failed())
	assert.Equal(t, "boom", logged[0].Metadata.Exception)
}

func TestConditionReleasesSuccessorsWhenTrue(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 20})

	cond := events.NewConditionCheck(func(ws events.WorldState) (bool, error) {
		a, ok := ws.App("counter")
		require.True(t, ok)
		return a.(*counterApp).Count() >= 1, nil
	}, 1, 0)
	require.NoError(t, cond.At(0))

	after := events.NewWithAction(events.EventTypeEnv, &events.Action{App: "counter", Function: "inc"})
	require.NoError(t, after.DependsOn(cond))

	require.NoError(t, e.Schedule(cond))
	require.NoError(t, e.Schedule(envEvent("inc", 3)))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 2, app.Count(), "successor ran once the predicate held")
}

func TestConditionTimeoutFailsTheRun(t *testing.T) {
	e, _ := newTestEnv(t, Config{Duration: 20})

	cond := events.NewConditionCheck(func(events.WorldState) (bool, error) {
		return false, nil
	}, 1, 3)
	require.NoError(t, cond.At(0))
	require.NoError(t, e.Schedule(cond))

	err := e.Run(context.Background())
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StateFailed, e.State())
	assert.Same(t, err, e.Failure())
}

func TestValidationMinefieldFailsTheRun(t *testing.T) {
	e, _ := newTestEnv(t, Config{Duration: 20})

	val := events.NewValidation(
		[]events.Milestone{{Name: "goal", Check: func(events.WorldState) (bool, error) { return false, nil }}},
		[]events.Milestone{{Name: "tripwire", Check: func(events.WorldState) (bool, error) { return true, nil }}},
		1, 10,
	)
	require.NoError(t, val.At(1))
	require.NoError(t, e.Schedule(val))

	err := e.Run(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "tripwire")
}

func TestValidationMilestonesAcrossChecks(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 20})

	val := events.NewValidation(
		[]events.Milestone{{Name: "two_incs", Check: func(ws events.WorldState) (bool, error) {
			a, _ := ws.App("counter")
			return a.(*counterApp).Count() >= 2, nil
		}}},
		nil, 1, 15,
	)
	require.NoError(t, val.At(0))
	require.NoError(t, e.Schedule(val))
	require.NoError(t, e.Schedule(envEvent("inc", 2)))
	require.NoError(t, e.Schedule(envEvent("inc", 4)))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, 2, app.Count())
}

func TestOracleEventsSkippedOutsideOracleMode(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 10})
	require.NoError(t, e.Schedule(envEvent("inc", 1).Oracle()))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 0, app.Count())
	assert.Equal(t, 0, e.Log().Len())
}

func TestOracleModeFiresOracleEvents(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 10, OracleMode: true})
	ev := envEvent("inc", 1)
	ev.Type = events.EventTypeAgent
	require.NoError(t, e.Schedule(ev.Oracle()))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 1, app.Count())

	logged := e.Log().List()
	require.Len(t, logged, 1)
	assert.Equal(t, events.EventTypeAgent, logged[0].Type)
}

func TestUnboundedRunStopsWhenQueueDrains(t *testing.T) {
	e, app := newTestEnv(t, Config{})
	require.NoError(t, e.Schedule(envEvent("inc", 2)))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, 1, app.Count())
}

func TestLifecycleTransitions(t *testing.T) {
	e, _ := newTestEnv(t, Config{Duration: 5})

	assert.ErrorIs(t, e.Pause(), ErrNotRunning)
	require.NoError(t, e.Start())
	assert.ErrorIs(t, e.Start(), ErrNotInSetup)
	require.NoError(t, e.Pause())
	assert.Equal(t, StatePaused, e.State())
	require.NoError(t, e.Resume())
	e.Stop()
	assert.Equal(t, StateStopped, e.State())
	e.Stop() // idempotent on terminal states
	assert.Equal(t, StateStopped, e.State())
}

func TestScheduleRejectedAfterTerminalState(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 5})
	require.NoError(t, e.Schedule(envEvent("inc", 1).WithID("a")))
	require.NoError(t, e.Run(context.Background()))
	require.Equal(t, StateStopped, e.State())

	err := e.Schedule(envEvent("inc", 2).WithID("b"))
	assert.ErrorIs(t, err, ErrTerminal)
	assert.Equal(t, 1, app.Count())
}

func TestAgentCallsLandInTheLog(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 5})
	require.NoError(t, e.Start())

	_, _, err := e.Invoker().Call(context.Background(), "counter", "inc", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, app.Count())

	logged := e.Log().List()
	require.Len(t, logged, 1)
	assert.Equal(t, events.EventTypeAgent, logged[0].Type)
	assert.Equal(t, 0.0, *logged[0].Time)
}

func TestSnapshotAndRestore(t *testing.T) {
	e, app := newTestEnv(t, Config{Duration: 5})

	app.count = 3
	snap, err := e.Snapshot()
	require.NoError(t, err)

	app.Reset()
	require.NoError(t, e.Restore(snap))
	assert.Equal(t, 3, app.Count())

	assert.ErrorIs(t, e.Restore(map[string]json.RawMessage{"ghost": nil}), ErrUnknownApp)
}
