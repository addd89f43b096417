// Package env implements the discrete-event environment loop: a lifecycle
// state machine over a virtual clock, a future-event queue, and an
// append-only log. The loop is single-threaded and cooperative; the agent
// may call tools concurrently from its own goroutine and the invoker
// serializes log appends.
package env

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/clock"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// Config controls one environment run.
type Config struct {
	// StartTime is the virtual time at scenario start, in seconds.
	StartTime float64
	// Duration bounds the run; <= 0 means run until the queue drains or a
	// STOP event fires.
	Duration float64
	// TimeIncrement is the tick quantum in seconds; defaults to 1.
	TimeIncrement float64
	// OracleMode fires oracle events as if the agent produced them, to
	// record a ground-truth trace.
	OracleMode bool
	// QueueBasedLoop runs ticks back to back; when false the caller drives
	// ticks one at a time through Step (visualization).
	QueueBasedLoop bool
	// ToolAugmentation, when set, injects seeded tool-call failures and
	// scrambles the tool listing the agent sees.
	ToolAugmentation *apps.ToolAugmentationConfig
}

func (c *Config) applyDefaults() error {
	if c.TimeIncrement == 0 {
		c.TimeIncrement = 1
	}
	if c.TimeIncrement < 0 {
		return ErrBadInterval
	}
	if c.StartTime < 0 {
		c.StartTime = 0
	}
	return nil
}

// Environment owns the clock, the registered apps, the future-event queue,
// and the completed-event log for one simulation run.
type Environment struct {
	cfg      Config
	clk      *clock.Clock
	registry *apps.Registry
	invoker  *apps.Invoker
	queue    *events.Queue
	log      *events.Log
	logger   *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	state   State
	failure error
}

// New creates an environment in SETUP over the given registry.
func New(cfg Config, registry *apps.Registry, logger *slog.Logger) (*Environment, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Environment{
		cfg:      cfg,
		clk:      clock.New(cfg.StartTime),
		registry: registry,
		queue:    events.NewQueue(),
		log:      events.NewLog(),
		logger:   logger.With("component", "env"),
		state:    StateSetup,
	}
	e.cond = sync.NewCond(&e.mu)
	e.invoker = apps.NewInvoker(registry, e)
	if cfg.ToolAugmentation != nil {
		e.invoker.WithFaultInjector(apps.NewFaultInjector(*cfg.ToolAugmentation))
	}
	return e, nil
}

// Tools returns the agent-facing tool listing, augmented per the run config.
func (e *Environment) Tools() []apps.ToolDescriptor {
	return e.registry.Describe(e.cfg.ToolAugmentation)
}

// CurrentTime implements events.WorldState.
func (e *Environment) CurrentTime() float64 { return e.clk.Time() }

// App implements events.WorldState: predicates downcast to the concrete app.
func (e *Environment) App(name string) (any, bool) {
	a, ok := e.registry.App(name)
	if !ok {
		return nil, false
	}
	return a, true
}

// RecordCompleted implements apps.Recorder. The log carries its own mutex,
// which is the single serialization point between the loop goroutine and the
// agent's.
func (e *Environment) RecordCompleted(ce *events.CompletedEvent) {
	e.log.Append(ce)
}

// Invoker returns the event-registration wrapper the agent calls tools
// through.
func (e *Environment) Invoker() *apps.Invoker { return e.invoker }

// Log returns the completed-event log.
func (e *Environment) Log() *events.Log { return e.log }

// QueueLen returns the number of scheduled future events.
func (e *Environment) QueueLen() int { return e.queue.Len() }

// State returns the current lifecycle state.
func (e *Environment) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Failure returns the error that moved the environment to FAILED, if any.
func (e *Environment) Failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

// Schedule resolves the event's absolute time against the start time and
// enqueues it. Events whose dependencies are not yet resolved are scheduled
// later, when their last dependency completes. Scheduling into a stopped or
// failed environment is refused.
func (e *Environment) Schedule(ev *events.Event) error {
	if s := e.State(); s.Terminal() {
		return fmt.Errorf("%w: state %s", ErrTerminal, s)
	}
	ev.ResolveAbsoluteTime(e.cfg.StartTime)
	if ev.Time == nil {
		return fmt.Errorf("event %s: %w", ev.ID, events.ErrUnresolvedTime)
	}
	return e.queue.Push(ev)
}

// Start moves SETUP to RUNNING.
func (e *Environment) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSetup {
		return fmt.Errorf("%w: state %s", ErrNotInSetup, e.state)
	}
	e.state = StateRunning
	e.logger.Info("environment started",
		"start_time", e.cfg.StartTime,
		"tick_seconds", e.cfg.TimeIncrement,
		"oracle_mode", e.cfg.OracleMode)
	return nil
}

// Pause suspends the loop after the current tick.
func (e *Environment) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("%w: state %s", ErrNotRunning, e.state)
	}
	e.state = StatePaused
	return nil
}

// Resume continues a paused loop.
func (e *Environment) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return fmt.Errorf("%w: state %s", ErrNotPaused, e.state)
	}
	e.state = StateRunning
	e.cond.Broadcast()
	return nil
}

// Stop terminates the loop after the current tick, from any state.
func (e *Environment) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Terminal() {
		return
	}
	e.state = StateStopped
	e.cond.Broadcast()
}

func (e *Environment) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateFailed
	e.failure = err
	e.cond.Broadcast()
	e.logger.Error("environment failed", "error", err)
}

// pastEnd reports whether the bounded run window has elapsed.
func (e *Environment) pastEnd() bool {
	if e.cfg.Duration <= 0 {
		return false
	}
	return e.clk.Time() >= e.cfg.StartTime+e.cfg.Duration
}

// Run drives the loop until STOPPED, FAILED, the duration elapses, or the
// context is cancelled. The environment is started first when still in
// SETUP. The returned error is the failure that moved the loop to FAILED,
// nil on a clean stop.
func (e *Environment) Run(ctx context.Context) error {
	if e.State() == StateSetup {
		if err := e.Start(); err != nil {
			return err
		}
	}

	for {
		e.mu.Lock()
		for e.state == StatePaused {
			e.cond.Wait()
		}
		state := e.state
		e.mu.Unlock()

		if state != StateRunning {
			break
		}
		if ctx.Err() != nil {
			e.Stop()
			return ctx.Err()
		}
		if e.pastEnd() || (e.cfg.Duration <= 0 && e.queue.Len() == 0) {
			e.Stop()
			break
		}
		if err := e.Step(ctx); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Info("environment finished",
		"state", string(e.state),
		"end_time", e.clk.Time(),
		"logged_events", e.log.Len())
	return e.failure
}

// Step executes one tick: pop the due events, dispatch them in
// (event_time, event_id) order, then advance the clock. A validation error
// moves the environment to FAILED and is returned.
func (e *Environment) Step(ctx context.Context) error {
	if e.State() != StateRunning {
		return fmt.Errorf("%w: state %s", ErrNotRunning, e.State())
	}

	now := e.clk.Time()
	for _, ev := range e.queue.PopDue(now) {
		if err := e.dispatch(ctx, ev); err != nil {
			e.fail(err)
			return err
		}
		if e.State() != StateRunning {
			return nil
		}
	}
	return e.clk.Advance(e.cfg.TimeIncrement)
}

func (e *Environment) dispatch(ctx context.Context, ev *events.Event) error {
	if ev.IsOracle && !e.cfg.OracleMode {
		// Oracle events exist for the judge; a live run skips them but
		// keeps the downstream environment reactions flowing.
		e.scheduleSuccessors(ev)
		return nil
	}

	switch ev.Type {
	case events.EventTypeStop:
		e.logger.Info("stop event fired", "event_id", ev.ID, "time", *ev.Time)
		e.RecordCompleted(ev.Completed(events.Metadata{Completed: true}))
		e.Stop()
		return nil
	case events.EventTypeCondition:
		return e.runCondition(ev)
	case events.EventTypeValidation:
		return e.runValidation(ev)
	default:
		e.resolvePlaceholders(ev)
		_, err := e.invoker.Execute(ctx, ev)
		if err != nil {
			// Execution failures live on the completed event's metadata;
			// the loop keeps going but failed events gate their successors.
			e.logger.Warn("event execution failed",
				"event_id", ev.ID,
				"tool", ev.Action.ToolName(),
				"error", err)
			return nil
		}
		e.scheduleSuccessors(ev)
		return nil
	}
}

func (e *Environment) runCondition(ev *events.Event) error {
	spec := ev.Condition
	spec.CheckCount++

	ok, err := spec.Check(e)
	meta := events.Metadata{ReturnValue: ok, Completed: err == nil}
	if err != nil {
		meta.Exception = err.Error()
	}
	e.RecordCompleted(ev.Completed(meta))

	switch {
	case err != nil:
		return fmt.Errorf("condition %s: %w", ev.ID, err)
	case ok:
		e.scheduleSuccessors(ev)
		return nil
	case spec.TimedOut():
		return &ValidationError{EventID: ev.ID, Reason: "condition timed out"}
	default:
		return e.queue.Push(ev.NextCheck(e.cfg.TimeIncrement))
	}
}

func (e *Environment) runValidation(ev *events.Event) error {
	spec := ev.Validation
	spec.CheckCount++

	done, tripped, err := spec.Evaluate(e)
	meta := events.Metadata{ReturnValue: done, Completed: err == nil}
	if err != nil {
		meta.Exception = err.Error()
	}
	e.RecordCompleted(ev.Completed(meta))

	switch {
	case err != nil:
		return fmt.Errorf("validation %s: %w", ev.ID, err)
	case tripped != "":
		return &ValidationError{EventID: ev.ID, Reason: "minefield tripped: " + tripped}
	case done:
		e.scheduleSuccessors(ev)
		return nil
	case spec.TimedOut():
		return &ValidationError{
			EventID: ev.ID,
			Reason:  fmt.Sprintf("milestones not achieved: %v", spec.PendingMilestones()),
		}
	default:
		return e.queue.Push(ev.NextCheck(e.cfg.TimeIncrement))
	}
}

// resolvePlaceholders substitutes "{{event_id}}" arguments with the return
// value of the completed event they name, so a scheduled action can consume
// an id produced earlier in the run.
func (e *Environment) resolvePlaceholders(ev *events.Event) {
	if ev.Action == nil {
		return
	}
	var resolved map[string]any
	for k, v := range ev.Action.EffectiveArgs() {
		id, ok := events.PlaceholderID(v)
		if !ok {
			continue
		}
		ce, found := e.log.Find(id)
		if !found || ce.Metadata.ReturnValue == nil {
			continue
		}
		if resolved == nil {
			resolved = make(map[string]any, len(ev.Action.EffectiveArgs()))
			for ak, av := range ev.Action.EffectiveArgs() {
				resolved[ak] = av
			}
		}
		resolved[k] = ce.Metadata.ReturnValue
	}
	if resolved != nil {
		ev.Action.ResolvedArgs = resolved
	}
}

// scheduleSuccessors resolves and enqueues the successors of a non-failed
// event. A successor with an unresolved dependency stays out of the queue
// until its last dependency completes; same-id pushes dedupe in the queue.
func (e *Environment) scheduleSuccessors(ev *events.Event) {
	for _, s := range ev.Successors {
		s.ResolveAbsoluteTime(e.cfg.StartTime)
		if s.Time == nil {
			continue
		}
		if err := e.queue.Push(s); err != nil {
			e.logger.Warn("successor not scheduled", "event_id", s.ID, "error", err)
		}
	}
}

// Snapshot captures every registered app's state as JSON, keyed by app name.
func (e *Environment) Snapshot() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	for name, app := range e.registry.Apps() {
		state, err := app.GetState()
		if err != nil {
			return nil, fmt.Errorf("snapshot app %s: %w", name, err)
		}
		out[name] = state
	}
	return out, nil
}

// Restore loads previously captured app states.
func (e *Environment) Restore(snap map[string]json.RawMessage) error {
	for name, state := range snap {
		app, ok := e.registry.App(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, name)
		}
		if err := app.LoadState(state); err != nil {
			return fmt.Errorf("restore app %s: %w", name, err)
		}
	}
	return nil
}
