package apps

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// Recorder receives the completed events produced by tool invocations and
// supplies the current virtual time they are stamped with. The environment
// implements it; tests use a slice-backed fake.
type Recorder interface {
	RecordCompleted(ce *events.CompletedEvent)
	CurrentTime() float64
}

// Invoker is the event-registration wrapper around the tool registry. Every
// Call appends exactly one CompletedEvent to the recorder, whether the
// handler returned or panicked, unless registration is disabled on the
// context (nested calls) or capture mode is active.
type Invoker struct {
	registry *Registry
	recorder Recorder
	faults   *FaultInjector
}

// NewInvoker wires the registry to a recorder.
func NewInvoker(registry *Registry, recorder Recorder) *Invoker {
	return &Invoker{registry: registry, recorder: recorder}
}

// WithFaultInjector enables fault injection on top-level calls. A nil
// injector is a no-op. Returns the invoker for chaining.
func (inv *Invoker) WithFaultInjector(f *FaultInjector) *Invoker {
	inv.faults = f
	return inv
}

// Call invokes the tool registered under (app, function).
//
// In capture mode the handler never runs: the returned event is an agent
// event carrying the action, for scheduling or oracle authoring. Otherwise
// the arguments are validated, the handler runs with registration disabled,
// and the outcome is logged. The returned event is the logged one.
func (inv *Invoker) Call(ctx context.Context, app, function string, args map[string]any) (*events.Event, any, error) {
	tool, ok := inv.registry.Lookup(app, function)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownTool, app, function)
	}

	action := &events.Action{
		App:           app,
		Function:      function,
		Args:          args,
		OperationType: tool.OperationType,
	}

	if CaptureEnabled(ctx) {
		return events.NewWithAction(events.EventTypeAgent, action), nil, nil
	}

	ev := events.NewWithAction(events.EventTypeAgent, action)
	result, err := inv.run(ctx, tool, ev, args)
	return ev, result, err
}

// Execute runs an environment-scheduled event whose action is already bound.
// The event keeps its id and type; its resolved arguments take precedence
// over the authored ones.
func (inv *Invoker) Execute(ctx context.Context, ev *events.Event) (any, error) {
	if ev.Action == nil {
		return nil, fmt.Errorf("event %s has no action", ev.ID)
	}
	tool, ok := inv.registry.Lookup(ev.Action.App, ev.Action.Function)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, ev.Action.ToolName())
	}
	return inv.run(ctx, tool, ev, ev.Action.EffectiveArgs())
}

// run validates, executes, and logs. Exactly one CompletedEvent is recorded
// per top-level invocation; a handler panic is converted into a failed
// completion with the stack attached.
func (inv *Invoker) run(ctx context.Context, tool Tool, ev *events.Event, args map[string]any) (result any, err error) {
	if regErr := inv.registry.ValidateArgs(tool.App, tool.Name, args); regErr != nil {
		inv.record(ev, nil, regErr, "")
		return nil, regErr
	}

	if registrationDisabled(ctx) {
		return tool.Handler(ctx, args)
	}

	if inv.faults.Trip() {
		err = fmt.Errorf("tool %s: %w", tool.FullName(), ErrInjectedFailure)
		inv.record(ev, nil, err, "")
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.FullName(), r)
			inv.record(ev, nil, err, string(debug.Stack()))
		}
	}()

	result, err = tool.Handler(withRegistrationDisabled(ctx), args)
	inv.record(ev, result, err, "")
	return result, err
}

func (inv *Invoker) record(ev *events.Event, result any, err error, stack string) {
	now := inv.recorder.CurrentTime()
	ev.Time = &now

	meta := events.Metadata{ReturnValue: result, Completed: err == nil}
	if err != nil {
		meta.Exception = err.Error()
		meta.StackTrace = stack
	}
	inv.recorder.RecordCompleted(ev.Completed(meta))
}
