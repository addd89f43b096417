package apps

import "context"

// The two event-registration flags travel on the call context, so one call
// chain's state never leaks into another goroutine's invocations. They are
// distinct: capture mode returns descriptor events without executing, while
// registration-disabled executes without logging (used for nested calls).

type captureKey struct{}
type registrationDisabledKey struct{}

// WithCapture returns a context in which tool invocations are captured:
// the wrapper builds the action and returns a non-executed event instead of
// running the handler. Used by scenario authoring.
func WithCapture(ctx context.Context) context.Context {
	return context.WithValue(ctx, captureKey{}, true)
}

// CaptureEnabled reports whether the context is in capture mode.
func CaptureEnabled(ctx context.Context) bool {
	v, _ := ctx.Value(captureKey{}).(bool)
	return v
}

// withRegistrationDisabled marks the context so nested tool calls made
// inside a handler do not append additional events.
func withRegistrationDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, registrationDisabledKey{}, true)
}

func registrationDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(registrationDisabledKey{}).(bool)
	return v
}
