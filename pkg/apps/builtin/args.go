// Package builtin provides the stateful apps shipped with the simulator:
// the agent/user message surface, a sandbox filesystem, email, messaging,
// contacts, a calendar, and a smart-home controller. State is value-typed
// and snapshots as plain JSON.
package builtin

import "fmt"

// Argument objects arrive JSON-generic (strings, float64, []any) after
// schema validation, so the accessors below normalize without reflection.

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q: expected string, got %T", key, v)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func boolArg(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, fmt.Errorf("missing argument %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q: expected bool, got %T", key, v)
	}
	return b, nil
}

func floatArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("argument %q: expected number, got %T", key, v)
	}
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing argument %q", key)
	}
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, len(s))
		for i, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q[%d]: expected string, got %T", key, i, item)
			}
			out[i] = str
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument %q: expected string list, got %T", key, v)
	}
}
