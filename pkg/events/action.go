package events

import "regexp"

// Action is the callable bundle attached to USER, ENV, and AGENT events.
// It names a tool method on an app plus the arguments to bind. Nil for STOP
// events; CONDITION and VALIDATION events carry predicate specs instead.
type Action struct {
	App           string         `json:"app_name"`
	Function      string         `json:"function_name"`
	Args          map[string]any `json:"args"`
	ResolvedArgs  map[string]any `json:"resolved_args,omitempty"`
	OperationType OperationType  `json:"operation_type"`
}

// ToolName returns the fully qualified tool name "app.function".
func (a *Action) ToolName() string {
	return a.App + "." + a.Function
}

// Clone returns a deep-enough copy for judge-side argument resolution
// (top-level arg maps are copied; nested values are shared).
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	c := &Action{
		App:           a.App,
		Function:      a.Function,
		OperationType: a.OperationType,
	}
	if a.Args != nil {
		c.Args = make(map[string]any, len(a.Args))
		for k, v := range a.Args {
			c.Args[k] = v
		}
	}
	if a.ResolvedArgs != nil {
		c.ResolvedArgs = make(map[string]any, len(a.ResolvedArgs))
		for k, v := range a.ResolvedArgs {
			c.ResolvedArgs[k] = v
		}
	}
	return c
}

// EffectiveArgs returns resolved args when present, raw args otherwise.
func (a *Action) EffectiveArgs() map[string]any {
	if len(a.ResolvedArgs) > 0 {
		return a.ResolvedArgs
	}
	return a.Args
}

var placeholderRe = regexp.MustCompile(`^\{\{([A-Za-z0-9_.:-]+)\}\}$`)

// PlaceholderID reports whether v is an "{{event_id}}" argument placeholder
// and returns the referenced event id. At judge time such an argument is
// substituted with the return value of the event it names.
func PlaceholderID(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	m := placeholderRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
