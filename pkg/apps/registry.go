package apps

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Registry sentinel errors.
var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrDuplicateTool = errors.New("tool already registered")
	ErrNilHandler    = errors.New("tool handler is required")
)

// Registry indexes tools by (app, function). Argument schemas are compiled
// at registration so a malformed schema fails fast, and incoming call
// arguments are validated before the handler runs.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
	apps    map[string]App
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
		apps:    make(map[string]App),
	}
}

// RegisterApp registers the app and all of its tools.
func (r *Registry) RegisterApp(app App) error {
	r.mu.Lock()
	r.apps[app.Name()] = app
	r.mu.Unlock()

	for _, tool := range app.Tools() {
		if tool.App == "" {
			tool.App = app.Name()
		}
		if err := r.Register(tool); err != nil {
			return fmt.Errorf("app %s: %w", app.Name(), err)
		}
	}
	return nil
}

// Register adds a single tool. The argument schema, when present, is
// compiled immediately.
func (r *Registry) Register(tool Tool) error {
	if tool.Handler == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, tool.FullName())
	}
	if !tool.OperationType.IsValid() {
		return fmt.Errorf("tool %s: invalid operation type %q", tool.FullName(), tool.OperationType)
	}

	key := tool.FullName()

	var schema *jsonschema.Schema
	if tool.ArgsSchema != nil {
		doc, err := jsonRoundTrip(tool.ArgsSchema)
		if err != nil {
			return fmt.Errorf("tool %s: args schema is not valid JSON: %w", key, err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema.json", doc); err != nil {
			return fmt.Errorf("tool %s: add schema resource: %w", key, err)
		}
		compiled, err := c.Compile("schema.json")
		if err != nil {
			return fmt.Errorf("tool %s: compile args schema: %w", key, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[key]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, key)
	}
	r.tools[key] = tool
	if schema != nil {
		r.schemas[key] = schema
	}
	return nil
}

// Lookup returns the tool registered under (app, function).
func (r *Registry) Lookup(app, function string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[app+"."+function]
	return t, ok
}

// App returns a registered app by name.
func (r *Registry) App(name string) (App, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[name]
	return a, ok
}

// Apps returns the registered apps keyed by name.
func (r *Registry) Apps() map[string]App {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]App, len(r.apps))
	for k, v := range r.apps {
		out[k] = v
	}
	return out
}

// ToolNames returns the registered tool keys in sorted order.
func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for k := range r.tools {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ValidateArgs checks the argument object against the tool's compiled
// schema. Tools without a schema accept anything.
func (r *Registry) ValidateArgs(app, function string, args map[string]any) error {
	key := app + "." + function
	r.mu.RLock()
	schema := r.schemas[key]
	_, known := r.tools[key]
	r.mu.RUnlock()

	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownTool, key)
	}
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	doc, err := jsonRoundTrip(args)
	if err != nil {
		return fmt.Errorf("tool %s: arguments are not valid JSON: %w", key, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("tool %s: invalid arguments: %w", key, err)
	}
	return nil
}

// jsonRoundTrip re-decodes a Go value through JSON so the schema validator
// sees the generic form it expects (map[string]any, []any, float64).
func jsonRoundTrip(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
