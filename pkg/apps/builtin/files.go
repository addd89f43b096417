package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// Files is an in-memory sandbox filesystem keyed by cleaned absolute paths.
type Files struct {
	mu    sync.Mutex
	files map[string]string
}

func NewFiles() *Files {
	return &Files{files: make(map[string]string)}
}

func (f *Files) Name() string { return "files" }

func (f *Files) Tools() []apps.Tool {
	pathSchema := map[string]any{
		"type":                 "object",
		"required":             []any{"path"},
		"additionalProperties": false,
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
	}
	return []apps.Tool{
		{
			Name:          "list_files",
			Description:   "List file paths under a directory.",
			OperationType: events.OperationRead,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
				},
			},
			Handler: f.listFiles,
		},
		{
			Name:          "read_file",
			Description:   "Read a file's content.",
			OperationType: events.OperationRead,
			ArgsSchema:    pathSchema,
			Handler:       f.readFile,
		},
		{
			Name:          "write_file",
			Description:   "Create or overwrite a file.",
			OperationType: events.OperationWrite,
			ArgsSchema: map[string]any{
				"type":                 "object",
				"required":             []any{"path", "content"},
				"additionalProperties": false,
				"properties": map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
			},
			Handler: f.writeFile,
		},
		{
			Name:          "delete_file",
			Description:   "Delete a file.",
			OperationType: events.OperationWrite,
			ArgsSchema:    pathSchema,
			Handler:       f.deleteFile,
		},
	}
}

func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func (f *Files) listFiles(_ context.Context, args map[string]any) (any, error) {
	dir := cleanPath(optionalStringArg(args, "path", "/"))
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p := range f.files {
		if dir == "/" || strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *Files) readFile(_ context.Context, args map[string]any) (any, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[cleanPath(p)]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	return content, nil
}

func (f *Files) writeFile(_ context.Context, args map[string]any) (any, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.files[cleanPath(p)] = content
	f.mu.Unlock()
	return "file written", nil
}

func (f *Files) deleteFile(_ context.Context, args map[string]any) (any, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := cleanPath(p)
	if _, ok := f.files[key]; !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	delete(f.files, key)
	return "file deleted", nil
}

// Exists reports whether a file is present, for scenario predicates.
func (f *Files) Exists(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[cleanPath(p)]
	return ok
}

func (f *Files) GetState() (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return json.Marshal(struct {
		Files map[string]string `json:"files"`
	}{f.files})
}

func (f *Files) LoadState(state json.RawMessage) error {
	var s struct {
		Files map[string]string `json:"files"`
	}
	if err := json.Unmarshal(state, &s); err != nil {
		return err
	}
	if s.Files == nil {
		s.Files = make(map[string]string)
	}
	f.mu.Lock()
	f.files = s.Files
	f.mu.Unlock()
	return nil
}

func (f *Files) Reset() {
	f.mu.Lock()
	f.files = make(map[string]string)
	f.mu.Unlock()
}
