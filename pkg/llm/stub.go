package llm

import (
	"context"
	"strings"
	"sync"
)

// StubEngine is a canned-response engine for tests: responses are matched by
// prompt substring, with a fallback default.
type StubEngine struct {
	mu       sync.Mutex
	rules    []stubRule
	Default  string
	Requests []Request
}

type stubRule struct {
	substr string
	reply  string
}

// NewStubEngine creates a stub that always answers fallback.
func NewStubEngine(fallback string) *StubEngine {
	return &StubEngine{Default: fallback}
}

// Reply answers with reply whenever the prompt contains substr. Rules match
// in registration order.
func (s *StubEngine) Reply(substr, reply string) *StubEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, stubRule{substr: substr, reply: reply})
	return s
}

// Complete implements Engine.
func (s *StubEngine) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	for _, r := range s.rules {
		if strings.Contains(req.Prompt, r.substr) {
			return r.reply, nil
		}
	}
	return s.Default, nil
}

// CallCount returns how many completions were requested.
func (s *StubEngine) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
