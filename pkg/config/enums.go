package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// JudgeMode selects which judge evaluates a run.
type JudgeMode string

// Judge modes.
const (
	// JudgeModeGraph is the structural graph-per-event judge.
	JudgeModeGraph JudgeMode = "graph"
	// JudgeModeInContext is the one-shot LLM baseline judge.
	JudgeModeInContext JudgeMode = "incontext"
)

// IsValid reports whether the mode is known.
func (m JudgeMode) IsValid() bool {
	switch m {
	case JudgeModeGraph, JudgeModeInContext:
		return true
	}
	return false
}

// UnmarshalYAML validates the mode at parse time so a typo fails the load,
// not the first judged run.
func (m *JudgeMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	mode := JudgeMode(s)
	if !mode.IsValid() {
		return fmt.Errorf("%w: judge mode %q", ErrInvalidValue, s)
	}
	*m = mode
	return nil
}
