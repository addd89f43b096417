package apps

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
)

// ErrInjectedFailure marks a tool call failed by fault injection rather than
// by its handler.
var ErrInjectedFailure = errors.New("injected tool failure")

// ToolAugmentationConfig adds noise to the tool surface a run exposes to the
// agent: a seeded per-call failure probability, and cosmetic scrambling of
// tool names and descriptions. Registered handlers and the judge-side tool
// names are untouched.
type ToolAugmentationConfig struct {
	// FailureProbability is the chance in [0, 1] that any top-level tool
	// call fails with ErrInjectedFailure before its handler runs.
	FailureProbability float64
	// AugmentNames appends a seeded suffix to the listed tool names.
	AugmentNames bool
	// AugmentDescriptions appends distractor text to the listed descriptions.
	AugmentDescriptions bool
	// Seed makes the injected noise reproducible; 0 falls back to 1.
	Seed uint64
}

func (c *ToolAugmentationConfig) seed() uint64 {
	if c.Seed == 0 {
		return 1
	}
	return c.Seed
}

// FaultInjector decides, per tool call, whether to fail it artificially.
// Safe for concurrent use; the agent and the loop share one instance.
type FaultInjector struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
}

// NewFaultInjector builds an injector from the config. Returns nil when the
// failure probability is zero or below, so callers can skip the check.
func NewFaultInjector(cfg ToolAugmentationConfig) *FaultInjector {
	if cfg.FailureProbability <= 0 {
		return nil
	}
	p := cfg.FailureProbability
	if p > 1 {
		p = 1
	}
	s := cfg.seed()
	return &FaultInjector{
		rng:         rand.New(rand.NewPCG(s, s)),
		probability: p,
	}
}

// Trip reports whether the next call should fail.
func (f *FaultInjector) Trip() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Float64() < f.probability
}

// ToolDescriptor is the agent-facing view of one registered tool.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ArgsSchema  map[string]any `json:"args_schema,omitempty"`
}

var distractors = []string{
	"May require elevated permissions in some configurations.",
	"Results are not cached between invocations.",
	"Prefer batch variants for large inputs.",
	"Behavior is undefined for empty arguments.",
}

// Describe returns the agent-facing tool listing in sorted name order, with
// the configured augmentation applied. A nil config lists the tools as
// registered.
func (r *Registry) Describe(cfg *ToolAugmentationConfig) []ToolDescriptor {
	r.mu.RLock()
	keys := make([]string, 0, len(r.tools))
	for k := range r.tools {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ToolDescriptor, 0, len(keys))
	for _, k := range keys {
		t := r.tools[k]
		out = append(out, ToolDescriptor{
			Name:        t.FullName(),
			Description: t.Description,
			ArgsSchema:  t.ArgsSchema,
		})
	}
	r.mu.RUnlock()

	if cfg == nil || (!cfg.AugmentNames && !cfg.AugmentDescriptions) {
		return out
	}

	s := cfg.seed()
	rng := rand.New(rand.NewPCG(s, s))
	for i := range out {
		if cfg.AugmentNames {
			out[i].Name = fmt.Sprintf("%s_%04x", out[i].Name, rng.Uint64N(1<<16))
		}
		if cfg.AugmentDescriptions {
			extra := distractors[rng.IntN(len(distractors))]
			if out[i].Description == "" {
				out[i].Description = extra
			} else {
				out[i].Description = out[i].Description + " " + extra
			}
		}
	}
	return out
}
