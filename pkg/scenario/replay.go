package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/env"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/judge"
)

// ReplayOracle runs the scenario in oracle mode, firing oracle events as if
// a perfect agent produced them, and returns the resulting ground-truth
// trace. The scenario's app states are mutated by the run; callers that need
// pristine apps rebuild the scenario first.
func (s *Scenario) ReplayOracle(ctx context.Context, logger *slog.Logger) ([]*events.CompletedEvent, error) {
	cfg := s.EnvConfig
	cfg.OracleMode = true
	cfg.QueueBasedLoop = true

	e, err := env.New(cfg, s.registry, logger)
	if err != nil {
		return nil, err
	}
	for _, ev := range s.events {
		if len(ev.Dependencies) > 0 {
			continue
		}
		if err := e.Schedule(ev); err != nil {
			return nil, fmt.Errorf("schedule root event %s: %w", ev.ID, err)
		}
	}

	if err := e.Run(ctx); err != nil {
		return nil, fmt.Errorf("oracle replay of scenario %s: %w", s.Name, err)
	}

	// A failed event in the replay means the ground truth itself is broken;
	// nothing recorded after that point can be judged against.
	trace := e.Log().List()
	for _, ce := range trace {
		if ce.Failed() {
			return nil, &judge.OracleRunError{EventID: ce.ID, Exception: ce.Metadata.Exception}
		}
	}
	return trace, nil
}
