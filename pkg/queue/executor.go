package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/config"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/judge"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/llm"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/models"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/scenario"
)

// ScenarioBuilder constructs a fully built scenario, apps included.
// Registered builders let the executor replay scenarios whose apps and
// hooks cannot travel in the serialized form.
type ScenarioBuilder func() (*scenario.Scenario, error)

// SimExecutor executes a run: resolve the scenario, obtain the agent trace
// (recorded on the run, or replayed from the oracle), and judge it.
type SimExecutor struct {
	catalog   map[string]ScenarioBuilder
	judgeMode config.JudgeMode
	judgeCfg  *judge.Config
	engine    llm.Engine
	logger    *slog.Logger
}

// NewSimExecutor creates an executor. The engine may be nil; the in-context
// mode then fails and the graph mode skips soft checkers.
func NewSimExecutor(cfg *config.Config, engine llm.Engine, logger *slog.Logger) *SimExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimExecutor{
		catalog:   make(map[string]ScenarioBuilder),
		judgeMode: cfg.Judge.Mode,
		judgeCfg:  judge.FromServiceConfig(cfg.Judge, engine),
		engine:    engine,
		logger:    logger.With("component", "executor"),
	}
}

// RegisterScenario adds a named builder to the catalog.
func (e *SimExecutor) RegisterScenario(name string, build ScenarioBuilder) {
	e.catalog[name] = build
}

// Execute resolves, runs, and judges one claimed run. Judgment failure is a
// completed run with a failing verdict; only infrastructure errors fail the
// run itself.
func (e *SimExecutor) Execute(ctx context.Context, run *models.Run) *Result {
	sc, err := e.resolveScenario(run)
	if err != nil {
		return &Result{Status: models.RunStatusFailed, Err: err}
	}

	trace, traceJSON, err := e.resolveTrace(ctx, run, sc)
	if err != nil {
		return &Result{Status: models.RunStatusFailed, Err: err}
	}

	judgment, err := e.judgeTrace(ctx, sc, trace)
	if err != nil {
		return &Result{Status: models.RunStatusFailed, Trace: traceJSON, Err: err}
	}

	e.logger.Info("run judged",
		"run_id", run.ID,
		"scenario", sc.Name,
		"success", judgment.Success)
	return &Result{Status: models.RunStatusCompleted, Judgment: judgment, Trace: traceJSON}
}

// resolveScenario prefers a registered builder; serialized scenarios carry
// no apps, so they can only be judged against a recorded trace.
func (e *SimExecutor) resolveScenario(run *models.Run) (*scenario.Scenario, error) {
	if build, ok := e.catalog[run.ScenarioName]; ok {
		sc, err := build()
		if err != nil {
			return nil, fmt.Errorf("build scenario %s: %w", run.ScenarioName, err)
		}
		return sc, nil
	}
	sc, err := scenario.Unmarshal(run.Scenario)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (e *SimExecutor) resolveTrace(ctx context.Context, run *models.Run,
	sc *scenario.Scenario) ([]*events.CompletedEvent, []byte, error) {

	if len(run.Trace) > 0 {
		trace, err := events.UnmarshalCompleted(run.Trace)
		if err != nil {
			return nil, nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		return trace, run.Trace, nil
	}

	if _, ok := e.catalog[run.ScenarioName]; !ok {
		return nil, nil, fmt.Errorf("run %s: no recorded trace and scenario %q is not registered for replay",
			run.ID, run.ScenarioName)
	}

	trace, err := sc.ReplayOracle(ctx, e.logger)
	if err != nil {
		var ore *judge.OracleRunError
		if errors.As(err, &ore) {
			return nil, nil, ore
		}
		return nil, nil, &judge.OracleRunError{EventID: sc.Name, Exception: err.Error()}
	}
	raw, err := events.MarshalCompleted(trace)
	if err != nil {
		return nil, nil, fmt.Errorf("serialize trace for run %s: %w", run.ID, err)
	}
	return trace, raw, nil
}

func (e *SimExecutor) judgeTrace(ctx context.Context, sc *scenario.Scenario,
	trace []*events.CompletedEvent) (*judge.Judgment, error) {

	switch e.judgeMode {
	case config.JudgeModeInContext:
		if e.engine == nil {
			return nil, fmt.Errorf("in-context judge requires an llm engine")
		}
		return judge.NewInContextJudge(e.engine).Judge(ctx, trace, sc.Events())
	default:
		turnOf := func(id string) int {
			t, _ := sc.TurnIndex(id)
			return t
		}
		return judge.NewGraphJudge(e.judgeCfg, e.logger).Judge(ctx, trace, sc.Events(), turnOf)
	}
}

// StubExecutor returns canned results, for pool and worker tests.
type StubExecutor struct {
	Results  map[string]*Result
	Default  *Result
	Executed []string
}

// Execute records the call and returns the canned result.
func (s *StubExecutor) Execute(_ context.Context, run *models.Run) *Result {
	s.Executed = append(s.Executed, run.ID)
	if r, ok := s.Results[run.ID]; ok {
		return r
	}
	if s.Default != nil {
		return s.Default
	}
	return &Result{Status: models.RunStatusCompleted}
}
