package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/apps/builtin"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/config"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/judge"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/llm"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/scenario"
)

// newRunCmd replays a scenario's oracle and judges the resulting trace.
// Exit codes: 0 success, 1 failing judgment, 2 error.
func newRunCmd(configDir *string) *cobra.Command {
	var traceOut string

	cmd := &cobra.Command{
		Use:   "run <scenario.json>",
		Short: "Replay a scenario's oracle and judge the resulting trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Initialize(*configDir)
			if err != nil {
				return err
			}
			sc, err := loadScenarioWithApps(args[0])
			if err != nil {
				return err
			}

			logger := slog.Default()
			trace, err := sc.ReplayOracle(cmd.Context(), logger)
			if err != nil {
				return err
			}
			if traceOut != "" {
				raw, err := events.MarshalCompleted(trace)
				if err != nil {
					return err
				}
				if err := os.WriteFile(traceOut, raw, 0o644); err != nil {
					return fmt.Errorf("failed to write trace file: %w", err)
				}
			}

			judgment, err := judgeTrace(cmd.Context(), cfg, sc, trace, logger)
			if err != nil {
				return err
			}
			return emitJudgment(judgment)
		},
	}
	cmd.Flags().StringVar(&traceOut, "trace-out", "", "write the replayed trace to this file")
	return cmd
}

// newJudgeCmd judges a recorded agent trace against a scenario's oracle.
func newJudgeCmd(configDir *string) *cobra.Command {
	var traceFile string

	cmd := &cobra.Command{
		Use:   "judge <scenario.json>",
		Short: "Judge a recorded agent trace against a scenario's oracle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Initialize(*configDir)
			if err != nil {
				return err
			}
			sc, err := loadScenarioWithApps(args[0])
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(traceFile)
			if err != nil {
				return fmt.Errorf("failed to read trace file: %w", err)
			}
			trace, err := events.UnmarshalCompleted(raw)
			if err != nil {
				return err
			}

			judgment, err := judgeTrace(cmd.Context(), cfg, sc, trace, slog.Default())
			if err != nil {
				return err
			}
			return emitJudgment(judgment)
		},
	}
	cmd.Flags().StringVar(&traceFile, "trace", "", "recorded agent trace file (required)")
	_ = cmd.MarkFlagRequired("trace")
	return cmd
}

// loadScenarioWithApps parses a serialized scenario and attaches the builtin
// app suite. Apps are code, not data, so the file alone cannot carry them.
func loadScenarioWithApps(path string) (*scenario.Scenario, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	reg := sc.Registry()
	suite := []apps.App{
		builtin.NewAgentUserInterface(),
		builtin.NewFiles(),
		builtin.NewEmailClient("user@example.com"),
		builtin.NewMessaging("user"),
		builtin.NewContacts(),
		builtin.NewCalendar(),
		builtin.NewHome(),
	}
	for _, app := range suite {
		if err := reg.RegisterApp(app); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func judgeTrace(ctx context.Context, cfg *config.Config, sc *scenario.Scenario,
	trace []*events.CompletedEvent, logger *slog.Logger) (*judge.Judgment, error) {

	var engine llm.Engine
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(llm.Config{
			Model:   cfg.LLM.Model,
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		engine = client
	}

	if cfg.Judge.Mode == config.JudgeModeInContext {
		if engine == nil {
			return nil, fmt.Errorf("in-context judge requires an llm api key")
		}
		return judge.NewInContextJudge(engine).Judge(ctx, trace, sc.Events())
	}

	judgeCfg := judge.FromServiceConfig(cfg.Judge, engine)
	turnOf := func(id string) int {
		t, _ := sc.TurnIndex(id)
		return t
	}
	return judge.NewGraphJudge(judgeCfg, logger).Judge(ctx, trace, sc.Events(), turnOf)
}

// emitJudgment prints the judgment and exits 1 on a failing verdict.
func emitJudgment(judgment *judge.Judgment) error {
	out, err := json.MarshalIndent(judgment, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !judgment.Success {
		os.Exit(exitFailed)
	}
	return nil
}
