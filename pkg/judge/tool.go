package judge

import (
	"context"
	"fmt"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// ToolJudge compares agent and oracle tool calls argument by argument: the
// hard checkers first, and only on a full hard pass the configured soft
// checkers. Scripted mode disables the soft judge.
type ToolJudge struct {
	cfg *Config
}

// NewToolJudge creates a tool judge over the config.
func NewToolJudge(cfg *Config) *ToolJudge {
	cfg.ApplyDefaults()
	return &ToolJudge{cfg: cfg}
}

// Judge compares the two actions. Subtask is optional soft-checker context.
// The diagnostic names the first failing argument.
func (j *ToolJudge) Judge(ctx context.Context, agent, oracle *events.Action,
	oracleID, subtask string) (bool, string, error) {
	if agent == nil || oracle == nil {
		return false, "missing action", nil
	}
	if agent.ToolName() != oracle.ToolName() {
		return false, fmt.Sprintf("tool %s != %s", agent.ToolName(), oracle.ToolName()), nil
	}

	tool := oracle.ToolName()
	agentArgs := agent.EffectiveArgs()
	oracleArgs := oracle.EffectiveArgs()

	for arg, want := range oracleArgs {
		ct := j.cfg.checkerFor(tool, arg, oracleID)
		ok, detail := j.cfg.checkHard(ct, agentArgs[arg], want)
		if !ok {
			return false, fmt.Sprintf("arg %q (%s): %s", arg, ct, detail), nil
		}
	}

	if j.cfg.Engine == nil || j.cfg.Scripted() {
		return true, "", nil
	}
	for _, ct := range j.cfg.PerToolSoftCheckers[tool] {
		ok, err := j.cfg.runSoft(ctx, ct, tool, subtask, agentArgs, oracleArgs)
		if err != nil {
			return false, "", fmt.Errorf("soft checker %s on %s: %w", ct, tool, err)
		}
		if !ok {
			return false, fmt.Sprintf("soft checker %s rejected the call", ct), nil
		}
	}
	return true, "", nil
}
