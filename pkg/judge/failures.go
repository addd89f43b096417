// Package judge compares an agent's completed-event trace against the
// scenario's oracle events: per-argument tool checkers, per-event time and
// tool matching, turn-scoped graph matching, and a one-shot LLM baseline.
package judge

import (
	"fmt"
	"strings"
)

// Failure is the structured reason a judgment failed. A failure is a result,
// not an error: the judge returns it inside the Judgment.
type Failure interface {
	Reason() string
}

// Judgment is the judge's verdict for one run.
type Judgment struct {
	Success       bool              `json:"success"`
	Failure       Failure           `json:"-"`
	FailureReason string            `json:"failure,omitempty"`
	AgentToOracle map[string]string `json:"agent_to_oracle,omitempty"`
}

func success(agentToOracle map[string]string) *Judgment {
	return &Judgment{Success: true, AgentToOracle: agentToOracle}
}

func failed(f Failure, agentToOracle map[string]string) *Judgment {
	return &Judgment{Failure: f, FailureReason: f.Reason(), AgentToOracle: agentToOracle}
}

// ToolCallCountsFailure reports a tool-name multiset mismatch within a turn.
type ToolCallCountsFailure struct {
	Turn    int
	Missing []string // oracle calls the agent never made
	Extra   []string // agent calls the oracle never made
}

func (f *ToolCallCountsFailure) Reason() string {
	var b strings.Builder
	fmt.Fprintf(&b, "turn %d: tool call counts differ", f.Turn)
	if len(f.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %v", f.Missing)
	}
	if len(f.Extra) > 0 {
		fmt.Fprintf(&b, "; unexpected %v", f.Extra)
	}
	return b.String()
}

// EnvOracleMatchingFailure reports an ENV or USER oracle event absent from
// the agent trace.
type EnvOracleMatchingFailure struct {
	Turn     int
	OracleID string
}

func (f *EnvOracleMatchingFailure) Reason() string {
	return fmt.Sprintf("turn %d: environment event %s missing from the trace", f.Turn, f.OracleID)
}

// ComparisonFailure is one rejected candidate pairing.
type ComparisonFailure struct {
	OracleID string `json:"oracle_id"`
	AgentID  string `json:"agent_id"`
	Detail   string `json:"detail"`
}

// OracleEventMatchingFailure reports an oracle event no agent event matched,
// with the per-candidate diagnostics.
type OracleEventMatchingFailure struct {
	Turn        int
	OracleID    string
	Comparisons []ComparisonFailure
}

func (f *OracleEventMatchingFailure) Reason() string {
	var b strings.Builder
	fmt.Fprintf(&b, "turn %d: no agent event matched oracle event %s", f.Turn, f.OracleID)
	for _, c := range f.Comparisons {
		fmt.Fprintf(&b, "\n  candidate %s: %s", c.AgentID, c.Detail)
	}
	return b.String()
}

// InContextFailure carries the raw verdict of the one-shot LLM judge.
type InContextFailure struct {
	Verdict string
}

func (f *InContextFailure) Reason() string {
	return "llm judge returned failure: " + f.Verdict
}

// OracleRunError aborts evaluation: the oracle-mode replay of the scenario
// itself produced a failed event, so there is no ground truth to judge
// against.
type OracleRunError struct {
	EventID   string
	Exception string
}

func (e *OracleRunError) Error() string {
	return fmt.Sprintf("oracle replay failed at event %s: %s", e.EventID, e.Exception)
}
