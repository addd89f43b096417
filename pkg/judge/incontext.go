package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/llm"
)

const inContextRubric = `You are judging whether an AI agent completed a simulated task correctly.
You are given the reference trace of expected events and the trace the agent
actually produced. The agent may take extra read-only actions and may send
one extra message to the user; everything else must match the reference in
content and order of causally related actions.
Answer with exactly [[success]] or [[failure]] on the last line, preceded by
a one-paragraph rationale.`

// InContextJudge is the baseline one-shot LLM judge: both traces rendered
// as bullet lists, a single completion, a bracketed verdict. No structural
// matching.
type InContextJudge struct {
	engine llm.Engine
}

// NewInContextJudge creates the judge over the engine.
func NewInContextJudge(engine llm.Engine) *InContextJudge {
	return &InContextJudge{engine: engine}
}

// Judge renders the traces and asks for the verdict.
func (j *InContextJudge) Judge(ctx context.Context, log []*events.CompletedEvent,
	oracle []*events.Event) (*Judgment, error) {
	if j.engine == nil {
		return nil, fmt.Errorf("in-context judge requires an llm engine")
	}

	var b strings.Builder
	b.WriteString("Reference trace:\n")
	for _, o := range oracle {
		b.WriteString(bulletLine(o, nil))
	}
	b.WriteString("\nAgent trace:\n")
	for _, ce := range log {
		b.WriteString(bulletLine(ce.Event, &ce.Metadata))
	}

	out, err := j.engine.Complete(ctx, llm.Request{System: inContextRubric, Prompt: b.String()})
	if err != nil {
		return nil, fmt.Errorf("in-context judgment failed: %w", err)
	}

	ok, err := parseVerdict(out)
	if err != nil {
		return nil, err
	}
	if ok {
		return success(nil), nil
	}
	return failed(&InContextFailure{Verdict: out}, nil), nil
}

// bulletLine renders one event as a single trace bullet.
func bulletLine(e *events.Event, meta *events.Metadata) string {
	var b strings.Builder
	b.WriteString("- ")
	if e.Time != nil {
		fmt.Fprintf(&b, "t=%.0fs ", *e.Time)
	}
	fmt.Fprintf(&b, "[%s]", e.Type)
	if e.Action != nil {
		args, _ := json.Marshal(e.Action.EffectiveArgs())
		fmt.Fprintf(&b, " %s(%s)", e.Action.ToolName(), args)
	}
	if meta != nil && meta.Exception != "" {
		fmt.Fprintf(&b, " failed: %s", meta.Exception)
	}
	b.WriteString("\n")
	return b.String()
}
