package judge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

const (
	auiApp            = "agentuserinterface"
	sendMessageToUser = "send_message_to_user"
	userMessageTool   = auiApp + "." + sendMessageToUser
	agentPromptTool   = auiApp + ".send_message_to_agent"
)

// GraphJudge matches the agent trace against the oracle DAG turn by turn:
// tool-call counts first, then per-event matching in oracle topological
// order with placeholder resolution and causality verification.
type GraphJudge struct {
	cfg    *Config
	event  *EventJudge
	logger *slog.Logger
}

// NewGraphJudge creates a graph judge over the config.
func NewGraphJudge(cfg *Config, logger *slog.Logger) *GraphJudge {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphJudge{cfg: cfg, event: NewEventJudge(cfg), logger: logger.With("component", "judge")}
}

// matchState tracks the pairing built so far.
type matchState struct {
	oracleToAgent map[string]*events.CompletedEvent
	agentToOracle map[string]string
	agentIndex    map[string]int // log position of matched agent events
}

// Judge evaluates the whole run. log is the completed agent trace in log
// order; oracle holds the scenario's oracle events; oracleTurn maps oracle
// event ids to turns.
func (g *GraphJudge) Judge(ctx context.Context, log []*events.CompletedEvent,
	oracle []*events.Event, oracleTurn func(id string) int) (*Judgment, error) {

	state := &matchState{
		oracleToAgent: make(map[string]*events.CompletedEvent),
		agentToOracle: make(map[string]string),
		agentIndex:    make(map[string]int),
	}

	agentTurns := splitTurns(log)
	oracleTurns := make(map[int][]*events.Event)
	maxTurn := 0
	for _, o := range oracle {
		t := oracleTurn(o.ID)
		oracleTurns[t] = append(oracleTurns[t], o)
		if t > maxTurn {
			maxTurn = t
		}
	}

	for turn := 0; turn <= maxTurn; turn++ {
		verdict, err := g.judgeTurn(ctx, turn, agentTurns[turn], log, oracleTurns[turn], state)
		if err != nil {
			return nil, err
		}
		if verdict != nil {
			return failed(verdict, state.agentToOracle), nil
		}
	}

	g.logger.Info("judgment complete", "matched_events", len(state.agentToOracle))
	return success(state.agentToOracle), nil
}

// splitTurns assigns each logged event to a conversation turn: a user
// prompt opens the next turn.
func splitTurns(log []*events.CompletedEvent) map[int][]*events.CompletedEvent {
	out := make(map[int][]*events.CompletedEvent)
	turn := -1
	for _, ce := range log {
		if ce.Type == events.EventTypeUser && ce.Action != nil && ce.Action.ToolName() == agentPromptTool {
			turn++
		}
		if turn < 0 {
			turn = 0
		}
		out[turn] = append(out[turn], ce)
	}
	return out
}

// filteredAgentEvents keeps the judged subset of a turn: successful agent
// write operations.
func filteredAgentEvents(turnLog []*events.CompletedEvent) []*events.CompletedEvent {
	var out []*events.CompletedEvent
	for _, ce := range turnLog {
		if ce.Type != events.EventTypeAgent || ce.Failed() {
			continue
		}
		if ce.Action == nil || ce.Action.OperationType != events.OperationWrite {
			continue
		}
		out = append(out, ce)
	}
	return out
}

// judgeTurn returns a Failure when the turn does not match, nil otherwise.
func (g *GraphJudge) judgeTurn(ctx context.Context, turn int,
	turnLog []*events.CompletedEvent, fullLog []*events.CompletedEvent,
	oracleEvents []*events.Event, state *matchState) (Failure, error) {

	if len(oracleEvents) == 0 {
		return nil, nil
	}

	agentEvents := filteredAgentEvents(turnLog)
	if f := g.checkToolCounts(turn, agentEvents, oracleEvents); f != nil {
		return f, nil
	}

	ordered, err := topoSort(oracleEvents)
	if err != nil {
		return nil, fmt.Errorf("turn %d: %w", turn, err)
	}

	subtask := turnUserTask(turnLog)

	for _, o := range ordered {
		if o.Type != events.EventTypeAgent {
			if f := g.matchEnvOracle(turn, o, fullLog, state); f != nil {
				return f, nil
			}
			continue
		}
		f, err := g.matchAgentOracle(ctx, turn, o, agentEvents, fullLog, state, subtask)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, nil
}

// checkToolCounts compares tool-name multisets, with the user-facing
// message count held to its own band: at least the oracle count, at most
// the oracle count plus the configured extra.
func (g *GraphJudge) checkToolCounts(turn int, agent []*events.CompletedEvent,
	oracle []*events.Event) Failure {

	agentCounts := make(map[string]int)
	agentAUI := 0
	for _, ce := range agent {
		name := ce.Action.ToolName()
		if name == userMessageTool {
			agentAUI++
			continue
		}
		agentCounts[name]++
	}

	oracleCounts := make(map[string]int)
	oracleAUI := 0
	for _, o := range oracle {
		if o.Type != events.EventTypeAgent || o.Action == nil {
			continue
		}
		name := o.Action.ToolName()
		if name == userMessageTool {
			oracleAUI++
			continue
		}
		oracleCounts[name]++
	}

	var missing, extra []string
	for name, n := range oracleCounts {
		for i := agentCounts[name]; i < n; i++ {
			missing = append(missing, name)
		}
	}
	for name, n := range agentCounts {
		for i := oracleCounts[name]; i < n; i++ {
			extra = append(extra, name)
		}
	}
	if agentAUI < oracleAUI {
		missing = append(missing, userMessageTool)
	}
	if agentAUI > oracleAUI+*g.cfg.ExtraSendMessageToUserAllowed {
		extra = append(extra, userMessageTool)
	}

	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return &ToolCallCountsFailure{Turn: turn, Missing: missing, Extra: extra}
	}
	return nil
}

// matchEnvOracle pairs an ENV/USER oracle event with the logged event of
// the same id.
func (g *GraphJudge) matchEnvOracle(turn int, o *events.Event,
	fullLog []*events.CompletedEvent, state *matchState) Failure {
	for i, ce := range fullLog {
		if ce.ID == o.ID {
			state.oracleToAgent[o.ID] = ce
			state.agentToOracle[ce.ID] = o.ID
			state.agentIndex[ce.ID] = i
			return nil
		}
	}
	return &EnvOracleMatchingFailure{Turn: turn, OracleID: o.ID}
}

// matchAgentOracle scans the turn's agent events in log order for the first
// candidate the event judge accepts whose causal parents were matched
// strictly earlier.
func (g *GraphJudge) matchAgentOracle(ctx context.Context, turn int, o *events.Event,
	agentEvents []*events.CompletedEvent, fullLog []*events.CompletedEvent,
	state *matchState, subtask string) (Failure, error) {

	resolved := resolveArgs(o, state)
	oracleParentTime := maxParentTime(o)

	var comparisons []ComparisonFailure
	for _, candidate := range agentEvents {
		if _, taken := state.agentToOracle[candidate.ID]; taken {
			continue
		}

		agentParentTime := matchedParentTime(o, state)
		ok, detail, err := g.event.Match(ctx, resolved, candidate, oracleParentTime, agentParentTime, subtask)
		if err != nil {
			return nil, err
		}
		if !ok {
			comparisons = append(comparisons, ComparisonFailure{
				OracleID: o.ID, AgentID: candidate.ID, Detail: detail,
			})
			continue
		}

		if ok, detail := g.verifyCausality(o, candidate, fullLog, state); !ok {
			comparisons = append(comparisons, ComparisonFailure{
				OracleID: o.ID, AgentID: candidate.ID, Detail: detail,
			})
			continue
		}

		state.oracleToAgent[o.ID] = candidate
		state.agentToOracle[candidate.ID] = o.ID
		state.agentIndex[candidate.ID] = logIndex(fullLog, candidate.ID)
		return nil, nil
	}

	return &OracleEventMatchingFailure{Turn: turn, OracleID: o.ID, Comparisons: comparisons}, nil
}

// resolveArgs substitutes "{{oracle_id}}" placeholders with the return
// values of already-matched agent events.
func resolveArgs(o *events.Event, state *matchState) *events.Event {
	if o.Action == nil {
		return o
	}
	needs := false
	for _, v := range o.Action.EffectiveArgs() {
		if _, ok := events.PlaceholderID(v); ok {
			needs = true
			break
		}
	}
	if !needs {
		return o
	}

	clone := *o
	clone.Action = o.Action.Clone()
	resolved := make(map[string]any, len(o.Action.EffectiveArgs()))
	for k, v := range o.Action.EffectiveArgs() {
		if id, ok := events.PlaceholderID(v); ok {
			if matched, found := state.oracleToAgent[id]; found {
				resolved[k] = matched.Metadata.ReturnValue
				continue
			}
		}
		resolved[k] = v
	}
	clone.Action.ResolvedArgs = resolved
	return &clone
}

// maxParentTime returns the latest completion time among the event's
// dependencies, zero when it has none.
func maxParentTime(o *events.Event) float64 {
	out := 0.0
	for _, dep := range o.Dependencies {
		if dep.Time != nil && *dep.Time > out {
			out = *dep.Time
		}
	}
	return out
}

// matchedParentTime mirrors maxParentTime on the agent side: the latest log
// time among the agent events matched to the oracle's parents.
func matchedParentTime(o *events.Event, state *matchState) float64 {
	out := 0.0
	for _, dep := range o.Dependencies {
		if matched, ok := state.oracleToAgent[dep.ID]; ok && matched.Time != nil && *matched.Time > out {
			out = *matched.Time
		}
	}
	return out
}

// verifyCausality requires every oracle parent to be matched already, to an
// agent event strictly earlier in the log than the candidate.
func (g *GraphJudge) verifyCausality(o *events.Event, candidate *events.CompletedEvent,
	fullLog []*events.CompletedEvent, state *matchState) (bool, string) {
	candidateIdx := logIndex(fullLog, candidate.ID)
	for _, dep := range o.Dependencies {
		matched, ok := state.oracleToAgent[dep.ID]
		if !ok {
			return false, fmt.Sprintf("parent oracle %s not yet matched", dep.ID)
		}
		if state.agentIndex[matched.ID] >= candidateIdx {
			return false, fmt.Sprintf("parent %s matched to %s, which is not earlier in the log",
				dep.ID, matched.ID)
		}
	}
	return true, ""
}

func logIndex(log []*events.CompletedEvent, id string) int {
	for i, ce := range log {
		if ce.ID == id {
			return i
		}
	}
	return -1
}

// turnUserTask returns the user prompt content of the turn, as soft-checker
// context.
func turnUserTask(turnLog []*events.CompletedEvent) string {
	for _, ce := range turnLog {
		if ce.Type == events.EventTypeUser && ce.Action != nil && ce.Action.ToolName() == agentPromptTool {
			if content, ok := ce.Action.EffectiveArgs()["content"].(string); ok {
				return content
			}
		}
	}
	return ""
}

// topoSort orders the turn's oracle events by their in-turn dependencies.
// A cycle is an error.
func topoSort(oracle []*events.Event) ([]*events.Event, error) {
	inTurn := make(map[*events.Event]bool, len(oracle))
	for _, o := range oracle {
		inTurn[o] = true
	}

	indegree := make(map[*events.Event]int, len(oracle))
	for _, o := range oracle {
		n := 0
		for _, dep := range o.Dependencies {
			if inTurn[dep] {
				n++
			}
		}
		indegree[o] = n
	}

	var ready []*events.Event
	for _, o := range oracle {
		if indegree[o] == 0 {
			ready = append(ready, o)
		}
	}

	out := make([]*events.Event, 0, len(oracle))
	for len(ready) > 0 {
		o := ready[0]
		ready = ready[1:]
		out = append(out, o)
		for _, succ := range o.Successors {
			if !inTurn[succ] {
				continue
			}
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	if len(out) != len(oracle) {
		return nil, fmt.Errorf("oracle event graph contains a cycle")
	}
	return out, nil
}
