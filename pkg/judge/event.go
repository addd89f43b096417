package judge

import (
	"context"
	"fmt"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// EventJudge matches one oracle event against one agent event: identity for
// ENV/USER events, time window plus tool arguments for AGENT events.
type EventJudge struct {
	cfg  *Config
	tool *ToolJudge
}

// NewEventJudge creates an event judge over the config.
func NewEventJudge(cfg *Config) *EventJudge {
	cfg.ApplyDefaults()
	return &EventJudge{cfg: cfg, tool: NewToolJudge(cfg)}
}

// Match reports whether the agent event satisfies the oracle event.
// oracleParentTime and agentParentTime are the max completion times of the
// oracle's dependencies and of their matched agent counterparts.
func (j *EventJudge) Match(ctx context.Context, oracle *events.Event,
	agent *events.CompletedEvent, oracleParentTime, agentParentTime float64,
	subtask string) (bool, string, error) {

	if oracle.Type == events.EventTypeEnv || oracle.Type == events.EventTypeUser {
		if oracle.ID == agent.ID {
			return true, "", nil
		}
		return false, fmt.Sprintf("event id %s != %s", agent.ID, oracle.ID), nil
	}

	if ok, detail := j.checkTime(oracle, agent, oracleParentTime, agentParentTime); !ok {
		return false, detail, nil
	}
	return j.tool.Judge(ctx, agent.Action, oracle.Action, oracle.ID, subtask)
}

// checkTime enforces the comparator window on relative times, or on
// absolute times when the oracle pins one.
func (j *EventJudge) checkTime(oracle *events.Event, agent *events.CompletedEvent,
	oracleParentTime, agentParentTime float64) (bool, string) {

	if oracle.Time == nil || agent.Time == nil {
		return true, ""
	}

	pre := j.cfg.PreEventToleranceSeconds
	post := j.cfg.PostEventToleranceSeconds

	var oracleRel, agentRel float64
	if oracle.AbsoluteTime != nil {
		// Pinned wall-clock expectation: compare absolute times directly.
		oracleRel = *oracle.AbsoluteTime
		agentRel = *agent.Time
	} else {
		oracleRel = *oracle.Time - oracleParentTime
		agentRel = *agent.Time - agentParentTime
		if oracleRel <= j.cfg.CheckTimeThresholdSeconds && oracle.Comparator == "" {
			return true, ""
		}
	}

	comparator := oracle.Comparator
	if comparator == "" {
		comparator = events.ComparatorEqual
	}
	switch comparator {
	case events.ComparatorEqual:
		if agentRel < oracleRel-pre || agentRel > oracleRel+post {
			return false, fmt.Sprintf("time %.1fs outside [%.1fs, %.1fs]",
				agentRel, oracleRel-pre, oracleRel+post)
		}
	case events.ComparatorLessThan:
		if agentRel > oracleRel+post {
			return false, fmt.Sprintf("time %.1fs exceeds %.1fs", agentRel, oracleRel+post)
		}
	case events.ComparatorGreaterThan:
		if agentRel < oracleRel-pre {
			return false, fmt.Sprintf("time %.1fs before %.1fs", agentRel, oracleRel-pre)
		}
	}
	return true, ""
}
