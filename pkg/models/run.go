// Package models holds the persistence and API types of the run service.
package models

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle status of a queued evaluation run.
type RunStatus string

// Run status values.
const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusTimedOut  RunStatus = "timed_out"
)

// IsValid reports whether the status is one of the known values.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted,
		RunStatusFailed, RunStatusTimedOut:
		return true
	}
	return false
}

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusTimedOut:
		return true
	}
	return false
}

// Run is one queued evaluation: a serialized scenario, an optional recorded
// agent trace, and the lifecycle bookkeeping the worker pool maintains.
type Run struct {
	ID           string          `json:"id"`
	ScenarioName string          `json:"scenario_name"`
	Scenario     json.RawMessage `json:"scenario"`
	Trace        json.RawMessage `json:"trace,omitempty"`
	Status       RunStatus       `json:"status"`
	PodID        *string         `json:"pod_id,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
}

// Judgment is the stored verdict for a completed run.
type Judgment struct {
	RunID         string          `json:"run_id"`
	Success       bool            `json:"success"`
	FailureReason string          `json:"failure,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RunEvent is one progress event persisted for a run, delivered live over
// LISTEN/NOTIFY and queryable afterwards.
type RunEvent struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
