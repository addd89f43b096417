package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/database"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/models"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/queue"
)

// CreateRunRequest submits a run. The trace is optional; when absent the
// service replays the scenario's oracle to produce one.
type CreateRunRequest struct {
	ScenarioName string          `json:"scenario_name"`
	Scenario     json.RawMessage `json:"scenario,omitempty"`
	Trace        json.RawMessage `json:"trace,omitempty"`
}

// RunResponse is the wire form of a run.
type RunResponse struct {
	ID           string     `json:"id"`
	ScenarioName string     `json:"scenario_name"`
	Status       string     `json:"status"`
	PodID        string     `json:"pod_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	HasTrace     bool       `json:"has_trace"`
}

// RunListResponse wraps a run listing.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// JudgmentResponse is the wire form of a stored verdict.
type JudgmentResponse struct {
	RunID     string          `json:"run_id"`
	Success   bool            `json:"success"`
	Failure   string          `json:"failure,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunEventResponse is one persisted progress event.
type RunEventResponse struct {
	ID        int64           `json:"id"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunEventListResponse wraps an event listing for catchup reads.
type RunEventListResponse struct {
	Events []RunEventResponse `json:"events"`
	Count  int                `json:"count"`
}

// HealthResponse aggregates database and worker pool health.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Database *database.HealthStatus `json:"database,omitempty"`
	Pool     *queue.PoolHealth      `json:"pool,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toRunResponse(run *models.Run) RunResponse {
	resp := RunResponse{
		ID:           run.ID,
		ScenarioName: run.ScenarioName,
		Status:       string(run.Status),
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		HasTrace:     len(run.Trace) > 0,
	}
	if run.PodID != nil {
		resp.PodID = *run.PodID
	}
	if run.ErrorMessage != nil {
		resp.ErrorMessage = *run.ErrorMessage
	}
	return resp
}

func toJudgmentResponse(j *models.Judgment) JudgmentResponse {
	return JudgmentResponse{
		RunID:     j.RunID,
		Success:   j.Success,
		Failure:   j.FailureReason,
		Payload:   j.Payload,
		CreatedAt: j.CreatedAt,
	}
}

func toRunEventResponse(ev *models.RunEvent) RunEventResponse {
	return RunEventResponse{
		ID:        ev.ID,
		Channel:   ev.Channel,
		Payload:   ev.Payload,
		CreatedAt: ev.CreatedAt,
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func int64Query(c *gin.Context, name string, fallback int64) int64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
