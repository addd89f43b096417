// Package queue implements the run worker pool: claim pending runs from
// the store, execute and judge them with heartbeats, and recover orphans
// left behind by dead pods.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/judge"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/models"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/stream"
)

// ErrAtCapacity signals the global concurrent-run limit is reached.
var ErrAtCapacity = errors.New("at max concurrent runs")

// RunStore is the persistence surface the pool and workers use.
// *store.Store implements it.
type RunStore interface {
	ClaimNextRun(ctx context.Context, podID string) (*models.Run, error)
	Heartbeat(ctx context.Context, runID string) error
	CompleteRun(ctx context.Context, runID string, status models.RunStatus, errMsg string) error
	SaveTrace(ctx context.Context, runID string, trace json.RawMessage) error
	SaveJudgment(ctx context.Context, j *models.Judgment) error
	CountByStatus(ctx context.Context, status models.RunStatus) (int, error)
	RecoverOrphans(ctx context.Context, threshold time.Time) ([]string, error)
	RecoverPodOrphans(ctx context.Context, podID string) ([]string, error)
}

// ProgressPublisher is the streaming surface; nil disables streaming.
// *stream.Publisher implements it.
type ProgressPublisher interface {
	PublishRunStatus(ctx context.Context, runID string, payload stream.RunStatusPayload) error
	PublishJudgment(ctx context.Context, runID string, payload stream.JudgmentPayload) error
}

// Result is the outcome of executing one run.
type Result struct {
	Status   models.RunStatus
	Judgment *judge.Judgment
	Trace    json.RawMessage
	Err      error
}

// Executor executes one claimed run.
type Executor interface {
	Execute(ctx context.Context, run *models.Run) *Result
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is one worker's health snapshot.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentRunID  string       `json:"current_run_id,omitempty"`
	RunsProcessed int          `json:"runs_processed"`
	LastActivity  time.Time    `json:"last_activity"`
}

// PoolHealth is the pool's health snapshot for the health endpoint.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveRuns       int            `json:"active_runs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}
