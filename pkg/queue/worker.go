package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/config"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/models"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/store"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/stream"
)

// Worker polls for pending runs and processes one at a time.
type Worker struct {
	id        string
	podID     string
	store     RunStore
	cfg       *config.QueueConfig
	executor  Executor
	publisher ProgressPublisher
	pool      *WorkerPool
	stopCh    chan struct{}
	stopOnce  sync.Once
	doneCh    chan struct{}

	mu            sync.Mutex
	status        WorkerStatus
	currentRunID  string
	runsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a worker owned by the given pool.
func NewWorker(id, podID string, store RunStore, cfg *config.QueueConfig,
	executor Executor, publisher ProgressPublisher, pool *WorkerPool) *Worker {
	return &Worker{
		id:        id,
		podID:     podID,
		store:     store,
		cfg:       cfg,
		executor:  executor,
		publisher: publisher,
		pool:      pool,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		status:    WorkerStatusIdle,
	}
}

// Start begins the polling loop in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop signals the worker to stop and waits for the current run to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

// Health returns the worker's health snapshot.
func (w *Worker) Health() WorkerHealth {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentRunID:  w.currentRunID,
		RunsProcessed: w.runsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneCh)
	slog.Debug("worker started", "worker_id", w.id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-time.After(w.jitteredInterval()):
			if err := w.pollAndProcess(ctx); err != nil &&
				!errors.Is(err, store.ErrNoRunsAvailable) && !errors.Is(err, ErrAtCapacity) {
				slog.Error("worker poll failed", "worker_id", w.id, "error", err)
			}
		}
	}
}

// jitteredInterval spreads worker polls so they do not stampede the store.
func (w *Worker) jitteredInterval() time.Duration {
	base := w.cfg.PollInterval
	jitter := w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	d := base - jitter + time.Duration(rand.Int64N(int64(2*jitter)))
	if d <= 0 {
		return base
	}
	return d
}

func (w *Worker) pollAndProcess(ctx context.Context) error {
	running, err := w.store.CountByStatus(ctx, models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("count running runs: %w", err)
	}
	if running >= w.cfg.MaxConcurrentRuns {
		return ErrAtCapacity
	}

	run, err := w.store.ClaimNextRun(ctx, w.podID)
	if err != nil {
		return err
	}

	w.setWorking(run.ID)
	defer w.setIdle()

	w.process(ctx, run)
	return nil
}

func (w *Worker) process(ctx context.Context, run *models.Run) {
	slog.Info("run claimed", "worker_id", w.id, "run_id", run.ID, "scenario", run.ScenarioName)
	w.publishStatus(run.ID, models.RunStatusRunning, "")

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.RunTimeout)
	defer cancel()
	w.pool.RegisterRun(run.ID, cancel)
	defer w.pool.UnregisterRun(run.ID)

	hbDone := make(chan struct{})
	go w.heartbeatLoop(runCtx, run.ID, hbDone)

	result := w.executor.Execute(runCtx, run)
	cancel()
	<-hbDone

	if result == nil {
		result = &Result{Status: models.RunStatusFailed, Err: errors.New("executor returned no result")}
	}

	status := result.Status
	errMsg := ""
	if result.Err != nil {
		errMsg = result.Err.Error()
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			status = models.RunStatusTimedOut
			errMsg = fmt.Sprintf("run exceeded %s timeout", w.cfg.RunTimeout)
		} else if errors.Is(runCtx.Err(), context.Canceled) {
			status = models.RunStatusFailed
			errMsg = "run canceled"
		}
	}

	// Persistence uses a fresh context; the run context may be dead.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer saveCancel()

	if len(result.Trace) > 0 {
		if err := w.store.SaveTrace(saveCtx, run.ID, result.Trace); err != nil {
			slog.Error("save trace failed", "run_id", run.ID, "error", err)
		}
	}
	if result.Judgment != nil {
		if err := w.saveJudgment(saveCtx, run.ID, result); err != nil {
			slog.Error("save judgment failed", "run_id", run.ID, "error", err)
			status = models.RunStatusFailed
			errMsg = fmt.Sprintf("save judgment: %v", err)
		}
	}

	if err := w.store.CompleteRun(saveCtx, run.ID, status, errMsg); err != nil {
		slog.Error("complete run failed", "run_id", run.ID, "status", status, "error", err)
	}
	w.publishStatus(run.ID, status, errMsg)

	slog.Info("run finished",
		"worker_id", w.id,
		"run_id", run.ID,
		"status", status,
		"error", errMsg)

	w.mu.Lock()
	w.runsProcessed++
	w.mu.Unlock()
}

func (w *Worker) saveJudgment(ctx context.Context, runID string, result *Result) error {
	payload, err := json.Marshal(result.Judgment)
	if err != nil {
		return fmt.Errorf("serialize judgment: %w", err)
	}
	j := &models.Judgment{
		RunID:   runID,
		Success: result.Judgment.Success,
		Payload: payload,
	}
	if !result.Judgment.Success {
		j.FailureReason = result.Judgment.FailureReason
	}
	if err := w.store.SaveJudgment(ctx, j); err != nil {
		return err
	}
	if w.publisher != nil {
		p := stream.JudgmentPayload{
			BasePayload: stream.NewBasePayload(stream.TypeRunJudgment, runID),
			Success:     result.Judgment.Success,
			Failure:     j.FailureReason,
		}
		if err := w.publisher.PublishJudgment(ctx, runID, p); err != nil {
			slog.Error("publish judgment failed", "run_id", runID, "error", err)
		}
	}
	return nil
}

// heartbeatLoop refreshes the run's heartbeat until the run context ends.
func (w *Worker) heartbeatLoop(ctx context.Context, runID string, done chan<- struct{}) {
	defer close(done)
	interval := w.cfg.OrphanThreshold / 3
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(context.Background(), runID); err != nil {
				slog.Warn("heartbeat failed", "run_id", runID, "error", err)
			}
		}
	}
}

func (w *Worker) publishStatus(runID string, status models.RunStatus, errMsg string) {
	if w.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := stream.RunStatusPayload{
		BasePayload:  stream.NewBasePayload(stream.TypeRunStatus, runID),
		Status:       string(status),
		PodID:        w.podID,
		ErrorMessage: errMsg,
	}
	if err := w.publisher.PublishRunStatus(ctx, runID, p); err != nil {
		slog.Error("publish run status failed", "run_id", runID, "error", err)
	}
}

func (w *Worker) setWorking(runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = WorkerStatusWorking
	w.currentRunID = runID
	w.lastActivity = time.Now()
}

func (w *Worker) setIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = WorkerStatusIdle
	w.currentRunID = ""
	w.lastActivity = time.Now()
}
