package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/config"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/models"
)

// WorkerPool manages a pool of run workers and the orphan detection loop.
type WorkerPool struct {
	podID     string
	store     RunStore
	cfg       *config.QueueConfig
	executor  Executor
	publisher ProgressPublisher
	workers   []*Worker
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	// Run cancel registry: run_id → cancel function
	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
	started    bool

	orphans orphanState
}

// orphanState tracks orphan detection metrics.
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// NewWorkerPool creates a worker pool. The publisher may be nil.
func NewWorkerPool(podID string, store RunStore, cfg *config.QueueConfig,
	executor Executor, publisher ProgressPublisher) *WorkerPool {
	return &WorkerPool{
		podID:      podID,
		store:      store,
		cfg:        cfg,
		executor:   executor,
		publisher:  publisher,
		workers:    make([]*Worker, 0, cfg.WorkerCount),
		stopCh:     make(chan struct{}),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Start recovers this pod's startup orphans, spawns the workers, and
// starts orphan detection. Safe to call twice; the second call is a no-op.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started", "pod_id", p.podID)
		return nil
	}
	p.started = true

	// Anything this pod owned before a restart is dead.
	if ids, err := p.store.RecoverPodOrphans(ctx, p.podID); err != nil {
		slog.Error("startup orphan cleanup failed", "pod_id", p.podID, "error", err)
	} else if len(ids) > 0 {
		slog.Warn("recovered startup orphans", "pod_id", p.podID, "run_ids", ids)
	}

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker := NewWorker(fmt.Sprintf("%s-worker-%d", p.podID, i), p.podID,
			p.store, p.cfg, p.executor, p.publisher, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()
	return nil
}

// Stop signals all workers to stop and waits for them. Workers finish
// their current runs first.
func (p *WorkerPool) Stop() {
	active := p.activeRunIDs()
	if len(active) > 0 {
		slog.Info("waiting for active runs to complete", "count", len(active), "run_ids", active)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

// RegisterRun stores a cancel function for manual cancellation.
func (p *WorkerPool) RegisterRun(runID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeRuns[runID] = cancel
}

// UnregisterRun removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterRun(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeRuns, runID)
}

// CancelRun cancels a run executing on this pod. Returns false when the
// run is not held here.
func (p *WorkerPool) CancelRun(runID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeRuns[runID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the pool's health snapshot.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.store.CountByStatus(ctx, models.RunStatusPending)
	if errQ != nil {
		slog.Error("queue depth query failed", "pod_id", p.podID, "error", errQ)
	}
	activeRuns, errA := p.store.CountByStatus(ctx, models.RunStatusRunning)
	if errA != nil {
		slog.Error("active runs query failed", "pod_id", p.podID, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		workerStats[i] = worker.Health()
		if workerStats[i].Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	dbHealthy := errQ == nil && errA == nil
	var dbError string
	if errQ != nil {
		dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
	} else if errA != nil {
		dbError = fmt.Sprintf("active runs query failed: %v", errA)
	}

	p.orphans.mu.Lock()
	lastScan := p.orphans.lastOrphanScan
	recovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	return &PoolHealth{
		IsHealthy:        len(p.workers) > 0 && dbHealthy && activeRuns <= p.cfg.MaxConcurrentRuns,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveRuns:       activeRuns,
		MaxConcurrent:    p.cfg.MaxConcurrentRuns,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}

// runOrphanDetection periodically recovers runs with stale heartbeats.
// Every pod runs this independently; the store update is idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			threshold := time.Now().Add(-p.cfg.OrphanThreshold)
			ids, err := p.store.RecoverOrphans(ctx, threshold)
			if err != nil {
				slog.Error("orphan detection failed", "error", err)
				continue
			}
			if len(ids) > 0 {
				slog.Warn("recovered orphaned runs", "run_ids", ids)
			}
			p.orphans.mu.Lock()
			p.orphans.lastOrphanScan = time.Now()
			p.orphans.orphansRecovered += len(ids)
			p.orphans.mu.Unlock()
		}
	}
}

func (p *WorkerPool) activeRunIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeRuns))
	for id := range p.activeRuns {
		ids = append(ids, id)
	}
	return ids
}
