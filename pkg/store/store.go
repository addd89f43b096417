// Package store persists evaluation runs, their judgments, and their
// progress events in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/models"
)

// Store sentinel errors.
var (
	ErrNotFound         = errors.New("run not found")
	ErrNoRunsAvailable  = errors.New("no pending runs available")
	ErrNoJudgment       = errors.New("no judgment recorded for run")
	ErrMissingScenario  = errors.New("run scenario is required")
	ErrInvalidRunStatus = errors.New("invalid run status")
)

// Store is the run persistence layer over a pooled *sql.DB.
type Store struct {
	db *sql.DB
}

// New creates a store over the connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const runColumns = `id, scenario_name, scenario, trace, status, pod_id, error_message,
	created_at, started_at, completed_at, last_heartbeat_at`

// CreateRun inserts a pending run and returns it. A missing id is generated.
func (s *Store) CreateRun(ctx context.Context, scenarioName string, scenario, trace json.RawMessage) (*models.Run, error) {
	if len(scenario) == 0 {
		return nil, ErrMissingScenario
	}

	run := &models.Run{
		ID:           uuid.NewString(),
		ScenarioName: scenarioName,
		Scenario:     scenario,
		Trace:        trace,
		Status:       models.RunStatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario_name, scenario, trace, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.ScenarioName, []byte(run.Scenario), nullableJSON(run.Trace),
		run.Status, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ClaimNextRun atomically claims the oldest pending run for the pod using
// FOR UPDATE SKIP LOCKED, so concurrent workers never double-claim.
func (s *Store) ClaimNextRun(ctx context.Context, podID string) (*models.Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE status = $1
		 ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`,
		models.RunStatusPending,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRunsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending run: %w", err)
	}

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx,
		`UPDATE runs SET status = $1, pod_id = $2, started_at = $3, last_heartbeat_at = $3
		 WHERE id = $4 RETURNING `+runColumns,
		models.RunStatusRunning, podID, now, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("failed to claim run %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return run, nil
}

// Heartbeat refreshes the run's liveness timestamp for orphan detection.
func (s *Store) Heartbeat(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET last_heartbeat_at = $1 WHERE id = $2`,
		time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("heartbeat for run %s: %w", runID, err)
	}
	return nil
}

// CompleteRun writes a terminal status and the optional error message.
func (s *Store) CompleteRun(ctx context.Context, runID string, status models.RunStatus, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidRunStatus, status)
	}
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, completed_at = $2, error_message = $3 WHERE id = $4`,
		status, time.Now().UTC(), msg, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// SaveTrace stores the recorded trace for a run.
func (s *Store) SaveTrace(ctx context.Context, runID string, trace json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET trace = $1 WHERE id = $2`, []byte(trace), runID)
	if err != nil {
		return fmt.Errorf("failed to save trace for run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// SaveJudgment upserts the run's judgment.
func (s *Store) SaveJudgment(ctx context.Context, j *models.Judgment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO judgments (run_id, success, failure_reason, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id) DO UPDATE
		 SET success = EXCLUDED.success,
		     failure_reason = EXCLUDED.failure_reason,
		     payload = EXCLUDED.payload,
		     created_at = EXCLUDED.created_at`,
		j.RunID, j.Success, j.FailureReason, []byte(j.Payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save judgment for run %s: %w", j.RunID, err)
	}
	return nil
}

// GetJudgment fetches the judgment for a run.
func (s *Store) GetJudgment(ctx context.Context, runID string) (*models.Judgment, error) {
	j := &models.Judgment{RunID: runID}
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT success, failure_reason, payload, created_at
		 FROM judgments WHERE run_id = $1`, runID,
	).Scan(&j.Success, &j.FailureReason, &payload, &j.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJudgment
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch judgment for run %s: %w", runID, err)
	}
	j.Payload = payload
	return j, nil
}

// ListRunEvents returns the persisted progress events for a run after the
// given id, in insertion order. Pass 0 for the full history.
func (s *Store) ListRunEvents(ctx context.Context, runID string, afterID int64) ([]*models.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, channel, payload, created_at
		 FROM run_events WHERE run_id = $1 AND id > $2 ORDER BY id ASC`,
		runID, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.RunEvent
	for rows.Next() {
		ev := &models.RunEvent{}
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Channel, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run event: %w", err)
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountByStatus returns how many runs currently have the given status.
func (s *Store) CountByStatus(ctx context.Context, status models.RunStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs with status %s: %w", status, err)
	}
	return n, nil
}

// RecoverOrphans marks running runs whose heartbeat is older than the
// threshold as timed_out. All pods run this independently; the update is
// idempotent. Returns the ids of the recovered runs.
func (s *Store) RecoverOrphans(ctx context.Context, threshold time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE runs SET status = $1, completed_at = $2,
		        error_message = 'orphaned: no heartbeat from pod ' || COALESCE(pod_id, 'unknown')
		 WHERE status = $3 AND last_heartbeat_at IS NOT NULL AND last_heartbeat_at < $4
		 RETURNING id`,
		models.RunStatusTimedOut, time.Now().UTC(), models.RunStatusRunning, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to recover orphans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecoverPodOrphans marks runs still owned by the pod as timed_out. Called
// once at startup: anything this pod owned before a restart is dead.
func (s *Store) RecoverPodOrphans(ctx context.Context, podID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE runs SET status = $1, completed_at = $2,
		        error_message = 'orphaned: pod ' || $3 || ' restarted mid-run'
		 WHERE status = $4 AND pod_id = $3
		 RETURNING id`,
		models.RunStatusTimedOut, time.Now().UTC(), podID, models.RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to recover pod orphans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	run := &models.Run{}
	var scenario, trace []byte
	err := row.Scan(&run.ID, &run.ScenarioName, &scenario, &trace, &run.Status,
		&run.PodID, &run.ErrorMessage, &run.CreatedAt, &run.StartedAt,
		&run.CompletedAt, &run.LastHeartbeatAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Scenario = scenario
	run.Trace = trace
	return run, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
