// Package stream delivers run progress events over PostgreSQL
// LISTEN/NOTIFY. Persistent events land in the run_events table and are
// broadcast in the same transaction; transient events are broadcast only.
package stream

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event type tags carried in every payload.
const (
	TypeRunStatus    = "run.status"
	TypeRunProgress  = "run.progress"
	TypeRunJudgment  = "run.judgment"
	TypeEventLogged  = "run.event_logged"
	GlobalRunChannel = "runs_global"
)

// RunChannel derives the NOTIFY channel for a run.
func RunChannel(runID string) string {
	return "run_" + strings.ReplaceAll(runID, "-", "_")
}

// BasePayload carries the routing fields present on every stream payload.
type BasePayload struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
}

// NewBasePayload stamps the routing fields.
func NewBasePayload(typ, runID string) BasePayload {
	return BasePayload{Type: typ, RunID: runID, Timestamp: time.Now().Format(time.RFC3339Nano)}
}

// RunStatusPayload announces a run lifecycle transition.
type RunStatusPayload struct {
	BasePayload
	Status       string `json:"status"`
	PodID        string `json:"pod_id,omitempty"`
	ErrorMessage string `json:"error,omitempty"`
}

// RunProgressPayload is a transient tick-progress update.
type RunProgressPayload struct {
	BasePayload
	SimTime      float64 `json:"sim_time"`
	LoggedEvents int     `json:"logged_events"`
}

// EventLoggedPayload announces one completed simulation event.
type EventLoggedPayload struct {
	BasePayload
	EventID string  `json:"event_id"`
	Tool    string  `json:"tool,omitempty"`
	Time    float64 `json:"time"`
	Failed  bool    `json:"failed"`
}

// JudgmentPayload announces the stored verdict.
type JudgmentPayload struct {
	BasePayload
	Success bool   `json:"success"`
	Failure string `json:"failure,omitempty"`
}

// Publisher publishes run progress for live delivery.
type Publisher struct {
	db *sql.DB
}

// NewPublisher creates a publisher over the pooled connection.
func NewPublisher(db *sql.DB) *Publisher {
	return &Publisher{db: db}
}

// PublishRunStatus persists a status transition to the run channel and
// broadcasts a transient copy on the global channel.
func (p *Publisher) PublishRunStatus(ctx context.Context, runID string, payload RunStatusPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal RunStatusPayload: %w", err)
	}
	if err := p.persistAndNotify(ctx, runID, RunChannel(runID), raw); err != nil {
		return err
	}
	return p.notifyOnly(ctx, GlobalRunChannel, raw)
}

// PublishEventLogged persists and broadcasts one completed simulation event.
func (p *Publisher) PublishEventLogged(ctx context.Context, runID string, payload EventLoggedPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal EventLoggedPayload: %w", err)
	}
	return p.persistAndNotify(ctx, runID, RunChannel(runID), raw)
}

// PublishJudgment persists and broadcasts the verdict.
func (p *Publisher) PublishJudgment(ctx context.Context, runID string, payload JudgmentPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal JudgmentPayload: %w", err)
	}
	return p.persistAndNotify(ctx, runID, RunChannel(runID), raw)
}

// PublishProgress broadcasts a transient tick-progress update, never
// persisted. High-frequency and safe to lose.
func (p *Publisher) PublishProgress(ctx context.Context, runID string, payload RunProgressPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal RunProgressPayload: %w", err)
	}
	return p.notifyOnly(ctx, RunChannel(runID), raw)
}

// persistAndNotify inserts into run_events and broadcasts via NOTIFY in one
// transaction. pg_notify is transactional: the notification is held until
// COMMIT, so a listener never sees an event that was rolled back.
func (p *Publisher) persistAndNotify(ctx context.Context, runID, channel string, payload []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin event transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO run_events (run_id, channel, payload, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		runID, channel, payload, time.Now().UTC(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("failed to persist run event: %w", err)
	}

	notifyPayload, err := injectEventID(payload, eventID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}
	return nil
}

func (p *Publisher) notifyOnly(ctx context.Context, channel string, payload []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payload))
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// injectEventID adds the db id so clients can fetch anything they missed
// from run_events, then applies the NOTIFY size cap.
func injectEventID(payload []byte, eventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", fmt.Errorf("failed to decode payload for id injection: %w", err)
	}
	m["db_event_id"] = eventID
	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode enriched payload: %w", err)
	}
	return truncateIfNeeded(string(enriched))
}

// truncateIfNeeded keeps payloads under PostgreSQL's 8000-byte NOTIFY limit.
// Oversized payloads collapse to a routing envelope; clients refetch the
// full event from run_events by db_event_id.
func truncateIfNeeded(payload string) (string, error) {
	if len(payload) <= 7900 {
		return payload, nil
	}
	var routing struct {
		Type      string `json:"type"`
		RunID     string `json:"run_id"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal([]byte(payload), &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}
	envelope := map[string]any{
		"type":      routing.Type,
		"run_id":    routing.RunID,
		"truncated": true,
	}
	if routing.DBEventID != nil {
		envelope["db_event_id"] = *routing.DBEventID
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to encode truncation envelope: %w", err)
	}
	return string(out), nil
}
