package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestInitializeDefaultsWhenMissing(t *testing.T) {
	cfg, err := Initialize(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, JudgeModeGraph, cfg.Judge.Mode)
	assert.Equal(t, 10.0, cfg.Judge.PreEventToleranceSeconds)
	assert.Equal(t, 5, cfg.Queue.WorkerCount)
}

func TestInitializeMergesOverDefaults(t *testing.T) {
	dir := writeConfig(t, `
judge:
  mode: incontext
  votes: 3
queue:
  worker_count: 2
  poll_interval: 250ms
`)
	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, JudgeModeInContext, cfg.Judge.Mode)
	assert.Equal(t, 3, cfg.Judge.Votes)
	assert.Equal(t, 2, cfg.Queue.WorkerCount)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.PollInterval)
	// Unset fields keep the defaults.
	assert.Equal(t, 25.0, cfg.Judge.PostEventToleranceSeconds)
	assert.Equal(t, 5, cfg.Queue.MaxConcurrentRuns)
}

func TestInitializeRejectsUnknownJudgeMode(t *testing.T) {
	dir := writeConfig(t, "judge:\n  mode: vibes\n")
	_, err := Initialize(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestInitializeRejectsInvalidValues(t *testing.T) {
	dir := writeConfig(t, "queue:\n  worker_count: -1\n")
	_, err := Initialize(dir)
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "queue", vErr.Section)
	assert.Equal(t, "worker_count", vErr.Field)
}

func TestInitializeExpandsEnv(t *testing.T) {
	t.Setenv("TEST_LLM_MODEL", "gpt-test")
	dir := writeConfig(t, "llm:\n  model: \"{{.TEST_LLM_MODEL}}\"\n")

	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", cfg.LLM.Model)
}

func TestPerToolCheckersParse(t *testing.T) {
	dir := writeConfig(t, `
judge:
  per_tool_arg_checkers:
    calendar.add_calendar_event:
      attendees: unordered_list
  per_tool_soft_checkers:
    agentuserinterface.send_message_to_user: [content]
`)
	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, "unordered_list",
		cfg.Judge.PerToolArgCheckers["calendar.add_calendar_event"]["attendees"])
	assert.Equal(t, []string{"content"},
		cfg.Judge.PerToolSoftCheckers["agentuserinterface.send_message_to_user"])
}
