// Package config loads and validates the aresim.yaml configuration file:
// environment defaults, judge tolerances, LLM provider settings, and the
// worker queue tuning.
package config

import (
	"fmt"
	"time"
)

// Config is the fully resolved service configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Judge       JudgeConfig       `yaml:"judge"`
	LLM         LLMConfig         `yaml:"llm"`
	Queue       QueueConfig       `yaml:"queue"`
}

// EnvironmentConfig holds simulation loop defaults applied to runs that do
// not pin their own.
type EnvironmentConfig struct {
	// StartTime is the virtual time at scenario start, in seconds.
	StartTime float64 `yaml:"start_time"`
	// Duration bounds a run in seconds; <= 0 runs until the queue drains.
	Duration float64 `yaml:"duration"`
	// TimeIncrement is the tick quantum in seconds.
	TimeIncrement float64 `yaml:"time_increment_in_seconds"`
}

// JudgeConfig holds the trajectory judge settings.
type JudgeConfig struct {
	// Mode selects the judge implementation.
	Mode JudgeMode `yaml:"mode"`

	// Tolerances for agent event timing, in seconds.
	PreEventToleranceSeconds  float64 `yaml:"pre_event_tolerance_seconds"`
	PostEventToleranceSeconds float64 `yaml:"post_event_tolerance_seconds"`
	CheckTimeThresholdSeconds float64 `yaml:"check_time_threshold_seconds"`

	// ExtraSendMessageToUserAllowed is the slack on user-facing messages.
	ExtraSendMessageToUserAllowed int `yaml:"extra_send_message_to_user_allowed"`

	// Votes is the majority-vote sample count for soft checkers.
	Votes int `yaml:"votes"`

	// PerToolArgCheckers routes tool_name → arg_name → checker name.
	PerToolArgCheckers map[string]map[string]string `yaml:"per_tool_arg_checkers"`
	// PerToolSoftCheckers lists LLM soft checkers per tool.
	PerToolSoftCheckers map[string][]string `yaml:"per_tool_soft_checkers"`
}

// LLMConfig holds the OpenAI-compatible provider settings for the judge's
// soft checkers and the in-context judge.
type LLMConfig struct {
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// QueueConfig tunes the run worker pool.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per pod.
	WorkerCount int `yaml:"worker_count"`
	// MaxConcurrentRuns bounds running runs across all pods, enforced by a
	// database count check.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
	// PollInterval is the base interval for checking pending runs.
	PollInterval time.Duration `yaml:"poll_interval"`
	// PollIntervalJitter randomizes polling: PollInterval ± jitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`
	// RunTimeout is the wall-clock budget for executing one run.
	RunTimeout time.Duration `yaml:"run_timeout"`
	// GracefulShutdownTimeout bounds the wait for active runs on shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
	// OrphanDetectionInterval is how often to scan for orphaned runs.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`
	// OrphanThreshold is the heartbeat age after which a run is orphaned.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			StartTime:     0,
			Duration:      0,
			TimeIncrement: 1,
		},
		Judge: JudgeConfig{
			Mode:                          JudgeModeGraph,
			PreEventToleranceSeconds:      10,
			PostEventToleranceSeconds:     25,
			CheckTimeThresholdSeconds:     1,
			ExtraSendMessageToUserAllowed: 1,
			Votes:                         1,
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Queue: QueueConfig{
			WorkerCount:             5,
			MaxConcurrentRuns:       5,
			PollInterval:            1 * time.Second,
			PollIntervalJitter:      500 * time.Millisecond,
			RunTimeout:              15 * time.Minute,
			GracefulShutdownTimeout: 15 * time.Minute,
			OrphanDetectionInterval: 5 * time.Minute,
			OrphanThreshold:         5 * time.Minute,
		},
	}
}

// Validate checks the resolved configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Environment.TimeIncrement <= 0 {
		return NewValidationError("environment", "time_increment_in_seconds",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.Environment.Duration < 0 {
		return NewValidationError("environment", "duration",
			fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if !c.Judge.Mode.IsValid() {
		return NewValidationError("judge", "mode",
			fmt.Errorf("%w: %q", ErrInvalidValue, c.Judge.Mode))
	}
	if c.Judge.PreEventToleranceSeconds < 0 || c.Judge.PostEventToleranceSeconds < 0 {
		return NewValidationError("judge", "tolerances",
			fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if c.Judge.ExtraSendMessageToUserAllowed < 0 {
		return NewValidationError("judge", "extra_send_message_to_user_allowed",
			fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if c.Judge.Votes < 1 {
		return NewValidationError("judge", "votes",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.Queue.WorkerCount < 1 {
		return NewValidationError("queue", "worker_count",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.Queue.MaxConcurrentRuns < 1 {
		return NewValidationError("queue", "max_concurrent_runs",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.Queue.PollInterval <= 0 {
		return NewValidationError("queue", "poll_interval",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.Queue.RunTimeout <= 0 {
		return NewValidationError("queue", "run_timeout",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.LLM.Model == "" {
		return NewValidationError("llm", "model",
			fmt.Errorf("%w: model", ErrMissingRequiredField))
	}
	return nil
}
