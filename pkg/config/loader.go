package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up inside the config directory.
const FileName = "aresim.yaml"

// Initialize loads aresim.yaml from the directory, expands environment
// variables, merges over the built-in defaults, and validates the result.
// A missing file yields the defaults.
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg, err := load(filepath.Join(configDir, FileName))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized",
		"judge_mode", string(cfg.Judge.Mode),
		"workers", cfg.Queue.WorkerCount,
		"llm_model", cfg.LLM.Model)
	return cfg, nil
}

func load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("configuration file not found, using defaults", "path", path)
			return cfg, nil
		}
		return nil, &LoadError{File: path, Err: err}
	}

	data = ExpandEnv(data)

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, &LoadError{File: path, Err: fmt.Errorf("%w: %v", ErrInvalidYAML, err)}
	}

	// User values override defaults; unset fields keep the defaults.
	if err := mergo.Merge(cfg, &loaded, mergo.WithOverride); err != nil {
		return nil, &LoadError{File: path, Err: fmt.Errorf("failed to merge configuration: %w", err)}
	}
	return cfg, nil
}
