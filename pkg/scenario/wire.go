package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/env"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/events"
)

// wireScenario is the serialized scenario format. Events carry their DAG
// edges as id lists.
type wireScenario struct {
	Name          string          `json:"name"`
	StartTime     float64         `json:"start_time"`
	Duration      float64         `json:"duration,omitempty"`
	TimeIncrement float64         `json:"time_increment_in_seconds,omitempty"`
	Events        json.RawMessage `json:"events"`
}

// MarshalJSON serializes the scenario with its full event graph.
func (s *Scenario) MarshalJSON() ([]byte, error) {
	graph, err := events.MarshalGraph(s.events)
	if err != nil {
		return nil, fmt.Errorf("serialize scenario %s: %w", s.Name, err)
	}
	return json.MarshalIndent(wireScenario{
		Name:          s.Name,
		StartTime:     s.EnvConfig.StartTime,
		Duration:      s.EnvConfig.Duration,
		TimeIncrement: s.EnvConfig.TimeIncrement,
		Events:        graph,
	}, "", "  ")
}

// Unmarshal parses a serialized scenario and revalidates the graph.
// Apps and hooks are code, not data: the caller re-attaches them.
func Unmarshal(data []byte) (*Scenario, error) {
	var w wireScenario
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	evs, err := events.UnmarshalGraph(w.Events)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", w.Name, err)
	}

	s := New(w.Name, env.Config{
		StartTime:      w.StartTime,
		Duration:       w.Duration,
		TimeIncrement:  w.TimeIncrement,
		QueueBasedLoop: true,
	})
	s.events = evs
	for _, e := range evs {
		s.index[e.ID] = e
	}
	if err := s.revalidate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Unmarshal(data)
}

// Save writes the serialized scenario to a file.
func (s *Scenario) Save(path string) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	return nil
}
