package judge

import (
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/config"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/llm"
)

// FromServiceConfig maps the aresim.yaml judge section to a judge Config.
// The engine may be nil; soft checkers are then skipped.
func FromServiceConfig(c config.JudgeConfig, engine llm.Engine) *Config {
	extra := c.ExtraSendMessageToUserAllowed
	cfg := &Config{
		PreEventToleranceSeconds:      c.PreEventToleranceSeconds,
		PostEventToleranceSeconds:     c.PostEventToleranceSeconds,
		CheckTimeThresholdSeconds:     c.CheckTimeThresholdSeconds,
		ExtraSendMessageToUserAllowed: &extra,
		Votes:                         c.Votes,
		Engine:                        engine,
	}
	if len(c.PerToolArgCheckers) > 0 {
		cfg.PerToolArgCheckers = make(map[string]map[string]CheckerType, len(c.PerToolArgCheckers))
		for tool, args := range c.PerToolArgCheckers {
			m := make(map[string]CheckerType, len(args))
			for arg, checker := range args {
				m[arg] = CheckerType(checker)
			}
			cfg.PerToolArgCheckers[tool] = m
		}
	}
	if len(c.PerToolSoftCheckers) > 0 {
		cfg.PerToolSoftCheckers = make(map[string][]CheckerType, len(c.PerToolSoftCheckers))
		for tool, checkers := range c.PerToolSoftCheckers {
			list := make([]CheckerType, len(checkers))
			for i, checker := range checkers {
				list[i] = CheckerType(checker)
			}
			cfg.PerToolSoftCheckers[tool] = list
		}
	}
	cfg.ApplyDefaults()
	return cfg
}
