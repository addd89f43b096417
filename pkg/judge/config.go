package judge

import "github.com/vedsirdeshmukh/meta-are-sub001/pkg/llm"

// CheckerType names a hard or soft argument checker.
type CheckerType string

// Hard checker types.
const (
	CheckerEq                CheckerType = "eq"
	CheckerUnorderedList     CheckerType = "unordered_list"
	CheckerListAttendees     CheckerType = "list_attendees"
	CheckerDatetime          CheckerType = "datetime"
	CheckerPhoneNumber       CheckerType = "phone_number"
	CheckerEqStrStrip        CheckerType = "eq_str_strip"
	CheckerPath              CheckerType = "path"
	CheckerUnorderedPathList CheckerType = "unordered_path_list"
	CheckerContainAny        CheckerType = "contain_any"
	CheckerContainAll        CheckerType = "contain_all"
)

// Soft checker types.
const (
	SoftContent     CheckerType = "content"
	SoftSignature   CheckerType = "signature"
	SoftPlaceholder CheckerType = "placeholder"
	SoftSanity      CheckerType = "sanity"
	SoftTone        CheckerType = "tone"
)

// Config tunes the judges. The zero value plus ApplyDefaults is usable
// without an LLM engine (hard checkers only).
type Config struct {
	// Time tolerances for agent events, in seconds.
	PreEventToleranceSeconds  float64
	PostEventToleranceSeconds float64
	CheckTimeThresholdSeconds float64

	// PerToolArgCheckers routes tool_name → arg_name → checker. Arguments
	// without an entry use eq.
	PerToolArgCheckers map[string]map[string]CheckerType

	// PerToolSoftCheckers lists the soft checkers per tool; consulted only
	// when an engine is configured.
	PerToolSoftCheckers map[string][]CheckerType

	// ExtraSendMessageToUserAllowed is how many user-facing messages beyond
	// the oracle count the agent may send. Nil means the default of 1;
	// zero means none.
	ExtraSendMessageToUserAllowed *int

	// ScriptedCheckerParams, when non-nil, pins checker parameters per
	// oracle event id and disables the soft judge.
	ScriptedCheckerParams map[string]map[string]CheckerType

	// ToleratedAttendees is stripped from both sides by list_attendees,
	// typically the user's full name.
	ToleratedAttendees []string

	// Context handed to soft-checker prompts.
	Today       string
	UserAddress string

	// Votes is the soft-checker majority-vote count; 1 means a single call.
	Votes int

	Engine llm.Engine
}

// ApplyDefaults fills the spec defaults on unset fields.
func (c *Config) ApplyDefaults() {
	if c.PreEventToleranceSeconds == 0 {
		c.PreEventToleranceSeconds = 10
	}
	if c.PostEventToleranceSeconds == 0 {
		c.PostEventToleranceSeconds = 25
	}
	if c.CheckTimeThresholdSeconds == 0 {
		c.CheckTimeThresholdSeconds = 1
	}
	if c.ExtraSendMessageToUserAllowed == nil {
		one := 1
		c.ExtraSendMessageToUserAllowed = &one
	}
	if c.Votes < 1 {
		c.Votes = 1
	}
}

// Scripted reports whether checker parameters are pinned per event,
// which disables the soft judge.
func (c *Config) Scripted() bool { return c.ScriptedCheckerParams != nil }

func (c *Config) checkerFor(tool, arg string, oracleID string) CheckerType {
	if c.Scripted() {
		if params, ok := c.ScriptedCheckerParams[oracleID]; ok {
			if ct, ok := params[arg]; ok {
				return ct
			}
		}
	}
	if args, ok := c.PerToolArgCheckers[tool]; ok {
		if ct, ok := args[arg]; ok {
			return ct
		}
	}
	return CheckerEq
}
