// Package types defines the shared data model for the vouch test engine:
// parsed commands, execution results, test plans, and usage accounting.
//
// The package has no dependencies on other vouch packages so that every
// layer (browser pool, orchestrator, pipeline, drivers) can exchange these
// values without import cycles.
package types

// Mode identifies which execution handler a command is dispatched to.
type Mode string

const (
	// ModeExtract pulls structured or free-text content from the current page.
	ModeExtract Mode = "extract"

	// ModeAct performs a single AI-driven page interaction.
	ModeAct Mode = "act"

	// ModeTask runs a multi-step AI-driven task against the page.
	ModeTask Mode = "task"

	// ModeObserve lists candidate interactive elements for an instruction.
	ModeObserve Mode = "observe"

	// ModeSearch performs a web search in the target instance.
	ModeSearch Mode = "search"

	// ModeAsk answers a question about the current page without acting on it.
	ModeAsk Mode = "ask"

	// ModeGoto navigates the active tab to a URL.
	ModeGoto Mode = "goto"

	// ModeLearn persists a user-provided fact about the current site.
	ModeLearn Mode = "learn"

	// ModeChat routes free-form conversation, delegating to other modes
	// when the message carries an actionable intent.
	ModeChat Mode = "chat"

	// ModeTest runs a structured test plan through the pipeline.
	ModeTest Mode = "test"

	// ModeAuto is chat with automatic intent detection; it is the default
	// when no explicit mode prefix is given.
	ModeAuto Mode = "auto"
)

// Valid reports whether m is one of the recognized dispatch modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeExtract, ModeAct, ModeTask, ModeObserve, ModeSearch,
		ModeAsk, ModeGoto, ModeLearn, ModeChat, ModeTest, ModeAuto:
		return true
	}
	return false
}

// Command is a parsed user or API instruction ready for dispatch.
type Command struct {
	// Mode selects the execution handler.
	Mode Mode

	// Instruction is the command text with targeting and mode prefixes removed.
	Instruction string

	// TargetInstance is the instance name from an @name prefix, empty when
	// the pool's active instance should be used.
	TargetInstance string

	// TargetTab selects a tab on the target instance: a decimal index, or a
	// URL fragment matched case-insensitively against open tab URLs. Empty
	// means the instance's current active tab.
	TargetTab string

	// Raw preserves the original text before parsing.
	Raw string
}

// Result is the uniform outcome of a dispatched command. Every mode,
// including failures, produces exactly one Result.
type Result struct {
	// Message is the human-readable outcome.
	Message string `json:"message"`

	// Success is false for failed and aborted commands.
	Success bool `json:"success"`

	// Usage is the token/cost accounting for the command, when known.
	Usage Usage `json:"usage,omitzero"`

	// CostUSD is set when the dispatched operation already settled its own
	// cost, so callers must not bill Usage a second time.
	CostUSD float64 `json:"cost_usd,omitempty"`

	// Actions lists the discrete browser actions an agent task performed.
	Actions []string `json:"actions,omitempty"`
}
