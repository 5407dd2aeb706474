// Package driver defines the boundary to the AI browser-control capability.
//
// The engine treats the driver purely as an I/O boundary: instructions go
// in, observations and action reports come out, with no latency guarantee.
// Everything above this package (orchestrator, recovery, verification,
// pipeline) is written against these interfaces so the capability can be
// swapped or faked in tests.
package driver

import (
	"context"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/types"
)

// ActResult reports a single AI-driven page interaction.
type ActResult struct {
	Success bool
	Message string
	Usage   types.Usage
}

// Observation describes one candidate interactive element.
type Observation struct {
	Description string `json:"description"`
}

// AgentResult reports a multi-step agent task.
type AgentResult struct {
	Success bool
	Message string

	// Actions lists the discrete browser actions the agent performed.
	Actions []string

	Usage types.Usage
}

// Driver is the AI browser-control capability.
type Driver interface {
	// Act performs one instruction against the instance's active tab.
	Act(ctx context.Context, instance *browser.Instance, instruction string) (ActResult, error)

	// Extract answers a prompt from the current page content.
	Extract(ctx context.Context, instance *browser.Instance, prompt string) (string, types.Usage, error)

	// Observe lists interactive elements relevant to the instruction.
	Observe(ctx context.Context, instance *browser.Instance, instruction string) ([]Observation, types.Usage, error)

	// RunAgentTask drives the page through a multi-step task, bounded by
	// maxSteps discrete actions.
	RunAgentTask(ctx context.Context, instance *browser.Instance, instruction string, maxSteps int) (AgentResult, error)
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of an LLM conversation.
type Message struct {
	Role    Role
	Content string
}

// LanguageModel is the plain-text completion capability behind judgment,
// planning, and chat routing. It is deliberately separate from Driver:
// those calls reason about text, not pages.
type LanguageModel interface {
	Complete(ctx context.Context, messages []Message) (string, types.Usage, error)

	// Model returns the model name completions are billed against.
	Model() string
}
