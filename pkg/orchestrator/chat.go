package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/driver"
	"github.com/entrhq/vouch/pkg/types"
)

const chatSystemPrompt = `You route messages for a browser QA assistant controlling a pool of
named browser instances. Classify the user's message and answer with JSON
only:
{"intent":"<intent>","instruction":"...","name":"...","url":"...","reply":"..."}
Intents:
- "reply": plain conversation, put your answer in "reply"
- "task": a multi-step browser task, restate it in "instruction"
- "act": a single page interaction, restate it in "instruction"
- "goto": navigation, put the target in "url"
- "learn": a fact to remember about the current site, put it in "instruction"
- "extract": a request to read page content, restate it in "instruction"
- "observe": a request to list page elements, restate it in "instruction"
- "spawn": a request for a new browser instance, put its name in "name"
- "switch": a request to change the active instance, put its name in "name"`

// chatIntent is the routing decision for one chat message.
type chatIntent struct {
	Intent      string `json:"intent"`
	Instruction string `json:"instruction"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Reply       string `json:"reply"`
}

// runChat handles the chat and auto modes: the message either gets a direct
// reply or is handed off to another mode or a pool mutation. After a
// hand-off completes, one more model round-trip produces a natural-language
// summary of what happened.
func (o *Orchestrator) runChat(ctx context.Context, cmd types.Command, instance *browser.Instance, notes string) types.Result {
	if o.lm == nil {
		return types.Result{Message: "no language model configured for chat"}
	}

	messages := []driver.Message{
		{Role: driver.RoleSystem, Content: chatSystemPrompt},
	}
	if notes != "" {
		messages = append(messages, driver.Message{Role: driver.RoleSystem, Content: notes})
	}
	messages = append(messages, driver.Message{Role: driver.RoleUser, Content: cmd.Instruction})

	answer, usage, err := o.lm.Complete(ctx, messages)
	if err != nil {
		return types.Result{Message: "chat routing failed: " + err.Error(), Usage: usage}
	}

	intent, err := parseIntent(answer)
	if err != nil {
		// An unparseable decision is treated as a plain reply.
		return types.Result{Message: strings.TrimSpace(answer), Success: true, Usage: usage}
	}

	switch intent.Intent {
	case "", "reply":
		reply := intent.Reply
		if reply == "" {
			reply = strings.TrimSpace(answer)
		}
		return types.Result{Message: reply, Success: true, Usage: usage}

	case "spawn":
		return o.spawnIntent(intent, usage)

	case "switch":
		if err := o.pool.SetActive(intent.Name); err != nil {
			return types.Result{Message: "switching instance failed: " + err.Error(), Usage: usage}
		}
		return types.Result{Message: "active instance is now " + intent.Name, Success: true, Usage: usage}

	case "task", "act", "goto", "learn", "extract", "observe":
		return o.handOff(ctx, cmd, instance, notes, intent, usage)
	}

	return types.Result{Message: fmt.Sprintf("unsupported chat intent %q", intent.Intent), Usage: usage}
}

func (o *Orchestrator) spawnIntent(intent chatIntent, usage types.Usage) types.Result {
	if intent.Name == "" {
		return types.Result{Message: "spawn request did not name the instance", Usage: usage}
	}
	if _, err := o.pool.Spawn(intent.Name, browser.SpawnOptions{StartURL: intent.URL}); err != nil {
		return types.Result{Message: "spawning instance failed: " + err.Error(), Usage: usage}
	}
	return types.Result{Message: "spawned instance " + intent.Name, Success: true, Usage: usage}
}

// handOff re-dispatches the message under the routed mode, then asks the
// model to summarize the outcome conversationally. The summary round-trip
// is subject to the same cancellation contract as the hand-off itself.
func (o *Orchestrator) handOff(ctx context.Context, cmd types.Command, instance *browser.Instance, notes string, intent chatIntent, usage types.Usage) types.Result {
	routed := cmd
	routed.Mode = types.Mode(intent.Intent)
	routed.Instruction = intent.Instruction
	if intent.Intent == "goto" {
		routed.Instruction = intent.URL
	}

	result := o.dispatch(ctx, routed, instance, notes)
	result.Usage = usage.Add(result.Usage)

	summary, summaryUsage, err := o.lm.Complete(ctx, []driver.Message{
		{Role: driver.RoleSystem, Content: "Summarize for the user, in one or two sentences, what the assistant just did and how it went."},
		{Role: driver.RoleUser, Content: fmt.Sprintf(
			"Request: %s\nMode: %s\nOutcome (success=%t): %s", cmd.Instruction, routed.Mode, result.Success, result.Message)},
	})
	result.Usage = result.Usage.Add(summaryUsage)
	if err != nil {
		o.logger.Debugf("chat follow-up summary failed: %v", err)
		return result
	}
	result.Message = strings.TrimSpace(summary)
	return result
}

func parseIntent(answer string) (chatIntent, error) {
	trimmed := strings.TrimSpace(answer)
	if fenced := strings.TrimPrefix(trimmed, "```json"); fenced != trimmed {
		trimmed = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	} else if fenced := strings.TrimPrefix(trimmed, "```"); fenced != trimmed {
		trimmed = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	}
	var intent chatIntent
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &intent); err != nil {
		return chatIntent{}, fmt.Errorf("unparseable routing decision: %w", err)
	}
	return intent, nil
}
