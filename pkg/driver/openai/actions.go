package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/driver"
	"github.com/entrhq/vouch/pkg/types"
)

// applyActionScript resolves a digest index to a live element and performs
// the decided action on it. The element criteria mirror the digest's:
// same selector, minus anything inside a subtree the digest skips.
const applyActionScript = `(args) => {
	const els = [...document.querySelectorAll('` + driver.InteractiveSelector + `')]
		.filter((el) => !el.closest('` + driver.SkippedSelector + `'));
	const el = els[args.index];
	if (!el) return false;
	if (args.action === 'fill') {
		el.focus();
		el.value = args.value;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	} else {
		el.click();
	}
	return true;
}`

const actSystemPrompt = `You control a web browser. You are given a digest of the current page
and one instruction. Decide the single best action and answer with JSON only:
{"action":"click"|"fill"|"none","index":<interactive element index>,"value":"<text for fill>","report":"<one sentence describing what you did or why nothing applied>"}`

const agentSystemPrompt = `You control a web browser working through a multi-step task. At each turn
you see a digest of the current page. Answer with JSON only:
{"action":"click"|"fill"|"navigate"|"done","index":<element index>,"value":"<text for fill>","url":"<target for navigate>","report":"<what you did, or the task outcome when done>"}
Use "done" once the task is complete or cannot proceed.`

// decision is the JSON the model answers action prompts with.
type decision struct {
	Action string `json:"action"`
	Index  int    `json:"index"`
	Value  string `json:"value"`
	URL    string `json:"url"`
	Report string `json:"report"`
}

// Act performs one instruction against the instance's active tab.
func (p *Provider) Act(ctx context.Context, instance *browser.Instance, instruction string) (driver.ActResult, error) {
	page, err := instance.ActiveTab()
	if err != nil {
		return driver.ActResult{}, err
	}
	digest, err := driver.DigestPage(page, 0)
	if err != nil {
		return driver.ActResult{}, err
	}

	reply, usage, err := p.Complete(ctx, []driver.Message{
		{Role: driver.RoleSystem, Content: actSystemPrompt},
		{Role: driver.RoleUser, Content: digest.Prompt() + "\n\nInstruction: " + instruction},
	})
	if err != nil {
		return driver.ActResult{}, err
	}

	var d decision
	if err := json.Unmarshal([]byte(stripFences(reply)), &d); err != nil {
		return driver.ActResult{Message: reply, Usage: usage}, fmt.Errorf("unparseable action decision: %w", err)
	}
	if d.Action == "none" || d.Action == "" {
		return driver.ActResult{Success: false, Message: d.Report, Usage: usage}, nil
	}

	if err := applyDecision(page, d); err != nil {
		return driver.ActResult{Success: false, Message: d.Report, Usage: usage}, err
	}
	message := d.Report
	if message == "" {
		message = fmt.Sprintf("performed %s on element %d", d.Action, d.Index)
	}
	return driver.ActResult{Success: true, Message: message, Usage: usage}, nil
}

func applyDecision(page browser.Page, d decision) error {
	if d.Action == "navigate" {
		_, err := page.Goto(d.URL)
		return err
	}
	applied, err := page.Evaluate(applyActionScript, map[string]interface{}{
		"action": d.Action,
		"index":  d.Index,
		"value":  d.Value,
	})
	if err != nil {
		return fmt.Errorf("applying %s: %w", d.Action, err)
	}
	if ok, _ := applied.(bool); !ok {
		return fmt.Errorf("element %d not found on page", d.Index)
	}
	return nil
}

// Extract answers a prompt from the current page content.
func (p *Provider) Extract(ctx context.Context, instance *browser.Instance, prompt string) (string, types.Usage, error) {
	page, err := instance.ActiveTab()
	if err != nil {
		return "", types.Usage{}, err
	}
	digest, err := driver.DigestPage(page, 0)
	if err != nil {
		return "", types.Usage{}, err
	}

	return p.Complete(ctx, []driver.Message{
		{Role: driver.RoleSystem, Content: "Answer the request using only the page digest provided. Be concise."},
		{Role: driver.RoleUser, Content: digest.Prompt() + "\n\nRequest: " + prompt},
	})
}

// Observe lists interactive elements relevant to the instruction.
func (p *Provider) Observe(ctx context.Context, instance *browser.Instance, instruction string) ([]driver.Observation, types.Usage, error) {
	page, err := instance.ActiveTab()
	if err != nil {
		return nil, types.Usage{}, err
	}
	digest, err := driver.DigestPage(page, 0)
	if err != nil {
		return nil, types.Usage{}, err
	}

	reply, usage, err := p.Complete(ctx, []driver.Message{
		{Role: driver.RoleSystem, Content: `List the interactive elements relevant to the request as a JSON array: [{"description":"..."}]`},
		{Role: driver.RoleUser, Content: digest.Prompt() + "\n\nRequest: " + instruction},
	})
	if err != nil {
		return nil, usage, err
	}

	var observations []driver.Observation
	if err := json.Unmarshal([]byte(stripFences(reply)), &observations); err != nil {
		// A prose answer still carries signal; surface it as one observation.
		return []driver.Observation{{Description: strings.TrimSpace(reply)}}, usage, nil
	}
	return observations, usage, nil
}

// RunAgentTask drives the page through a multi-step task, bounded by
// maxSteps discrete actions.
func (p *Provider) RunAgentTask(ctx context.Context, instance *browser.Instance, instruction string, maxSteps int) (driver.AgentResult, error) {
	if maxSteps <= 0 {
		maxSteps = 10
	}

	result := driver.AgentResult{}
	transcript := []driver.Message{
		{Role: driver.RoleSystem, Content: agentSystemPrompt},
		{Role: driver.RoleUser, Content: "Task: " + instruction},
	}

	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := instance.ActiveTab()
		if err != nil {
			return result, err
		}
		digest, err := driver.DigestPage(page, 0)
		if err != nil {
			return result, err
		}

		transcript = append(transcript, driver.Message{
			Role:    driver.RoleUser,
			Content: "Current page:\n" + digest.Prompt(),
		})
		reply, usage, err := p.Complete(ctx, transcript)
		result.Usage = result.Usage.Add(usage)
		if err != nil {
			return result, err
		}
		transcript = append(transcript, driver.Message{Role: driver.RoleAssistant, Content: reply})

		var d decision
		if err := json.Unmarshal([]byte(stripFences(reply)), &d); err != nil {
			result.Message = reply
			return result, fmt.Errorf("unparseable agent decision at step %d: %w", step, err)
		}

		if d.Action == "done" {
			result.Success = true
			result.Message = d.Report
			return result, nil
		}

		if err := applyDecision(page, d); err != nil {
			transcript = append(transcript, driver.Message{
				Role:    driver.RoleUser,
				Content: "That action failed: " + err.Error(),
			})
			continue
		}
		result.Actions = append(result.Actions, describeDecision(d))
	}

	result.Message = fmt.Sprintf("task stopped after %d steps without completing: %s", maxSteps, instruction)
	return result, nil
}

func describeDecision(d decision) string {
	switch d.Action {
	case "navigate":
		return "navigate " + d.URL
	case "fill":
		return fmt.Sprintf("fill element %d", d.Index)
	default:
		return fmt.Sprintf("%s element %d", d.Action, d.Index)
	}
}
