package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/vouch/pkg/driver"
	"github.com/entrhq/vouch/pkg/types"
)

const plannerSystemPrompt = `You decompose a QA ticket into an ordered browser test plan. Answer with
JSON only:
{"title":"...","steps":[{"action":"...","expected":"...","critical":true,"setup":false,"instance":"","isolated_profile":false}]}
Rules:
- each action is one imperative instruction, each expected is the outcome
  that proves it worked
- mark prerequisite steps (logins, seeding data) with "setup": true
- mark a step "critical": false only when later steps make sense without it
- always end with a final assertion step verifying the ticket's outcome`

// plannedStep mirrors types.TestStep with an optional critical flag so the
// model can omit it and get the true default.
type plannedStep struct {
	Action          string `json:"action"`
	Expected        string `json:"expected"`
	Critical        *bool  `json:"critical"`
	Setup           bool   `json:"setup"`
	Instance        string `json:"instance"`
	IsolatedProfile bool   `json:"isolated_profile"`
}

type plannedPlan struct {
	Title string        `json:"title"`
	Steps []plannedStep `json:"steps"`
}

// plan turns ticket text into a test plan. Text that already parses as a
// structured YAML plan is used as-is; anything else is decomposed by the
// language model.
func (r *Runner) plan(ctx context.Context, ticket string) (types.TestPlan, types.Usage, error) {
	if plan, ok := parseStructuredPlan(ticket); ok {
		return plan, types.Usage{}, nil
	}
	if r.lm == nil {
		return types.TestPlan{}, types.Usage{}, fmt.Errorf("free-text ticket needs a language model to decompose")
	}

	answer, usage, err := r.lm.Complete(ctx, []driver.Message{
		{Role: driver.RoleSystem, Content: plannerSystemPrompt},
		{Role: driver.RoleUser, Content: ticket},
	})
	if err != nil {
		return types.TestPlan{}, usage, fmt.Errorf("decomposing ticket: %w", err)
	}

	plan, err := parsePlannedPlan(answer)
	if err != nil {
		return types.TestPlan{}, usage, err
	}
	return plan, usage, nil
}

func parsePlannedPlan(answer string) (types.TestPlan, error) {
	trimmed := strings.TrimSpace(answer)
	if fenced := strings.TrimPrefix(trimmed, "```json"); fenced != trimmed {
		trimmed = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	} else if fenced := strings.TrimPrefix(trimmed, "```"); fenced != trimmed {
		trimmed = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	}

	var planned plannedPlan
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &planned); err != nil {
		return types.TestPlan{}, fmt.Errorf("unparseable plan %q: %w", answer, err)
	}
	if len(planned.Steps) == 0 {
		return types.TestPlan{}, fmt.Errorf("planner produced no steps")
	}

	plan := types.TestPlan{Title: planned.Title}
	for _, step := range planned.Steps {
		critical := true
		if step.Critical != nil {
			critical = *step.Critical
		}
		plan.Steps = append(plan.Steps, types.TestStep{
			Action:          step.Action,
			Expected:        step.Expected,
			Critical:        critical,
			Setup:           step.Setup,
			Instance:        step.Instance,
			IsolatedProfile: step.IsolatedProfile,
		})
	}
	return plan, nil
}

// parseStructuredPlan recognizes ticket text that is already a YAML plan
// with explicit steps.
func parseStructuredPlan(ticket string) (types.TestPlan, bool) {
	if !strings.Contains(ticket, "steps:") {
		return types.TestPlan{}, false
	}
	var plan types.TestPlan
	if err := yaml.Unmarshal([]byte(ticket), &plan); err != nil {
		return types.TestPlan{}, false
	}
	if len(plan.Steps) == 0 {
		return types.TestPlan{}, false
	}
	return plan, true
}

// LoadPlan reads a YAML plan file. Steps default to critical unless the
// file says otherwise.
func LoadPlan(path string) (types.TestPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.TestPlan{}, fmt.Errorf("reading plan file: %w", err)
	}
	var plan types.TestPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return types.TestPlan{}, fmt.Errorf("parsing plan file %s: %w", path, err)
	}
	if len(plan.Steps) == 0 {
		return types.TestPlan{}, fmt.Errorf("plan file %s has no steps", path)
	}
	return plan, nil
}
