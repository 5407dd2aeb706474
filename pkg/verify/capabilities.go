package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/driver"
)

// DriverChecker implements PageChecker by asking the browser-control
// driver to inspect the live page.
type DriverChecker struct {
	drv driver.Driver
}

// NewDriverChecker creates a live-page checker over the driver.
func NewDriverChecker(drv driver.Driver) *DriverChecker {
	return &DriverChecker{drv: drv}
}

func (c *DriverChecker) CheckPage(ctx context.Context, instance *browser.Instance, action, expected string) (Judgment, error) {
	prompt := fmt.Sprintf(
		`The action %q was just performed. Expected outcome: %q.
Inspect the current page state and answer with JSON only:
{"passed":true|false,"actual":"<what the page shows>","evidence":"<which page detail decides it>"}`,
		action, expected)

	answer, _, err := c.drv.Extract(ctx, instance, prompt)
	if err != nil {
		return Judgment{}, err
	}
	judgment, err := parseJudgment(answer)
	if err != nil {
		return Judgment{}, err
	}
	if judgment.Evidence == "" {
		judgment.Evidence = "live page inspection"
	}
	return judgment, nil
}

// ModelJudge implements Judge with a second-opinion language model call.
type ModelJudge struct {
	lm driver.LanguageModel
}

// NewModelJudge creates a report judge over the language model.
func NewModelJudge(lm driver.LanguageModel) *ModelJudge {
	return &ModelJudge{lm: lm}
}

const judgeSystemPrompt = `You judge whether a QA step achieved its expected outcome, given the
step executor's own report. Apply these rules:
- A report that visually confirms the expected outcome PASSES, even if it
  also complains about being unable to use a more technical verification
  method.
- For interaction steps (click, type, toggle and similar), an explicit
  completion report with no failure language is a sufficient pass signal;
  the resulting page state is checked separately.
Answer with JSON only:
{"passed":true|false,"actual":"<what actually happened per the report>","evidence":"<why>"}`

func (j *ModelJudge) JudgeReport(ctx context.Context, action, expected, report string) (Judgment, error) {
	answer, _, err := j.lm.Complete(ctx, []driver.Message{
		{Role: driver.RoleSystem, Content: judgeSystemPrompt},
		{Role: driver.RoleUser, Content: fmt.Sprintf(
			"Action: %s\nExpected outcome: %s\nExecutor report: %s", action, expected, report)},
	})
	if err != nil {
		return Judgment{}, err
	}
	judgment, err := parseJudgment(answer)
	if err != nil {
		return Judgment{}, err
	}
	if judgment.Evidence == "" {
		judgment.Evidence = "second-opinion judgment"
	}
	return judgment, nil
}

func parseJudgment(answer string) (Judgment, error) {
	trimmed := strings.TrimSpace(answer)
	if fenced := strings.TrimPrefix(trimmed, "```json"); fenced != trimmed {
		trimmed = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	} else if fenced := strings.TrimPrefix(trimmed, "```"); fenced != trimmed {
		trimmed = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	}

	var judgment Judgment
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &judgment); err != nil {
		return Judgment{}, fmt.Errorf("unparseable judgment %q: %w", answer, err)
	}
	return judgment, nil
}
