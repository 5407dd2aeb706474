package pipeline

import (
	"fmt"
	"strings"

	"github.com/entrhq/vouch/pkg/types"
)

// aggregateVerdict classifies a run from its step results. Only non-setup
// steps count toward pass/fail/partial, but a failed setup step poisons
// the whole run: nothing after it was tested under valid preconditions.
// A plan with zero non-setup steps falls back to a plain any-failure check.
func aggregateVerdict(results []types.StepResult) types.ReportVerdict {
	for _, result := range results {
		if result.Step.Setup && result.Verdict == types.StepFail {
			return types.ReportFail
		}
	}

	var passed, total int
	for _, result := range results {
		if result.Step.Setup {
			continue
		}
		total++
		if result.Verdict == types.StepPass {
			passed++
		}
	}

	if total == 0 {
		for _, result := range results {
			if result.Verdict == types.StepFail {
				return types.ReportFail
			}
		}
		return types.ReportPass
	}

	switch passed {
	case total:
		return types.ReportPass
	case 0:
		return types.ReportFail
	default:
		return types.ReportPartial
	}
}

func summarize(report *types.TestReport) string {
	var passed, failed, skipped int
	var failures []string
	for _, result := range report.Results {
		switch result.Verdict {
		case types.StepPass:
			passed++
		case types.StepFail:
			failed++
			failures = append(failures, fmt.Sprintf("%q: %s", result.Step.Action, result.Actual))
		case types.StepSkip:
			skipped++
		}
	}

	summary := fmt.Sprintf("%s: %d passed, %d failed, %d skipped of %d steps",
		report.Verdict, passed, failed, skipped, len(report.Results))
	if len(failures) > 0 {
		summary += "; failures: " + strings.Join(failures, "; ")
	}
	return summary
}
