// Package verify decides whether a test step's expected outcome was
// actually achieved, using up to three independent evidence sources with a
// defined precedence order and a deterministic heuristic as the final
// fallback.
//
// The engine never returns an error: every evidence source is individually
// failure-tolerant, and total failure degrades to the heuristic's
// best-effort verdict.
package verify

import (
	"context"
	"regexp"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/logging"
)

// Judgment is one evidence source's opinion on a step.
type Judgment struct {
	Passed bool `json:"passed"`

	// Actual describes what was observed to have happened.
	Actual string `json:"actual"`

	// Evidence explains the basis for the verdict.
	Evidence string `json:"evidence"`
}

// PageChecker judges an expectation against the live page state.
type PageChecker interface {
	CheckPage(ctx context.Context, instance *browser.Instance, action, expected string) (Judgment, error)
}

// Judge compares the step executor's self-report against the expectation.
type Judge interface {
	JudgeReport(ctx context.Context, action, expected, report string) (Judgment, error)
}

// interactionVerbs matches actions judged by post-condition rather than by
// the driver's self-report: reports of interactions often omit the visual
// aftermath.
var interactionVerbs = regexp.MustCompile(
	`(?i)^\s*(click|tap|press|type|fill|enter|toggle|select|check|uncheck|choose|submit|drag|hover|scroll|open|close|expand|collapse)\b`)

// Engine layers the evidence sources.
type Engine struct {
	checker PageChecker
	judge   Judge
	logger  *logging.Logger
}

// NewEngine creates an engine over the given evidence sources.
func NewEngine(checker PageChecker, judge Judge) *Engine {
	logger, _ := logging.NewLogger("verify")
	return &Engine{checker: checker, judge: judge, logger: logger}
}

// IsInteraction reports whether the action text starts with an interaction
// verb.
func IsInteraction(action string) bool {
	return interactionVerbs.MatchString(action)
}

// Verify layers the evidence sources in precedence order:
//
//  1. interaction steps ask the live page first and accept a pass outright
//  2. the second-opinion judge compares the self-report to the expectation
//  3. a judge-reported failure on a non-interaction step triggers one live
//     re-check, guarding against reports filed before an async UI settled
//  4. the keyword-overlap heuristic decides when everything else failed
func (e *Engine) Verify(ctx context.Context, instance *browser.Instance, action, expected, report string) Judgment {
	interaction := IsInteraction(action)

	if interaction {
		if judgment, err := e.checkPage(ctx, instance, action, expected); err == nil && judgment.Passed {
			return judgment
		}
	}

	judgment, judgeErr := e.judgeReport(ctx, action, expected, report)
	if judgeErr == nil {
		if judgment.Passed {
			return judgment
		}
		if !interaction {
			// The driver may have reported before an asynchronous UI update
			// settled; trust the page over the report once.
			if recheck, err := e.checkPage(ctx, instance, action, expected); err == nil && recheck.Passed {
				return recheck
			}
		}
		return judgment
	}

	return heuristicJudgment(expected, report)
}

func (e *Engine) checkPage(ctx context.Context, instance *browser.Instance, action, expected string) (judgment Judgment, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = errRecovered(recovered)
		}
	}()
	if e.checker == nil {
		return Judgment{}, errNoSource
	}
	judgment, err = e.checker.CheckPage(ctx, instance, action, expected)
	if err != nil {
		e.logger.Debugf("live page check failed: %v", err)
	}
	return judgment, err
}

func (e *Engine) judgeReport(ctx context.Context, action, expected, report string) (judgment Judgment, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = errRecovered(recovered)
		}
	}()
	if e.judge == nil {
		return Judgment{}, errNoSource
	}
	judgment, err = e.judge.JudgeReport(ctx, action, expected, report)
	if err != nil {
		e.logger.Debugf("report judgment failed: %v", err)
	}
	return judgment, err
}
