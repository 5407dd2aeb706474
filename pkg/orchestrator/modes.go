package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/recovery"
	"github.com/entrhq/vouch/pkg/types"
)

// dispatch selects and runs the mode handler. It never panics and never
// returns an error: every failure becomes a failed Result so the router's
// bookkeeping still runs.
func (o *Orchestrator) dispatch(ctx context.Context, cmd types.Command, instance *browser.Instance, notes string) (result types.Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			o.logger.Errorf("%s dispatch panicked: %v", cmd.Mode, recovered)
			result = types.Result{Message: fmt.Sprintf("%s failed: %v", cmd.Mode, recovered)}
		}
	}()

	switch cmd.Mode {
	case types.ModeExtract:
		return o.runExtract(ctx, instance, cmd.Instruction)
	case types.ModeAct:
		return o.runAct(ctx, instance, cmd.Instruction, notes)
	case types.ModeTask:
		return o.runTask(ctx, instance, cmd.Instruction, notes)
	case types.ModeObserve:
		return o.runObserve(ctx, instance, cmd.Instruction)
	case types.ModeSearch:
		return o.runSearch(ctx, instance, cmd.Instruction)
	case types.ModeAsk:
		return o.runAsk(ctx, instance, cmd.Instruction)
	case types.ModeGoto:
		return o.runGoto(instance, cmd.Instruction)
	case types.ModeLearn:
		return o.runLearn(instance, cmd.Instruction)
	case types.ModeTest:
		return o.runTest(ctx, cmd.Instruction)
	case types.ModeChat, types.ModeAuto:
		return o.runChat(ctx, cmd, instance, notes)
	}
	return types.Result{Message: fmt.Sprintf("unknown mode %q", cmd.Mode)}
}

func (o *Orchestrator) runExtract(ctx context.Context, instance *browser.Instance, prompt string) types.Result {
	answer, usage, err := o.drv.Extract(ctx, instance, prompt)
	if err != nil {
		return types.Result{Message: "extract failed: " + err.Error(), Usage: usage}
	}
	return types.Result{Message: answer, Success: true, Usage: usage}
}

func (o *Orchestrator) runAct(ctx context.Context, instance *browser.Instance, instruction, notes string) types.Result {
	act, err := o.drv.Act(ctx, instance, withNotes(instruction, notes))
	if err != nil {
		return types.Result{Message: "act failed: " + err.Error(), Usage: act.Usage}
	}
	return types.Result{Message: act.Message, Success: act.Success, Usage: act.Usage}
}

// runTask runs a multi-step agent task and, when the completion message
// reads as a stuck interaction, attempts the recovery cascade and resumes
// the task where it left off. Usage from the original attempt and the
// resumption are summed.
func (o *Orchestrator) runTask(ctx context.Context, instance *browser.Instance, instruction, notes string) types.Result {
	agent, err := o.drv.RunAgentTask(ctx, instance, withNotes(instruction, notes), o.opts.MaxTaskSteps)
	if err != nil {
		return types.Result{Message: "task failed: " + err.Error(), Usage: agent.Usage}
	}
	result := types.Result{
		Message: agent.Message,
		Success: agent.Success,
		Usage:   agent.Usage,
		Actions: agent.Actions,
	}

	if o.resolver == nil {
		return result
	}
	outcome := o.resolver.Resolve(ctx, instance, agent.Message)
	if !outcome.Recovered {
		return result
	}

	instance.Announce("recovered stuck click on %q via %s, resuming task", outcome.Label, outcome.Strategy)
	resumed, err := o.drv.RunAgentTask(ctx, instance, recovery.ResumeInstruction(outcome, instruction), o.opts.MaxTaskSteps)
	if err != nil {
		o.logger.Warnf("task resumption after recovery failed: %v", err)
		return result
	}
	result.Message = resumed.Message
	result.Success = resumed.Success
	result.Usage = result.Usage.Add(resumed.Usage)
	result.Actions = append(result.Actions, resumed.Actions...)
	return result
}

func (o *Orchestrator) runObserve(ctx context.Context, instance *browser.Instance, instruction string) types.Result {
	observations, usage, err := o.drv.Observe(ctx, instance, instruction)
	if err != nil {
		return types.Result{Message: "observe failed: " + err.Error(), Usage: usage}
	}
	if len(observations) == 0 {
		return types.Result{Message: "no matching elements found", Success: true, Usage: usage}
	}
	var sb strings.Builder
	for i, obs := range observations {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, obs.Description)
	}
	return types.Result{Message: strings.TrimRight(sb.String(), "\n"), Success: true, Usage: usage}
}

const searchURL = "https://duckduckgo.com/?q="

func (o *Orchestrator) runSearch(ctx context.Context, instance *browser.Instance, query string) types.Result {
	if err := instance.Navigate(searchURL + url.QueryEscape(query)); err != nil {
		return types.Result{Message: "search navigation failed: " + err.Error()}
	}
	answer, usage, err := o.drv.Extract(ctx, instance,
		"Summarize the most relevant search results on this page for: "+query)
	if err != nil {
		return types.Result{Message: "search failed: " + err.Error(), Usage: usage}
	}
	return types.Result{Message: answer, Success: true, Usage: usage}
}

func (o *Orchestrator) runAsk(ctx context.Context, instance *browser.Instance, question string) types.Result {
	answer, usage, err := o.drv.Extract(ctx, instance,
		"Answer from the current page content, without performing any action: "+question)
	if err != nil {
		return types.Result{Message: "ask failed: " + err.Error(), Usage: usage}
	}
	return types.Result{Message: answer, Success: true, Usage: usage}
}

func (o *Orchestrator) runGoto(instance *browser.Instance, target string) types.Result {
	normalized := normalizeURL(target)
	if o.opts.Guard != nil {
		if err := o.opts.Guard(normalized); err != nil {
			return types.Result{Message: "navigation blocked: " + err.Error()}
		}
	}
	if err := instance.Navigate(normalized); err != nil {
		return types.Result{Message: "navigation failed: " + err.Error()}
	}
	return types.Result{Message: "navigated to " + normalized, Success: true}
}

func (o *Orchestrator) runLearn(instance *browser.Instance, fact string) types.Result {
	if o.store == nil {
		return types.Result{Message: "no knowledge store configured"}
	}
	domain := instance.Domain()
	if err := o.saveLearning(domain, fact); err != nil {
		return types.Result{Message: "saving learning failed: " + err.Error()}
	}
	if domain != "" {
		return types.Result{Message: fmt.Sprintf("learned for %s: %s", domain, fact), Success: true}
	}
	return types.Result{Message: "learned: " + fact, Success: true}
}

func (o *Orchestrator) runTest(ctx context.Context, ticket string) types.Result {
	if o.tests == nil {
		return types.Result{Message: "no test runner configured"}
	}
	report, err := o.tests.Run(ctx, ticket)
	if err != nil {
		return types.Result{Message: "test run failed: " + err.Error()}
	}
	passed := 0
	for _, step := range report.Results {
		if step.Verdict == types.StepPass {
			passed++
		}
	}
	return types.Result{
		Message: fmt.Sprintf("test %q: %s (%d/%d steps passed, report %s)",
			report.Title, report.Verdict, passed, len(report.Results), report.ID),
		Success: report.Verdict == types.ReportPass,
		Usage:   report.Usage,
		CostUSD: report.CostUSD,
	}
}

// withNotes prefixes the instruction with accumulated site knowledge so
// the driver benefits from prior runs.
func withNotes(instruction, notes string) string {
	if notes == "" {
		return instruction
	}
	return notes + "\n\n" + instruction
}

func normalizeURL(target string) string {
	target = strings.TrimSpace(target)
	if !strings.Contains(target, "://") {
		return "https://" + target
	}
	return target
}
