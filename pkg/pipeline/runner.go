// Package pipeline runs structured browser tests: a ticket is decomposed
// into ordered steps, each step is executed against its browser instance
// with before/after screenshots, verified against its expected outcome, and
// the results are aggregated into a persisted report.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/cost"
	"github.com/entrhq/vouch/pkg/driver"
	"github.com/entrhq/vouch/pkg/knowledge"
	"github.com/entrhq/vouch/pkg/logging"
	"github.com/entrhq/vouch/pkg/types"
	"github.com/entrhq/vouch/pkg/verify"
)

const (
	// DefaultSettleDelay is the pause after a step for asynchronous UI
	// updates to land before the after-screenshot and verification.
	DefaultSettleDelay = 1500 * time.Millisecond

	// DefaultMaxSubAgentSteps bounds a sub-agent invocation for one step.
	DefaultMaxSubAgentSteps = 5

	// directActionMaxLen is the length cap above which even a verb-prefixed
	// action goes to the sub-agent instead of the direct act primitive.
	directActionMaxLen = 80

	// skippedMessage marks steps not run because an earlier critical step
	// failed.
	skippedMessage = "skipped: an earlier critical step failed"
)

// directActionVerbs matches short imperative actions that can go straight
// to the act primitive instead of a sub-agent.
var directActionVerbs = regexp.MustCompile(
	`(?i)^\s*(click|tap|press|type|fill|enter|toggle|select|check|uncheck|choose|hover|scroll|open|close)\b`)

// instancePool is the slice of the browser pool the runner uses.
type instancePool interface {
	Route(cmd types.Command) (*browser.Instance, error)
	Spawn(name string, opts browser.SpawnOptions) (*browser.Instance, error)
	Has(name string) bool
}

// verifier decides a step verdict; *verify.Engine is the production
// implementation.
type verifier interface {
	Verify(ctx context.Context, instance *browser.Instance, action, expected, report string) verify.Judgment
}

// Options tunes a Runner.
type Options struct {
	// SettleDelay pauses between step execution and verification. Negative
	// disables the pause; zero means DefaultSettleDelay.
	SettleDelay time.Duration

	// MaxSubAgentSteps bounds each sub-agent step invocation. Zero means
	// DefaultMaxSubAgentSteps.
	MaxSubAgentSteps int

	// ShotsDir stores step screenshots. Empty disables screenshot
	// persistence (capture is still attempted so failures surface early).
	ShotsDir string

	// Tracker, when set, records per-step usage against the billing cycle.
	Tracker *cost.Tracker
}

// Runner executes test plans.
type Runner struct {
	pool     instancePool
	drv      driver.Driver
	lm       driver.LanguageModel
	verifier verifier
	store    knowledge.Store
	logger   *logging.Logger
	opts     Options
}

// NewRunner creates a runner. The store may be nil, in which case reports
// are returned but not persisted and no learnings are emitted.
func NewRunner(pool instancePool, drv driver.Driver, lm driver.LanguageModel,
	v verifier, store knowledge.Store, opts Options) *Runner {
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.MaxSubAgentSteps <= 0 {
		opts.MaxSubAgentSteps = DefaultMaxSubAgentSteps
	}
	logger, _ := logging.NewLogger("pipeline")
	return &Runner{
		pool:     pool,
		drv:      drv,
		lm:       lm,
		verifier: v,
		store:    store,
		logger:   logger,
		opts:     opts,
	}
}

// Run plans and executes the ticket, returning the aggregated report. The
// report is persisted before returning so its ID is final; learning
// emission is fire-and-forget and never affects the returned report.
func (r *Runner) Run(ctx context.Context, ticket string) (*types.TestReport, error) {
	plan, planUsage, err := r.plan(ctx, ticket)
	if err != nil {
		return nil, err
	}
	report := r.RunPlan(ctx, plan)
	report.Usage = report.Usage.Add(planUsage)
	report.CostUSD += r.recordUsage(planUsage)
	r.persist(report)
	return report, nil
}

// RunPlan executes an already-structured plan.
func (r *Runner) RunPlan(ctx context.Context, plan types.TestPlan) *types.TestReport {
	started := time.Now()
	report := &types.TestReport{
		Title:   plan.Title,
		Results: make([]types.StepResult, 0, len(plan.Steps)),
		RunAt:   started,
	}

	aborted := false
	for _, step := range plan.Steps {
		if aborted {
			report.Results = append(report.Results, types.StepResult{
				Step:    step,
				Verdict: types.StepSkip,
				Actual:  skippedMessage,
			})
			continue
		}

		result := r.runStep(ctx, step)
		report.Results = append(report.Results, result.StepResult)
		report.Usage = report.Usage.Add(result.usage)
		report.CostUSD += r.recordUsage(result.usage)

		if result.Verdict == types.StepFail && step.Critical {
			aborted = true
		}
	}

	report.Verdict = aggregateVerdict(report.Results)
	report.Summary = summarize(report)
	report.Duration = time.Since(started)
	return report
}

// stepResult carries the per-step usage alongside the recorded result.
type stepResult struct {
	types.StepResult
	usage types.Usage
}

func (r *Runner) runStep(ctx context.Context, step types.TestStep) stepResult {
	started := time.Now()
	result := stepResult{StepResult: types.StepResult{Step: step, Verdict: types.StepFail}}

	instance, err := r.resolveInstance(step)
	if err != nil {
		result.Actual = "resolving instance failed: " + err.Error()
		result.Evidence = "step did not run"
		result.Duration = time.Since(started)
		return result
	}

	result.BeforeShot = r.captureShot(instance, "before")

	report, usage, execErr := r.executeStep(ctx, instance, step)
	result.usage = usage
	if execErr != nil {
		result.Actual = "step execution failed: " + execErr.Error()
		result.Evidence = "executor error"
		result.Duration = time.Since(started)
		return result
	}

	if r.opts.SettleDelay > 0 {
		time.Sleep(r.opts.SettleDelay)
	}

	result.AfterShot = r.captureShot(instance, "after")

	judgment := r.verifier.Verify(ctx, instance, step.Action, step.Expected, report)
	if judgment.Passed {
		result.Verdict = types.StepPass
	}
	result.Actual = judgment.Actual
	if result.Actual == "" {
		result.Actual = report
	}
	result.Evidence = judgment.Evidence
	result.Duration = time.Since(started)
	return result
}

// resolveInstance routes the step to its browser instance, spawning a
// named instance on demand when the step asks for an isolated profile.
func (r *Runner) resolveInstance(step types.TestStep) (*browser.Instance, error) {
	if step.Instance != "" && !r.pool.Has(step.Instance) {
		if !step.IsolatedProfile {
			return nil, fmt.Errorf("instance %q is not running", step.Instance)
		}
		return r.pool.Spawn(step.Instance, browser.SpawnOptions{Profile: browser.ProfileIsolated})
	}
	return r.pool.Route(types.Command{TargetInstance: step.Instance})
}

// executeStep runs the step's action: short imperative actions go through
// the direct act primitive, everything else through a sub-agent scoped to
// exactly this step.
func (r *Runner) executeStep(ctx context.Context, instance *browser.Instance, step types.TestStep) (string, types.Usage, error) {
	if directActionVerbs.MatchString(step.Action) && len(step.Action) <= directActionMaxLen {
		act, err := r.drv.Act(ctx, instance, step.Action)
		if err != nil {
			return "", act.Usage, err
		}
		return act.Message, act.Usage, nil
	}

	instruction := "Perform exactly this single test step and nothing else. " +
		"Do not explore the page or continue beyond it: " + step.Action
	agent, err := r.drv.RunAgentTask(ctx, instance, instruction, r.opts.MaxSubAgentSteps)
	if err != nil {
		return "", agent.Usage, err
	}
	return agent.Message, agent.Usage, nil
}

// captureShot takes a best-effort screenshot and persists it when a shots
// directory is configured. Failures never affect the step.
func (r *Runner) captureShot(instance *browser.Instance, label string) string {
	shot, err := instance.Screenshot()
	if err != nil {
		r.logger.Debugf("%s screenshot failed: %v", label, err)
		return ""
	}
	if r.opts.ShotsDir == "" {
		return ""
	}
	if err := os.MkdirAll(r.opts.ShotsDir, 0750); err != nil {
		r.logger.Debugf("creating shots dir: %v", err)
		return ""
	}
	path := filepath.Join(r.opts.ShotsDir, fmt.Sprintf("%s-%s.png", uuid.New().String(), label))
	if err := os.WriteFile(path, shot, 0600); err != nil {
		r.logger.Debugf("writing %s screenshot: %v", label, err)
		return ""
	}
	return path
}

func (r *Runner) recordUsage(usage types.Usage) float64 {
	if usage.IsZero() {
		return 0
	}
	if r.opts.Tracker != nil {
		costUSD, err := r.opts.Tracker.Record(usage)
		if err != nil {
			r.logger.Warnf("recording step cost: %v", err)
		}
		return costUSD
	}
	return cost.USD(usage)
}

// persist saves the report, stamping its assigned id, and emits learnings
// in the background.
func (r *Runner) persist(report *types.TestReport) {
	if r.store == nil {
		return
	}
	id, err := r.store.SaveTestReport(report)
	if err != nil {
		r.logger.Errorf("saving test report: %v", err)
	} else {
		report.ID = id
	}

	go r.emitLearnings(*report)
}

// emitLearnings records what the run taught us. It is fire-and-forget:
// failures are logged and never surface to the pipeline's caller.
func (r *Runner) emitLearnings(report types.TestReport) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Errorf("learning emission panicked: %v", recovered)
		}
	}()

	for _, result := range report.Results {
		if result.Verdict != types.StepFail {
			continue
		}
		learning := knowledge.Learning{
			ID:        uuid.New().String(),
			Text:      fmt.Sprintf("step %q failed: %s", result.Step.Action, result.Actual),
			Source:    "pipeline:" + report.ID,
			CreatedAt: time.Now(),
		}
		if err := r.store.AddLearning(learning); err != nil {
			r.logger.Debugf("emitting failure learning: %v", err)
		}
	}

	if report.Verdict == types.ReportPass {
		learning := knowledge.Learning{
			ID:        uuid.New().String(),
			Text:      fmt.Sprintf("test %q passed end to end", report.Title),
			Source:    "pipeline:" + report.ID,
			CreatedAt: time.Now(),
		}
		if err := r.store.AddLearning(learning); err != nil {
			r.logger.Debugf("emitting success learning: %v", err)
		}
	}
}
