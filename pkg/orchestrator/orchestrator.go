// Package orchestrator routes parsed commands to their target browser
// instance and execution mode.
//
// Each command runs through a fixed sequence: resolve target, announce,
// load site context, dispatch the mode, record cost, persist history,
// release the output sink. Dispatch is raced against the caller's context;
// a cancellation stops the wait and skips the bookkeeping steps, but never
// force-terminates the in-flight external call.
package orchestrator

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/cost"
	"github.com/entrhq/vouch/pkg/driver"
	"github.com/entrhq/vouch/pkg/knowledge"
	"github.com/entrhq/vouch/pkg/logging"
	"github.com/entrhq/vouch/pkg/recovery"
	"github.com/entrhq/vouch/pkg/types"
)

const (
	// DefaultMaxTaskSteps bounds a single agent task dispatch.
	DefaultMaxTaskSteps = 10

	// DefaultModel prices usage records that carry no model name.
	DefaultModel = "gpt-4o"

	// DefaultUtilityModel prices the cheap read-only modes.
	DefaultUtilityModel = "gpt-4o-mini"
)

// instancePool is the slice of the browser pool the orchestrator uses.
type instancePool interface {
	Route(cmd types.Command) (*browser.Instance, error)
	Spawn(name string, opts browser.SpawnOptions) (*browser.Instance, error)
	SetActive(name string) error
	ActiveName() string
	List() []browser.InstanceInfo
}

// stuckResolver recovers interactions that reported success without an
// observable page effect.
type stuckResolver interface {
	Resolve(ctx context.Context, instance *browser.Instance, message string) recovery.Outcome
}

// testRunner executes a structured test plan from ticket text.
type testRunner interface {
	Run(ctx context.Context, ticket string) (*types.TestReport, error)
}

// Options tunes orchestrator behavior.
type Options struct {
	// MaxTaskSteps bounds agent task dispatches. Zero means
	// DefaultMaxTaskSteps.
	MaxTaskSteps int

	// Model prices usage from write-path modes when the driver did not
	// name one. Empty means DefaultModel.
	Model string

	// UtilityModel prices usage from read-only modes. Empty means
	// DefaultUtilityModel.
	UtilityModel string

	// Guard, when set, validates URLs before goto navigation.
	Guard func(url string) error
}

// Orchestrator is the command router.
type Orchestrator struct {
	pool     instancePool
	drv      driver.Driver
	lm       driver.LanguageModel
	store    knowledge.Store
	tracker  *cost.Tracker
	resolver stuckResolver
	tests    testRunner
	logger   *logging.Logger
	opts     Options
}

// New creates an orchestrator over the given collaborators. The store,
// tracker, resolver, and test runner may be nil; the corresponding side
// effects and modes degrade gracefully.
func New(pool instancePool, drv driver.Driver, lm driver.LanguageModel,
	store knowledge.Store, tracker *cost.Tracker, resolver stuckResolver,
	tests testRunner, opts Options) *Orchestrator {
	if opts.MaxTaskSteps <= 0 {
		opts.MaxTaskSteps = DefaultMaxTaskSteps
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.UtilityModel == "" {
		opts.UtilityModel = DefaultUtilityModel
	}
	logger, _ := logging.NewLogger("orchestrator")
	return &Orchestrator{
		pool:     pool,
		drv:      drv,
		lm:       lm,
		store:    store,
		tracker:  tracker,
		resolver: resolver,
		tests:    tests,
		logger:   logger,
		opts:     opts,
	}
}

// Execute runs one command to its terminal outcome. Every command yields
// exactly one Result; the returned error is non-nil only for cancellation,
// in which case it satisfies errors.Is(err, ErrAborted) and no cost or
// history side effects have run.
func (o *Orchestrator) Execute(ctx context.Context, cmd types.Command, sink io.Writer) (types.Result, error) {
	instance, err := o.pool.Route(cmd)
	if err != nil {
		result := types.Result{Message: "routing failed: " + err.Error()}
		o.recordHistory(cmd, "", result, 0)
		return result, nil
	}

	if sink != nil {
		instance.AttachSink(sink)
	}
	defer instance.ReleaseSink()

	instance.Announce("running %s on @%s", cmd.Mode, instance.Name)

	notes := o.loadContext(instance)

	resultCh := make(chan types.Result, 1)
	go func() {
		resultCh <- o.dispatch(ctx, cmd, instance, notes)
	}()

	var result types.Result
	select {
	case <-ctx.Done():
		return types.Result{Message: "command aborted"}, &AbortedError{Mode: cmd.Mode}
	case result = <-resultCh:
	}

	var costUSD float64
	if ctx.Err() == nil {
		if result.CostUSD > 0 {
			// Test runs settle their own cost step by step; recording
			// report.Usage here would bill the same tokens twice.
			costUSD = result.CostUSD
		} else {
			costUSD = o.recordCost(cmd.Mode, result.Usage)
		}
	}
	if ctx.Err() == nil {
		o.recordHistory(cmd, instance.Name, result, costUSD)
	}
	return result, nil
}

// loadContext fetches persisted site knowledge for the instance's current
// domain. Always attempted, for every mode, to keep dispatch uniform; a
// store failure degrades to no context.
func (o *Orchestrator) loadContext(instance *browser.Instance) string {
	if o.store == nil {
		return ""
	}
	domain := instance.Domain()
	if domain == "" {
		return ""
	}
	know, err := o.store.GetKnowledge(domain)
	if err != nil {
		o.logger.Debugf("loading knowledge for %s: %v", domain, err)
		return ""
	}
	if len(know.Notes) == 0 {
		return ""
	}
	return "Known about " + domain + ":\n- " + strings.Join(know.Notes, "\n- ")
}

func (o *Orchestrator) recordCost(mode types.Mode, usage types.Usage) float64 {
	if o.tracker == nil || usage.IsZero() {
		return 0
	}
	if usage.Model == "" {
		if utilityModes[mode] {
			usage.Model = o.opts.UtilityModel
		} else {
			usage.Model = o.opts.Model
		}
	}
	costUSD, err := o.tracker.Record(usage)
	if err != nil {
		o.logger.Warnf("recording cost: %v", err)
	}
	return costUSD
}

func (o *Orchestrator) recordHistory(cmd types.Command, instanceName string, result types.Result, costUSD float64) {
	if o.store == nil {
		return
	}
	entry := knowledge.HistoryEntry{
		ID:        uuid.New().String(),
		Raw:       cmd.Raw,
		Mode:      string(cmd.Mode),
		Instance:  instanceName,
		Message:   result.Message,
		Success:   result.Success,
		CostUSD:   costUSD,
		CreatedAt: time.Now(),
	}
	if err := o.store.AddHistory(entry); err != nil {
		o.logger.Warnf("recording history: %v", err)
	}
}

func (o *Orchestrator) saveLearning(domain, text string) error {
	return o.store.AddLearning(knowledge.Learning{
		ID:        uuid.New().String(),
		Domain:    domain,
		Text:      text,
		Source:    "user",
		CreatedAt: time.Now(),
	})
}

// utilityModes are priced at the cheaper utility rate.
var utilityModes = map[types.Mode]bool{
	types.ModeExtract: true,
	types.ModeObserve: true,
	types.ModeAsk:     true,
	types.ModeSearch:  true,
	types.ModeLearn:   true,
}
