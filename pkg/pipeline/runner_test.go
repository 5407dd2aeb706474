package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/cost"
	"github.com/entrhq/vouch/pkg/driver"
	"github.com/entrhq/vouch/pkg/knowledge"
	"github.com/entrhq/vouch/pkg/types"
	"github.com/entrhq/vouch/pkg/verify"
)

type fakePage struct {
	url string
}

func (f *fakePage) URL() string              { return f.url }
func (f *fakePage) Title() (string, error)   { return "", nil }
func (f *fakePage) Content() (string, error) { return "", nil }
func (f *fakePage) BringToFront() error      { return nil }
func (f *fakePage) Close(options ...playwright.PageCloseOptions) error { return nil }
func (f *fakePage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	f.url = url
	return nil, nil
}
func (f *fakePage) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	return []byte("png"), nil
}
func (f *fakePage) Evaluate(expression string, options ...interface{}) (interface{}, error) {
	return nil, nil
}
func (f *fakePage) Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator {
	return nil
}

type fakePool struct {
	instances map[string]*browser.Instance
	active    *browser.Instance
	spawned   []string
}

func newFakePool() *fakePool {
	active := browser.NewInstance("main", &fakePage{url: "https://shop.test"})
	return &fakePool{
		instances: map[string]*browser.Instance{"main": active},
		active:    active,
	}
}

func (f *fakePool) Route(cmd types.Command) (*browser.Instance, error) {
	if cmd.TargetInstance == "" {
		return f.active, nil
	}
	instance, ok := f.instances[cmd.TargetInstance]
	if !ok {
		return nil, browser.ErrNotFound
	}
	return instance, nil
}

func (f *fakePool) Spawn(name string, opts browser.SpawnOptions) (*browser.Instance, error) {
	f.spawned = append(f.spawned, name)
	instance := browser.NewInstance(name, &fakePage{url: "about:blank"})
	f.instances[name] = instance
	return instance, nil
}

func (f *fakePool) Has(name string) bool {
	_, ok := f.instances[name]
	return ok
}

type fakeDriver struct {
	actCalls   []string
	agentCalls []string
	actMessage string
	failActing bool
}

func (f *fakeDriver) Act(ctx context.Context, instance *browser.Instance, instruction string) (driver.ActResult, error) {
	f.actCalls = append(f.actCalls, instruction)
	if f.failActing {
		return driver.ActResult{}, errors.New("element not found")
	}
	message := f.actMessage
	if message == "" {
		message = "performed: " + instruction
	}
	return driver.ActResult{Success: true, Message: message, Usage: types.Usage{InputTokens: 100, OutputTokens: 10, Model: "gpt-4o"}}, nil
}

func (f *fakeDriver) Extract(ctx context.Context, instance *browser.Instance, prompt string) (string, types.Usage, error) {
	return "", types.Usage{}, nil
}

func (f *fakeDriver) Observe(ctx context.Context, instance *browser.Instance, instruction string) ([]driver.Observation, types.Usage, error) {
	return nil, types.Usage{}, nil
}

func (f *fakeDriver) RunAgentTask(ctx context.Context, instance *browser.Instance, instruction string, maxSteps int) (driver.AgentResult, error) {
	f.agentCalls = append(f.agentCalls, instruction)
	return driver.AgentResult{Success: true, Message: "completed the step", Usage: types.Usage{InputTokens: 200, OutputTokens: 20, Model: "gpt-4o"}}, nil
}

// fakeVerifier passes a step when its expected text contains "ok".
type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, instance *browser.Instance, action, expected, report string) verify.Judgment {
	passed := strings.Contains(expected, "ok")
	return verify.Judgment{Passed: passed, Actual: report, Evidence: "stub verifier"}
}

type fakeStore struct {
	mu        sync.Mutex
	reports   []*types.TestReport
	learnings []knowledge.Learning
}

func (f *fakeStore) GetKnowledge(domain string) (knowledge.SiteKnowledge, error) {
	return knowledge.SiteKnowledge{}, nil
}
func (f *fakeStore) SaveKnowledge(k knowledge.SiteKnowledge) error { return nil }

func (f *fakeStore) AddLearning(l knowledge.Learning) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.learnings = append(f.learnings, l)
	return nil
}

func (f *fakeStore) AddHistory(e knowledge.HistoryEntry) error { return nil }
func (f *fakeStore) RecentHistory(limit int) ([]knowledge.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeStore) SaveTestReport(r *types.TestReport) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return "report-42", nil
}

func (f *fakeStore) GetTestReport(id string) (*types.TestReport, error) {
	return nil, errors.New("not found")
}

func (f *fakeStore) LoadBillingCycle() (knowledge.BillingCycle, error) {
	return knowledge.BillingCycle{}, nil
}
func (f *fakeStore) SaveBillingCycle(c knowledge.BillingCycle) error { return nil }

func (f *fakeStore) learningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.learnings)
}

func testRunner(pool *fakePool, drv *fakeDriver, store knowledge.Store) *Runner {
	return NewRunner(pool, drv, nil, fakeVerifier{}, store, Options{SettleDelay: -1})
}

func step(action, expected string, critical, setup bool) types.TestStep {
	return types.TestStep{Action: action, Expected: expected, Critical: critical, Setup: setup}
}

func TestAggregateVerdict(t *testing.T) {
	result := func(setup bool, verdict types.StepVerdict) types.StepResult {
		return types.StepResult{Step: types.TestStep{Setup: setup}, Verdict: verdict}
	}

	tests := []struct {
		name    string
		results []types.StepResult
		want    types.ReportVerdict
	}{
		{
			name:    "setup pass assertion fail",
			results: []types.StepResult{result(true, types.StepPass), result(false, types.StepFail)},
			want:    types.ReportFail,
		},
		{
			name:    "mixed assertions are partial",
			results: []types.StepResult{result(false, types.StepPass), result(false, types.StepFail)},
			want:    types.ReportPartial,
		},
		{
			name:    "setup failure with assertion passing",
			results: []types.StepResult{result(true, types.StepFail), result(false, types.StepPass)},
			want:    types.ReportFail,
		},
		{
			name:    "setup failure forces fail despite passing assertions",
			results: []types.StepResult{result(true, types.StepFail), result(false, types.StepPass), result(false, types.StepPass)},
			want:    types.ReportFail,
		},
		{
			name:    "all non-setup pass",
			results: []types.StepResult{result(true, types.StepPass), result(false, types.StepPass), result(false, types.StepPass)},
			want:    types.ReportPass,
		},
		{
			name:    "no assertions at all falls back to any-failure",
			results: []types.StepResult{result(true, types.StepPass), result(true, types.StepPass)},
			want:    types.ReportPass,
		},
		{
			name:    "skips without passes fail",
			results: []types.StepResult{result(false, types.StepFail), result(false, types.StepSkip)},
			want:    types.ReportFail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aggregateVerdict(tt.results))
		})
	}
}

func TestRunPlan_CriticalFailureSkipsRemaining(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{}
	runner := testRunner(pool, drv, nil)

	plan := types.TestPlan{
		Title: "checkout",
		Steps: []types.TestStep{
			step("click the login button", "login form ok", true, true),
			step("click checkout", "still broken", true, false),
			step("click pay", "payment ok", true, false),
			step("verify receipt", "receipt ok", true, false),
		},
	}

	report := runner.RunPlan(context.Background(), plan)

	require.Len(t, report.Results, 4)
	assert.Equal(t, types.StepPass, report.Results[0].Verdict)
	assert.Equal(t, types.StepFail, report.Results[1].Verdict)
	assert.Equal(t, types.StepSkip, report.Results[2].Verdict)
	assert.Equal(t, types.StepSkip, report.Results[3].Verdict)

	for _, skipped := range report.Results[2:] {
		assert.Equal(t, skippedMessage, skipped.Actual)
		assert.Zero(t, skipped.Duration)
	}
	assert.Equal(t, types.ReportFail, report.Verdict)
}

func TestRunPlan_NonCriticalFailureContinues(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{}
	runner := testRunner(pool, drv, nil)

	plan := types.TestPlan{
		Title: "profile",
		Steps: []types.TestStep{
			step("click the avatar", "menu broken", false, false),
			step("click settings", "settings page ok", true, false),
		},
	}

	report := runner.RunPlan(context.Background(), plan)

	require.Len(t, report.Results, 2)
	assert.Equal(t, types.StepFail, report.Results[0].Verdict)
	assert.Equal(t, types.StepPass, report.Results[1].Verdict)
	assert.Equal(t, types.ReportPartial, report.Verdict)
}

func TestRunStep_DirectActionVersusSubAgent(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{}
	runner := testRunner(pool, drv, nil)

	plan := types.TestPlan{
		Title: "split",
		Steps: []types.TestStep{
			step("click the submit button", "form sent ok", true, false),
			step("log in as an administrator and archive the oldest three invoices from the billing dashboard", "archived ok", true, false),
		},
	}

	runner.RunPlan(context.Background(), plan)

	require.Len(t, drv.actCalls, 1)
	assert.Equal(t, "click the submit button", drv.actCalls[0])

	require.Len(t, drv.agentCalls, 1)
	assert.Contains(t, drv.agentCalls[0], "exactly this single test step")
	assert.Contains(t, drv.agentCalls[0], "archive the oldest three invoices")
}

func TestRunStep_SpawnsIsolatedInstanceOnDemand(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{}
	runner := testRunner(pool, drv, nil)

	plan := types.TestPlan{
		Steps: []types.TestStep{
			{Action: "click the admin link", Expected: "admin ok", Critical: true, Instance: "admin", IsolatedProfile: true},
		},
	}

	report := runner.RunPlan(context.Background(), plan)

	assert.Equal(t, []string{"admin"}, pool.spawned)
	assert.Equal(t, types.StepPass, report.Results[0].Verdict)
}

func TestRunStep_UnknownInstanceWithoutIsolationFails(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{}
	runner := testRunner(pool, drv, nil)

	plan := types.TestPlan{
		Steps: []types.TestStep{
			{Action: "click the admin link", Expected: "admin ok", Critical: true, Instance: "admin"},
		},
	}

	report := runner.RunPlan(context.Background(), plan)

	assert.Empty(t, pool.spawned)
	assert.Equal(t, types.StepFail, report.Results[0].Verdict)
	assert.Contains(t, report.Results[0].Actual, "not running")
}

func TestRun_StructuredTicketPersistsReport(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{}
	store := &fakeStore{}
	runner := testRunner(pool, drv, store)

	ticket := `
title: cart badge
steps:
  - action: click the cart icon
    expected: the cart page opens ok
`
	report, err := runner.Run(context.Background(), ticket)

	require.NoError(t, err)
	assert.Equal(t, "report-42", report.ID)
	assert.Equal(t, "cart badge", report.Title)
	assert.Equal(t, types.ReportPass, report.Verdict)
	assert.Greater(t, report.CostUSD, 0.0)

	store.mu.Lock()
	savedCount := len(store.reports)
	store.mu.Unlock()
	assert.Equal(t, 1, savedCount)
}

func TestRun_LearningsAreEmittedInBackground(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{}
	store := &fakeStore{}
	runner := testRunner(pool, drv, store)

	ticket := `
steps:
  - action: click pay
    expected: payment broken
    critical: false
  - action: verify totals
    expected: totals ok
`
	report, err := runner.Run(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, types.ReportPartial, report.Verdict)

	require.Eventually(t, func() bool {
		return store.learningCount() >= 1
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, store.learnings[0].Text, "click pay")
}

func TestRun_ExecutionErrorFailsStep(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{failActing: true}
	runner := testRunner(pool, drv, nil)

	plan := types.TestPlan{
		Steps: []types.TestStep{step("click the missing button", "button ok", true, false)},
	}

	report := runner.RunPlan(context.Background(), plan)

	assert.Equal(t, types.StepFail, report.Results[0].Verdict)
	assert.Contains(t, report.Results[0].Actual, "element not found")
	assert.Equal(t, types.ReportFail, report.Verdict)
}

func TestRun_SharedTrackerMatchesReportCost(t *testing.T) {
	pool := newFakePool()
	drv := &fakeDriver{}
	store := &fakeStore{}
	tracker, err := cost.New(store, 1)
	require.NoError(t, err)
	lm := &fakeLM{answer: `{"title": "cart", "steps": [{"action": "confirm the cart total is shown", "expected": "total visible ok"}]}`}
	r := NewRunner(pool, drv, lm, fakeVerifier{}, store, Options{SettleDelay: -1, Tracker: tracker})

	report, err := r.Run(context.Background(), "check the cart total")
	require.NoError(t, err)

	assert.Equal(t, types.ReportPass, report.Verdict)
	// Every token of the run, planning included, lands in the session
	// total exactly once.
	assert.Greater(t, report.CostUSD, 0.0)
	assert.InDelta(t, report.CostUSD, tracker.SessionUSD(), 1e-12)
}
