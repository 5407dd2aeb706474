package types

import "time"

// StepVerdict is the outcome of a single executed test step.
type StepVerdict string

const (
	StepPass StepVerdict = "pass"
	StepFail StepVerdict = "fail"
	StepSkip StepVerdict = "skip"
)

// ReportVerdict is the aggregate outcome of a test run.
type ReportVerdict string

const (
	ReportPass    ReportVerdict = "pass"
	ReportFail    ReportVerdict = "fail"
	ReportPartial ReportVerdict = "partial"
)

// TestStep is one action/expectation pair in a test plan.
type TestStep struct {
	// Action is the imperative instruction to perform.
	Action string `yaml:"action" json:"action"`

	// Expected describes the outcome the step must produce.
	Expected string `yaml:"expected" json:"expected"`

	// Critical aborts all remaining steps when this step fails. YAML
	// decoding defaults it to true; see TestStep.UnmarshalYAML.
	Critical bool `yaml:"critical" json:"critical"`

	// Setup marks a prerequisite step excluded from verdict aggregation.
	Setup bool `yaml:"setup" json:"setup"`

	// Instance optionally names the browser instance the step runs on.
	Instance string `yaml:"instance,omitempty" json:"instance,omitempty"`

	// IsolatedProfile requests an isolated browser profile when the named
	// instance is spawned on demand.
	IsolatedProfile bool `yaml:"isolated_profile,omitempty" json:"isolated_profile,omitempty"`
}

// TestPlan is an ordered list of steps with a title.
type TestPlan struct {
	Title string     `yaml:"title" json:"title"`
	Steps []TestStep `yaml:"steps" json:"steps"`
}

// rawStep mirrors TestStep with optional booleans so plan files can omit
// critical (default true) without it collapsing to false.
type rawStep struct {
	Action          string `yaml:"action" json:"action"`
	Expected        string `yaml:"expected" json:"expected"`
	Critical        *bool  `yaml:"critical" json:"critical"`
	Setup           bool   `yaml:"setup" json:"setup"`
	Instance        string `yaml:"instance" json:"instance"`
	IsolatedProfile bool   `yaml:"isolated_profile" json:"isolated_profile"`
}

// UnmarshalYAML applies the plan-file defaults: critical is true unless the
// step sets it explicitly.
func (s *TestStep) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawStep
	if err := unmarshal(&raw); err != nil {
		return err
	}
	s.Action = raw.Action
	s.Expected = raw.Expected
	s.Setup = raw.Setup
	s.Instance = raw.Instance
	s.IsolatedProfile = raw.IsolatedProfile
	s.Critical = true
	if raw.Critical != nil {
		s.Critical = *raw.Critical
	}
	return nil
}

// StepResult is the recorded outcome of one executed step.
type StepResult struct {
	Step    TestStep    `json:"step"`
	Verdict StepVerdict `json:"verdict"`

	// Actual is what was observed to have happened.
	Actual string `json:"actual"`

	// Evidence names which check produced the verdict and why.
	Evidence string `json:"evidence"`

	// BeforeShot and AfterShot reference captured screenshots, when any.
	BeforeShot string `json:"before_shot,omitempty"`
	AfterShot  string `json:"after_shot,omitempty"`

	Duration time.Duration `json:"duration"`
}

// TestReport is the aggregate result of a test run.
type TestReport struct {
	ID       string        `json:"id,omitempty"`
	Title    string        `json:"title"`
	Results  []StepResult  `json:"results"`
	Verdict  ReportVerdict `json:"verdict"`
	Summary  string        `json:"summary"`
	Duration time.Duration `json:"duration"`
	Usage    Usage         `json:"usage,omitzero"`
	CostUSD  float64       `json:"cost_usd"`
	RunAt    time.Time     `json:"run_at"`
}
