package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/logging"
)

const stuckMessage = `I clicked the "Billing" tab but nothing happened on the page.`

func newTestResolver(t *testing.T, strategies ...Strategy) *Resolver {
	t.Helper()
	classifier := NewPatternClassifier()
	logger, _ := logging.NewLogger("recovery-test")
	return &Resolver{
		classifier: classifier,
		extractor:  classifier,
		strategies: strategies,
		logger:     logger,
	}
}

// recordingStrategy fails or succeeds on demand and records invocations.
func recordingStrategy(name string, err error, calls *[]string) Strategy {
	return Strategy{
		Name: name,
		Run: func(ctx context.Context, instance *browser.Instance, label string) error {
			*calls = append(*calls, name)
			return err
		},
	}
}

func TestResolver_StopsAtFirstSuccess(t *testing.T) {
	var calls []string
	failed := errors.New("not found")
	resolver := newTestResolver(t,
		recordingStrategy("one", failed, &calls),
		recordingStrategy("two", failed, &calls),
		recordingStrategy("three", failed, &calls),
		recordingStrategy("four", nil, &calls),
		recordingStrategy("five", nil, &calls),
	)

	outcome := resolver.Resolve(context.Background(), browser.NewInstance("main"), stuckMessage)

	require.True(t, outcome.Recovered)
	assert.Equal(t, "four", outcome.Strategy)
	assert.Equal(t, "Billing", outcome.Label)
	// Strategy five must never have started.
	assert.Equal(t, []string{"one", "two", "three", "four"}, calls)
}

func TestResolver_PanicIsIsolated(t *testing.T) {
	var calls []string
	panicking := Strategy{
		Name: "boom",
		Run: func(ctx context.Context, instance *browser.Instance, label string) error {
			calls = append(calls, "boom")
			panic("strategy exploded")
		},
	}
	resolver := newTestResolver(t, panicking, recordingStrategy("safe", nil, &calls))

	outcome := resolver.Resolve(context.Background(), browser.NewInstance("main"), stuckMessage)

	require.True(t, outcome.Recovered)
	assert.Equal(t, "safe", outcome.Strategy)
	assert.Equal(t, []string{"boom", "safe"}, calls)
}

func TestResolver_TotalExhaustion(t *testing.T) {
	var calls []string
	failed := errors.New("nope")
	resolver := newTestResolver(t,
		recordingStrategy("one", failed, &calls),
		recordingStrategy("two", failed, &calls),
	)

	outcome := resolver.Resolve(context.Background(), browser.NewInstance("main"), stuckMessage)

	assert.False(t, outcome.Recovered)
	assert.Equal(t, "Billing", outcome.Label)
	assert.Len(t, calls, 2)
}

func TestResolver_NotTriggered(t *testing.T) {
	var calls []string
	resolver := newTestResolver(t, recordingStrategy("one", nil, &calls))

	t.Run("message not stuck", func(t *testing.T) {
		outcome := resolver.Resolve(context.Background(), browser.NewInstance("main"),
			"Task complete: the invoice downloaded.")
		assert.False(t, outcome.Recovered)
		assert.Empty(t, calls)
	})

	t.Run("no extractable label", func(t *testing.T) {
		outcome := resolver.Resolve(context.Background(), browser.NewInstance("main"),
			"Something was pressed but nothing happened.")
		assert.False(t, outcome.Recovered)
		assert.Empty(t, calls)
	})
}

func TestResolver_CancelledContext(t *testing.T) {
	var calls []string
	resolver := newTestResolver(t, recordingStrategy("one", nil, &calls))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := resolver.Resolve(ctx, browser.NewInstance("main"), stuckMessage)
	assert.False(t, outcome.Recovered)
	assert.Empty(t, calls)
}

func TestResumeInstruction(t *testing.T) {
	outcome := Outcome{Recovered: true, Strategy: "exact-leaf", Label: "Billing"}
	resume := ResumeInstruction(outcome, "open the billing tab and download the latest invoice")
	assert.Contains(t, resume, `"Billing"`)
	assert.Contains(t, resume, "download the latest invoice")
}
