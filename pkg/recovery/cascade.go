package recovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/vouch/pkg/browser"
	"github.com/entrhq/vouch/pkg/driver"
	"github.com/entrhq/vouch/pkg/logging"
)

// Outcome reports the result of a recovery attempt.
type Outcome struct {
	// Recovered is true when some strategy performed the click.
	Recovered bool

	// Strategy names the strategy that succeeded.
	Strategy string

	// Label is the element label that was clicked.
	Label string
}

// Strategy is one independent fallback for clicking a labeled element.
// Strategies are attempted in order and an error means "this strategy did
// not resolve it", never a cascade failure.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, instance *browser.Instance, label string) error
}

// Resolver runs the recovery cascade. It is triggered only for multi-step
// task results whose completion message the classifier flags as stuck.
type Resolver struct {
	classifier StuckClassifier
	extractor  LabelExtractor
	strategies []Strategy
	logger     *logging.Logger
}

// NewResolver creates a resolver with the default pattern classifier and
// the four production strategies, in their fixed order.
func NewResolver(drv driver.Driver) *Resolver {
	classifier := NewPatternClassifier()
	logger, _ := logging.NewLogger("recovery")
	return &Resolver{
		classifier: classifier,
		extractor:  classifier,
		logger:     logger,
		strategies: []Strategy{
			{Name: "structural-locator", Run: structuralLocatorClick},
			{Name: "raw-events", Run: rawEventClick},
			{Name: "driver-act", Run: driverActClick(drv)},
			{Name: "exact-leaf", Run: exactLeafClick},
		},
	}
}

// Resolve inspects a task's completion message and, when it describes a
// stuck interaction with an extractable label, retries the click through
// each strategy in order, stopping at the first success. Total exhaustion
// yields a negative Outcome, never an error.
func (r *Resolver) Resolve(ctx context.Context, instance *browser.Instance, message string) Outcome {
	if !r.classifier.Stuck(message) {
		return Outcome{}
	}
	label, ok := r.extractor.Label(message)
	if !ok {
		r.logger.Debugf("stuck message with no extractable label: %q", message)
		return Outcome{}
	}

	for _, strategy := range r.strategies {
		if ctx.Err() != nil {
			return Outcome{Label: label}
		}
		if err := r.attempt(ctx, strategy, instance, label); err != nil {
			r.logger.Debugf("strategy %s could not click %q: %v", strategy.Name, label, err)
			continue
		}
		r.logger.Infof("recovered stuck click on %q via %s", label, strategy.Name)
		return Outcome{Recovered: true, Strategy: strategy.Name, Label: label}
	}
	return Outcome{Label: label}
}

// attempt isolates a single strategy: a panic inside one strategy is
// converted into a failed attempt so the cascade can continue.
func (r *Resolver) attempt(ctx context.Context, strategy Strategy, instance *browser.Instance, label string) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name, recovered)
		}
	}()
	return strategy.Run(ctx, instance, label)
}

// ResumeInstruction builds the synthetic follow-up handed back to the task
// driver after a successful recovery, so it continues instead of starting
// over.
func ResumeInstruction(outcome Outcome, originalTask string) string {
	return fmt.Sprintf(
		"The element %q has now been clicked successfully. Continue the task from that point: %s",
		outcome.Label, originalTask)
}

// structuralLocatorClick searches interactive elements (tabs, buttons,
// links) whose visible text contains the label and clicks the first match.
func structuralLocatorClick(ctx context.Context, instance *browser.Instance, label string) error {
	page, err := instance.ActiveTab()
	if err != nil {
		return err
	}

	selector := fmt.Sprintf(
		`button:has-text(%[1]q), a:has-text(%[1]q), [role=tab]:has-text(%[1]q), [role=button]:has-text(%[1]q), [role=link]:has-text(%[1]q)`,
		label)
	locator := page.Locator(selector)
	if locator == nil {
		return fmt.Errorf("locator unavailable")
	}
	count, err := locator.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no interactive element contains %q", label)
	}
	return locator.First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(5000),
	})
}

// rawEventScript scans every element for text containing the label,
// filters to interactive-looking candidates, picks the shortest (most
// specific) match, and synthesizes a full pointer and mouse event sequence
// plus focus.
const rawEventScript = `(label) => {
	const wanted = label.toLowerCase();
	const interactive = (el) => {
		const tag = el.tagName.toLowerCase();
		if (['a', 'button', 'input', 'select', 'summary', 'option'].includes(tag)) return true;
		const role = el.getAttribute('role');
		if (['button', 'tab', 'link', 'menuitem', 'option'].includes(role)) return true;
		return el.onclick != null || getComputedStyle(el).cursor === 'pointer';
	};
	let best = null;
	for (const el of document.querySelectorAll('*')) {
		const text = (el.textContent || '').trim();
		if (!text.toLowerCase().includes(wanted)) continue;
		if (!interactive(el)) continue;
		if (best === null || text.length < (best.textContent || '').trim().length) best = el;
	}
	if (!best) return false;
	best.focus();
	for (const type of ['pointerdown', 'mousedown', 'pointerup', 'mouseup', 'click']) {
		const Ctor = type.startsWith('pointer') ? PointerEvent : MouseEvent;
		best.dispatchEvent(new Ctor(type, { bubbles: true, cancelable: true, view: window }));
	}
	return true;
}`

func rawEventClick(ctx context.Context, instance *browser.Instance, label string) error {
	page, err := instance.ActiveTab()
	if err != nil {
		return err
	}
	clicked, err := page.Evaluate(rawEventScript, label)
	if err != nil {
		return err
	}
	if ok, _ := clicked.(bool); !ok {
		return fmt.Errorf("no interactive candidate contains %q", label)
	}
	return nil
}

// driverActClick re-invokes the external action primitive with an explicit
// click instruction.
func driverActClick(drv driver.Driver) func(ctx context.Context, instance *browser.Instance, label string) error {
	return func(ctx context.Context, instance *browser.Instance, label string) error {
		result, err := drv.Act(ctx, instance, fmt.Sprintf("click %q", label))
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("driver could not click %q: %s", label, result.Message)
		}
		return nil
	}
}

// exactLeafScript clicks the first leaf element (no child elements) whose
// exact trimmed text equals the label.
const exactLeafScript = `(label) => {
	for (const el of document.querySelectorAll('*')) {
		if (el.children.length > 0) continue;
		if ((el.textContent || '').trim() === label) {
			el.click();
			return true;
		}
	}
	return false;
}`

func exactLeafClick(ctx context.Context, instance *browser.Instance, label string) error {
	page, err := instance.ActiveTab()
	if err != nil {
		return err
	}
	clicked, err := page.Evaluate(exactLeafScript, strings.TrimSpace(label))
	if err != nil {
		return err
	}
	if ok, _ := clicked.(bool); !ok {
		return fmt.Errorf("no leaf element has exact text %q", label)
	}
	return nil
}
