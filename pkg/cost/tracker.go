package cost

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/vouch/pkg/knowledge"
	"github.com/entrhq/vouch/pkg/types"
)

// DefaultResetDay is the day of month a billing cycle rolls over when none
// is configured.
const DefaultResetDay = 1

// billingStore is the slice of the knowledge store the tracker needs.
type billingStore interface {
	LoadBillingCycle() (knowledge.BillingCycle, error)
	SaveBillingCycle(c knowledge.BillingCycle) error
}

// Tracker accumulates spend for the process lifetime (session total) and
// the persisted billing cycle, which resets on a configurable day of month.
type Tracker struct {
	mu         sync.Mutex
	store      billingStore
	resetDay   int
	sessionUSD float64
	cycle      knowledge.BillingCycle
	now        func() time.Time

	budgets       Budgets
	warn          func(format string, v ...interface{})
	warnedSession bool
	warnedCycle   bool
}

// Budgets are advisory spending caps. A zero cap is disabled. Crossing a
// cap never blocks recording; the tracker warns once per cap instead.
type Budgets struct {
	SessionUSD float64
	CycleUSD   float64
}

// New creates a tracker backed by store. resetDay outside [1,28] falls back
// to DefaultResetDay. The persisted cycle is loaded and rolled forward if
// the current boundary has passed.
func New(store billingStore, resetDay int) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("cost tracker requires a billing store")
	}
	if resetDay < 1 || resetDay > 28 {
		resetDay = DefaultResetDay
	}

	t := &Tracker{
		store:    store,
		resetDay: resetDay,
		now:      time.Now,
	}

	cycle, err := store.LoadBillingCycle()
	if err != nil {
		return nil, fmt.Errorf("loading billing cycle: %w", err)
	}
	// Rolling past boundaries happens lazily on the next Record or CycleUSD
	// call, so a stale persisted cycle is carried until first use.
	t.cycle = cycle
	return t, nil
}

// Record prices the usage, adds it to the session and cycle totals, and
// persists the cycle. It returns the dollar cost of this usage.
func (t *Tracker) Record(usage types.Usage) (float64, error) {
	if usage.IsZero() {
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollCycleLocked()
	cost := USD(usage)
	t.sessionUSD += cost
	t.cycle.TotalUSD += cost
	t.checkBudgetsLocked()

	if err := t.store.SaveBillingCycle(t.cycle); err != nil {
		return cost, fmt.Errorf("persisting billing cycle: %w", err)
	}
	return cost, nil
}

// SessionUSD returns the process-lifetime spend.
func (t *Tracker) SessionUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionUSD
}

// CycleUSD returns the current billing-cycle spend.
func (t *Tracker) CycleUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollCycleLocked()
	return t.cycle.TotalUSD
}

// SetBudgets installs advisory caps and the warn sink they report through.
func (t *Tracker) SetBudgets(b Budgets, warn func(format string, v ...interface{})) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.budgets = b
	t.warn = warn
	t.warnedSession = false
	t.warnedCycle = false
}

func (t *Tracker) checkBudgetsLocked() {
	if t.warn == nil {
		return
	}
	if t.budgets.SessionUSD > 0 && !t.warnedSession && t.sessionUSD > t.budgets.SessionUSD {
		t.warnedSession = true
		t.warn("session spend $%.4f exceeds the $%.2f budget", t.sessionUSD, t.budgets.SessionUSD)
	}
	if t.budgets.CycleUSD > 0 && !t.warnedCycle && t.cycle.TotalUSD > t.budgets.CycleUSD {
		t.warnedCycle = true
		t.warn("billing cycle spend $%.4f exceeds the $%.2f budget", t.cycle.TotalUSD, t.budgets.CycleUSD)
	}
}

// rollCycleLocked resets the cycle total when the reset boundary has passed
// since the recorded cycle start.
func (t *Tracker) rollCycleLocked() {
	boundary := t.cycleStart(t.now())
	if t.cycle.Start.Before(boundary) {
		t.cycle = knowledge.BillingCycle{Start: boundary}
		t.warnedCycle = false
	}
}

// cycleStart returns the most recent reset boundary at or before now.
func (t *Tracker) cycleStart(now time.Time) time.Time {
	start := time.Date(now.Year(), now.Month(), t.resetDay, 0, 0, 0, 0, now.Location())
	if start.After(now) {
		start = start.AddDate(0, -1, 0)
	}
	return start
}
