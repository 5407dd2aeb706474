// Package knowledge persists what the engine learns across runs: per-site
// knowledge, free-form learnings, command history, test reports, and the
// billing-cycle cost total.
//
// The engine never assumes synchronous durability from this layer. Learning
// writes are fire-and-forget telemetry; test report writes are awaited
// because their id is returned to the caller.
package knowledge

import (
	"time"

	"github.com/entrhq/vouch/pkg/types"
)

// SiteKnowledge is the accumulated notes for one domain.
type SiteKnowledge struct {
	Domain    string    `json:"domain"`
	Notes     []string  `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Learning is one observed fact worth keeping, emitted by commands and the
// test pipeline.
type Learning struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain,omitempty"`
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry records one dispatched command's terminal outcome.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Raw       string    `json:"raw"`
	Mode      string    `json:"mode"`
	Instance  string    `json:"instance,omitempty"`
	Message   string    `json:"message"`
	Success   bool      `json:"success"`
	CostUSD   float64   `json:"cost_usd"`
	CreatedAt time.Time `json:"created_at"`
}

// BillingCycle is the persisted running cost for the current billing
// period.
type BillingCycle struct {
	Start    time.Time `json:"start"`
	TotalUSD float64   `json:"total_usd"`
}

// Store is the persistence boundary for knowledge, history, reports, and
// billing state.
type Store interface {
	GetKnowledge(domain string) (SiteKnowledge, error)
	SaveKnowledge(k SiteKnowledge) error

	AddLearning(l Learning) error

	AddHistory(e HistoryEntry) error
	RecentHistory(limit int) ([]HistoryEntry, error)

	// SaveTestReport persists the report, assigning an id when it has none,
	// and returns the id.
	SaveTestReport(r *types.TestReport) (string, error)
	GetTestReport(id string) (*types.TestReport, error)

	LoadBillingCycle() (BillingCycle, error)
	SaveBillingCycle(c BillingCycle) error
}
