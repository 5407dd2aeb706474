package config

import (
	"fmt"
	"sync"
)

const (
	// SectionIDBilling is the identifier for the billing settings section
	SectionIDBilling = "billing"

	// DefaultCycleResetDay is the day of month the billing cycle restarts.
	DefaultCycleResetDay = 1
)

// BillingSection manages cost tracking configuration settings.
type BillingSection struct {
	// CycleResetDay is the day of month (1-28) the cycle total resets.
	CycleResetDay int

	// SessionBudgetUSD and CycleBudgetUSD are advisory spending caps.
	// Zero disables the cap.
	SessionBudgetUSD float64
	CycleBudgetUSD   float64

	mu sync.RWMutex
}

// NewBillingSection creates a billing section with default settings.
func NewBillingSection() *BillingSection {
	return &BillingSection{CycleResetDay: DefaultCycleResetDay}
}

// ID returns the section identifier.
func (s *BillingSection) ID() string {
	return SectionIDBilling
}

// Title returns the section title.
func (s *BillingSection) Title() string {
	return "Billing Settings"
}

// Description returns the section description.
func (s *BillingSection) Description() string {
	return "Configure cost tracking: the billing-cycle reset day and advisory session and cycle spending caps."
}

// Data returns the current configuration data.
func (s *BillingSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"cycle_reset_day":    s.CycleResetDay,
		"session_budget_usd": s.SessionBudgetUSD,
		"cycle_budget_usd":   s.CycleBudgetUSD,
	}
}

// SetData updates the configuration from the provided data.
func (s *BillingSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if day, ok := asInt(data["cycle_reset_day"]); ok {
		s.CycleResetDay = day
	}
	if budget, ok := asFloat(data["session_budget_usd"]); ok {
		s.SessionBudgetUSD = budget
	}
	if budget, ok := asFloat(data["cycle_budget_usd"]); ok {
		s.CycleBudgetUSD = budget
	}
	return nil
}

// Validate validates the current configuration.
func (s *BillingSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.CycleResetDay < 1 || s.CycleResetDay > 28 {
		return fmt.Errorf("cycle_reset_day must be between 1 and 28, got %d", s.CycleResetDay)
	}
	if s.SessionBudgetUSD < 0 {
		return fmt.Errorf("session_budget_usd must not be negative")
	}
	if s.CycleBudgetUSD < 0 {
		return fmt.Errorf("cycle_budget_usd must not be negative")
	}
	return nil
}

// Reset restores the section's defaults.
func (s *BillingSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CycleResetDay = DefaultCycleResetDay
	s.SessionBudgetUSD = 0
	s.CycleBudgetUSD = 0
}

// GetCycleResetDay returns the configured reset day.
func (s *BillingSection) GetCycleResetDay() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CycleResetDay
}

// asFloat accepts the numeric types a JSON round-trip can produce.
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
