package config

import (
	"fmt"
	"sync"
)

// Section is one registrable configuration area. Sections own their typed
// settings and translate to/from the store's generic map representation.
type Section interface {
	// ID returns the stable section identifier used as the storage key.
	ID() string

	// Title returns a human-readable section name.
	Title() string

	// Description explains what the section configures.
	Description() string

	// Data returns the section's current settings as generic data.
	Data() map[string]interface{}

	// SetData applies loaded settings. Unknown keys are ignored; missing
	// keys keep their current values.
	SetData(data map[string]interface{}) error

	// Validate checks the current settings for consistency.
	Validate() error

	// Reset restores the section's defaults.
	Reset()
}

// Manager coordinates registered sections with a backing store.
type Manager struct {
	store    Store
	sections map[string]Section
	order    []string
	mu       sync.RWMutex
}

// NewManager creates a manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		sections: make(map[string]Section),
	}
}

// Store returns the backing store.
func (m *Manager) Store() Store {
	return m.store
}

// RegisterSection adds a section. Registering the same ID twice is an
// error; registration order is preserved for GetSections.
func (m *Manager) RegisterSection(section Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := section.ID()
	if _, exists := m.sections[id]; exists {
		return fmt.Errorf("section %q already registered", id)
	}
	m.sections[id] = section
	m.order = append(m.order, id)
	return nil
}

// GetSection returns the section with the given ID.
func (m *Manager) GetSection(id string) (Section, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	section, ok := m.sections[id]
	return section, ok
}

// GetSections returns all sections in registration order.
func (m *Manager) GetSections() []Section {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sections := make([]Section, 0, len(m.order))
	for _, id := range m.order {
		sections = append(sections, m.sections[id])
	}
	return sections
}

// LoadAll reloads the store and pushes each section's data into it.
func (m *Manager) LoadAll() error {
	if err := m.store.Load(); err != nil {
		return fmt.Errorf("loading config store: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		data, err := m.store.GetSection(id)
		if err != nil {
			return fmt.Errorf("loading section %q: %w", id, err)
		}
		if err := m.sections[id].SetData(data); err != nil {
			return fmt.Errorf("applying section %q: %w", id, err)
		}
	}
	return nil
}

// SaveAll validates every section, writes them to the store, and persists
// it. Validation failures abort before anything is written.
func (m *Manager) SaveAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order {
		if err := m.sections[id].Validate(); err != nil {
			return fmt.Errorf("section %q invalid: %w", id, err)
		}
	}

	for _, id := range m.order {
		if err := m.store.SetSection(id, m.sections[id].Data()); err != nil {
			return fmt.Errorf("storing section %q: %w", id, err)
		}
	}

	if err := m.store.Save(); err != nil {
		return fmt.Errorf("saving config store: %w", err)
	}
	return nil
}

// ResetAll restores every section to its defaults. The store is not
// touched until the next SaveAll.
func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		m.sections[id].Reset()
	}
}
