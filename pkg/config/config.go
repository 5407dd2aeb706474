package config

import "sync"

var (
	globalMu      sync.Mutex
	globalManager *Manager
)

// Initialize builds the global manager with the browser, llm, and billing
// sections and loads persisted settings. Call once at startup before any
// accessor.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager := NewManager(store)
	for _, section := range []Section{
		NewBrowserSection(),
		NewLLMSection(),
		NewBillingSection(),
	} {
		if err := manager.RegisterSection(section); err != nil {
			return err
		}
	}
	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global manager, panicking when Initialize has not run.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized reports whether Initialize has completed.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// section fetches a registered section by id and type. Nil when the config
// is uninitialized or the section is missing, so callers can fall back to
// defaults.
func section[T Section](id string) T {
	var zero T
	if !IsInitialized() {
		return zero
	}
	s, ok := Global().GetSection(id)
	if !ok {
		return zero
	}
	typed, _ := s.(T)
	return typed
}

// GetBrowser returns the browser section, or nil before Initialize.
func GetBrowser() *BrowserSection {
	return section[*BrowserSection](SectionIDBrowser)
}

// GetLLM returns the llm section, or nil before Initialize.
func GetLLM() *LLMSection {
	return section[*LLMSection](SectionIDLLM)
}

// GetBilling returns the billing section, or nil before Initialize.
func GetBilling() *BillingSection {
	return section[*BillingSection](SectionIDBilling)
}
