package config

import (
	"sync"
)

const (
	// SectionIDLLM is the identifier for the LLM settings section
	SectionIDLLM = "llm"
)

// LLMSection manages LLM provider configuration settings.
type LLMSection struct {
	Model        string
	UtilityModel string // optional; if empty, utility calls use Model
	BaseURL      string
	APIKey       string
	mu           sync.RWMutex
}

// NewLLMSection creates a new LLM section with default settings. Empty
// values fall back to the driver's environment-based defaults.
func NewLLMSection() *LLMSection {
	return &LLMSection{}
}

// ID returns the section identifier.
func (s *LLMSection) ID() string {
	return SectionIDLLM
}

// Title returns the section title.
func (s *LLMSection) Title() string {
	return "LLM Settings"
}

// Description returns the section description.
func (s *LLMSection) Description() string {
	return "Configure LLM provider settings. utility_model is optional; if set, cheap read-only operations use it instead of the main model."
}

// Data returns the current configuration data.
func (s *LLMSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"model":         s.Model,
		"utility_model": s.UtilityModel,
		"base_url":      s.BaseURL,
		"api_key":       s.APIKey,
	}
}

// SetData updates the configuration from the provided data.
func (s *LLMSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if model, ok := data["model"].(string); ok {
		s.Model = model
	}
	if utilityModel, ok := data["utility_model"].(string); ok {
		s.UtilityModel = utilityModel
	}
	if baseURL, ok := data["base_url"].(string); ok {
		s.BaseURL = baseURL
	}
	if apiKey, ok := data["api_key"].(string); ok {
		s.APIKey = apiKey
	}
	return nil
}

// Validate validates the current configuration.
func (s *LLMSection) Validate() error {
	// All fields are optional; the driver falls back to environment
	// variables at runtime.
	return nil
}

// Reset restores the section's defaults.
func (s *LLMSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = ""
	s.UtilityModel = ""
	s.BaseURL = ""
	s.APIKey = ""
}

// GetModel returns the configured model name.
func (s *LLMSection) GetModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Model
}

// GetUtilityModel returns the model for cheap read-only calls, falling
// back to the main model.
func (s *LLMSection) GetUtilityModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.UtilityModel != "" {
		return s.UtilityModel
	}
	return s.Model
}

// GetBaseURL returns the configured API base URL.
func (s *LLMSection) GetBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BaseURL
}

// GetAPIKey returns the configured API key.
func (s *LLMSection) GetAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.APIKey
}
