package config

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/gobwas/glob"
)

const (
	// SectionIDBrowser is the identifier for the browser settings section
	SectionIDBrowser = "browser"

	// DefaultLaunchTimeoutSeconds bounds browser startup.
	DefaultLaunchTimeoutSeconds = 30

	// DefaultMaxInstances caps the pool size.
	DefaultMaxInstances = 8
)

// BrowserSection manages browser pool configuration settings.
type BrowserSection struct {
	Headless             bool
	LaunchTimeoutSeconds int
	MaxInstances         int
	ProfilesDir          string

	// AllowedDomains restricts navigation to hosts matching these glob
	// patterns. Empty means every domain is allowed.
	AllowedDomains []string

	compiled []glob.Glob
	mu       sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	return &BrowserSection{
		Headless:             true,
		LaunchTimeoutSeconds: DefaultLaunchTimeoutSeconds,
		MaxInstances:         DefaultMaxInstances,
	}
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser Settings"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Configure the browser instance pool: headless mode, launch timeout, instance cap, profile storage, and the domains navigation may reach."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domains := make([]interface{}, len(s.AllowedDomains))
	for i, d := range s.AllowedDomains {
		domains[i] = d
	}

	return map[string]interface{}{
		"headless":               s.Headless,
		"launch_timeout_seconds": s.LaunchTimeoutSeconds,
		"max_instances":          s.MaxInstances,
		"profiles_dir":           s.ProfilesDir,
		"allowed_domains":        domains,
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if headless, ok := data["headless"].(bool); ok {
		s.Headless = headless
	}

	if timeout, ok := asInt(data["launch_timeout_seconds"]); ok {
		s.LaunchTimeoutSeconds = timeout
	}

	if maxInstances, ok := asInt(data["max_instances"]); ok {
		s.MaxInstances = maxInstances
	}

	if profilesDir, ok := data["profiles_dir"].(string); ok {
		s.ProfilesDir = profilesDir
	}

	if raw, ok := data["allowed_domains"].([]interface{}); ok {
		domains := make([]string, 0, len(raw))
		for i, item := range raw {
			domain, ok := item.(string)
			if !ok {
				return fmt.Errorf("invalid allowed_domains entry at index %d: expected string, got %T", i, item)
			}
			domains = append(domains, domain)
		}
		s.AllowedDomains = domains
		s.compiled = nil
	}

	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.LaunchTimeoutSeconds <= 0 {
		return fmt.Errorf("launch_timeout_seconds must be positive, got %d", s.LaunchTimeoutSeconds)
	}
	if s.MaxInstances <= 0 {
		return fmt.Errorf("max_instances must be positive, got %d", s.MaxInstances)
	}
	for _, pattern := range s.AllowedDomains {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid allowed_domains pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// Reset restores the section's defaults.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = true
	s.LaunchTimeoutSeconds = DefaultLaunchTimeoutSeconds
	s.MaxInstances = DefaultMaxInstances
	s.ProfilesDir = ""
	s.AllowedDomains = nil
	s.compiled = nil
}

// Allowed reports whether navigation to the URL's host is permitted. An
// empty pattern list allows everything; unparseable URLs and patterns that
// fail to compile are treated as not matching.
func (s *BrowserSection) Allowed(rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.AllowedDomains) == 0 {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("cannot determine host of %q", rawURL)
	}
	host := parsed.Hostname()

	if s.compiled == nil {
		for _, pattern := range s.AllowedDomains {
			g, err := glob.Compile(pattern)
			if err != nil {
				continue
			}
			s.compiled = append(s.compiled, g)
		}
	}

	for _, g := range s.compiled {
		if g.Match(host) {
			return nil
		}
	}
	return fmt.Errorf("domain %q is not in the allowed list", host)
}

// asInt accepts the numeric types a JSON round-trip can produce.
func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
