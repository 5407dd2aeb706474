package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists section data as generic maps. The manager talks to the
// store only through section granularity.
type Store interface {
	Load() error
	Save() error
	GetSection(id string) (map[string]interface{}, error)
	SetSection(id string, data map[string]interface{}) error
}

// configFile is the on-disk shape. Version is carried so a later format
// change can migrate old files.
type configFile struct {
	Version  string                            `json:"version"`
	Sections map[string]map[string]interface{} `json:"sections"`
}

const configVersion = "1.0"

// FileStore keeps the whole configuration in one JSON file, by default
// ~/.vouch/config.json. Saves go through a temp file and rename so a crash
// mid-write never leaves a truncated config behind.
type FileStore struct {
	path     string
	mu       sync.RWMutex
	sections map[string]map[string]interface{}
}

// NewFileStore opens the store at path, or at the default location when
// path is empty. A missing file is not an error; the store starts empty
// and the file appears on first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, ".vouch", "config.json")
	}

	s := &FileStore{
		path:     path,
		sections: make(map[string]map[string]interface{}),
	}
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return s, nil
}

// Load replaces the in-memory sections with the file's contents.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.sections = make(map[string]map[string]interface{})
		return nil
	}
	if err != nil {
		return err
	}

	var file configFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	s.sections = file.Sections
	if s.sections == nil {
		s.sections = make(map[string]map[string]interface{})
	}
	return nil
}

// Save writes the sections atomically.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	raw, err := json.MarshalIndent(configFile{Version: configVersion, Sections: s.sections}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(raw, '\n'), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// GetSection returns a copy of the section's data. Unknown sections come
// back as an empty map so new sections load cleanly from old files.
func (s *FileStore) GetSection(id string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySection(s.sections[id]), nil
}

// SetSection stages the section's data for the next Save.
func (s *FileStore) SetSection(id string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[id] = copySection(data)
	return nil
}

func copySection(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
