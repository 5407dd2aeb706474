package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/vouch/pkg/types"
)

// historyCap bounds how many history entries the store keeps on disk.
const historyCap = 500

// FileStore implements Store over a directory of JSON files:
//
//	knowledge/<domain>.json
//	reports/<id>.json
//	learnings.json
//	history.json
//	billing.json
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates a store rooted at dir. If dir is empty, defaults to
// ~/.vouch/store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".vouch", "store")
	}
	for _, sub := range []string{"", "knowledge", "reports"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &FileStore{root: dir}, nil
}

// GetKnowledge returns the notes for a domain. An unknown domain yields an
// empty record, not an error.
func (s *FileStore) GetKnowledge(domain string) (SiteKnowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := SiteKnowledge{Domain: domain}
	err := readJSON(s.knowledgePath(domain), &k)
	if os.IsNotExist(err) {
		return SiteKnowledge{Domain: domain}, nil
	}
	if err != nil {
		return SiteKnowledge{}, err
	}
	return k, nil
}

// SaveKnowledge writes the domain record, stamping UpdatedAt.
func (s *FileStore) SaveKnowledge(k SiteKnowledge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k.UpdatedAt = time.Now()
	return writeJSON(s.knowledgePath(k.Domain), k)
}

// AddLearning appends a learning, assigning an id and timestamp when unset.
func (s *FileStore) AddLearning(l Learning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	var learnings []Learning
	path := filepath.Join(s.root, "learnings.json")
	if err := readJSON(path, &learnings); err != nil && !os.IsNotExist(err) {
		return err
	}
	learnings = append(learnings, l)
	return writeJSON(path, learnings)
}

// AddHistory appends a history entry, keeping at most historyCap entries.
func (s *FileStore) AddHistory(e HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var entries []HistoryEntry
	path := filepath.Join(s.root, "history.json")
	if err := readJSON(path, &entries); err != nil && !os.IsNotExist(err) {
		return err
	}
	entries = append(entries, e)
	if len(entries) > historyCap {
		entries = entries[len(entries)-historyCap:]
	}
	return writeJSON(path, entries)
}

// RecentHistory returns up to limit entries, newest first.
func (s *FileStore) RecentHistory(limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []HistoryEntry
	err := readJSON(filepath.Join(s.root, "history.json"), &entries)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	recent := make([]HistoryEntry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, entries[i])
	}
	return recent, nil
}

// SaveTestReport persists the report and returns its id.
func (s *FileStore) SaveTestReport(r *types.TestReport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if err := writeJSON(filepath.Join(s.root, "reports", r.ID+".json"), r); err != nil {
		return "", err
	}
	return r.ID, nil
}

// GetTestReport loads a persisted report by id.
func (s *FileStore) GetTestReport(id string) (*types.TestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report types.TestReport
	if err := readJSON(filepath.Join(s.root, "reports", id+".json"), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// LoadBillingCycle returns the persisted cycle state; a missing file yields
// a zero cycle.
func (s *FileStore) LoadBillingCycle() (BillingCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cycle BillingCycle
	err := readJSON(filepath.Join(s.root, "billing.json"), &cycle)
	if os.IsNotExist(err) {
		return BillingCycle{}, nil
	}
	if err != nil {
		return BillingCycle{}, err
	}
	return cycle, nil
}

// SaveBillingCycle persists the cycle state.
func (s *FileStore) SaveBillingCycle(c BillingCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(filepath.Join(s.root, "billing.json"), c)
}

func (s *FileStore) knowledgePath(domain string) string {
	// Domains come from URLs; flatten anything path-hostile.
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, domain)
	return filepath.Join(s.root, "knowledge", safe+".json")
}

func readJSON(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := json.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeJSON writes atomically via a temp file rename.
func writeJSON(path string, v interface{}) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tempPath, err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", tempPath, err)
	}
	return nil
}
