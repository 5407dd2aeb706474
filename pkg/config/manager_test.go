package config

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSection records what the manager pushes into it.
type stubSection struct {
	id          string
	data        map[string]interface{}
	validateErr error
	resets      int
}

func (s *stubSection) ID() string          { return s.id }
func (s *stubSection) Title() string       { return s.id }
func (s *stubSection) Description() string { return "stub" }
func (s *stubSection) Data() map[string]interface{} {
	return s.data
}
func (s *stubSection) SetData(data map[string]interface{}) error {
	s.data = data
	return nil
}
func (s *stubSection) Validate() error { return s.validateErr }
func (s *stubSection) Reset() {
	s.data = map[string]interface{}{}
	s.resets++
}

// memStore is an in-memory Store for manager tests.
type memStore struct {
	sections map[string]map[string]interface{}
	loadErr  error
	saveErr  error
	saves    int
}

func newMemStore() *memStore {
	return &memStore{sections: make(map[string]map[string]interface{})}
}

func (m *memStore) Load() error { return m.loadErr }
func (m *memStore) Save() error {
	m.saves++
	return m.saveErr
}
func (m *memStore) GetSection(id string) (map[string]interface{}, error) {
	if data, ok := m.sections[id]; ok {
		return data, nil
	}
	return map[string]interface{}{}, nil
}
func (m *memStore) SetSection(id string, data map[string]interface{}) error {
	m.sections[id] = data
	return nil
}

func TestManager_RegisterSection(t *testing.T) {
	m := NewManager(newMemStore())

	require.NoError(t, m.RegisterSection(&stubSection{id: "browser"}))
	require.NoError(t, m.RegisterSection(&stubSection{id: "llm"}))
	require.NoError(t, m.RegisterSection(&stubSection{id: "billing"}))

	err := m.RegisterSection(&stubSection{id: "llm"})
	assert.Error(t, err, "duplicate id must be rejected")

	got, ok := m.GetSection("llm")
	require.True(t, ok)
	assert.Equal(t, "llm", got.ID())
	_, ok = m.GetSection("absent")
	assert.False(t, ok)

	ids := make([]string, 0, 3)
	for _, s := range m.GetSections() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"browser", "llm", "billing"}, ids, "registration order is kept")
}

func TestManager_LoadAll(t *testing.T) {
	store := newMemStore()
	store.sections["browser"] = map[string]interface{}{"headless": false}
	store.sections["llm"] = map[string]interface{}{"model": "gpt-4o"}

	m := NewManager(store)
	browser := &stubSection{id: "browser"}
	llm := &stubSection{id: "llm"}
	require.NoError(t, m.RegisterSection(browser))
	require.NoError(t, m.RegisterSection(llm))

	require.NoError(t, m.LoadAll())
	assert.Equal(t, false, browser.data["headless"])
	assert.Equal(t, "gpt-4o", llm.data["model"])
}

func TestManager_LoadAllPropagatesStoreError(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("disk gone")
	m := NewManager(store)

	assert.Error(t, m.LoadAll())
}

func TestManager_SaveAll(t *testing.T) {
	store := newMemStore()
	m := NewManager(store)
	require.NoError(t, m.RegisterSection(&stubSection{
		id:   "billing",
		data: map[string]interface{}{"cycle_reset_day": 5},
	}))

	require.NoError(t, m.SaveAll())
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 5, store.sections["billing"]["cycle_reset_day"])
}

func TestManager_SaveAllValidatesBeforeWriting(t *testing.T) {
	store := newMemStore()
	m := NewManager(store)
	require.NoError(t, m.RegisterSection(&stubSection{
		id:   "browser",
		data: map[string]interface{}{"headless": true},
	}))
	require.NoError(t, m.RegisterSection(&stubSection{
		id:          "billing",
		validateErr: errors.New("cycle_reset_day out of range"),
	}))

	err := m.SaveAll()
	require.Error(t, err)
	assert.Zero(t, store.saves, "nothing may reach the store when any section is invalid")
	assert.Empty(t, store.sections)
}

func TestManager_SaveAllPropagatesStoreError(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("read-only filesystem")
	m := NewManager(store)
	require.NoError(t, m.RegisterSection(&stubSection{id: "llm"}))

	assert.Error(t, m.SaveAll())
}

func TestManager_ResetAll(t *testing.T) {
	m := NewManager(newMemStore())
	browser := &stubSection{id: "browser", data: map[string]interface{}{"headless": false}}
	llm := &stubSection{id: "llm", data: map[string]interface{}{"model": "gpt-4o"}}
	require.NoError(t, m.RegisterSection(browser))
	require.NoError(t, m.RegisterSection(llm))

	m.ResetAll()

	assert.Equal(t, 1, browser.resets)
	assert.Equal(t, 1, llm.resets)
	assert.Empty(t, browser.data)
}

func TestManager_ConcurrentRegistration(t *testing.T) {
	m := NewManager(newMemStore())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.RegisterSection(&stubSection{id: fmt.Sprintf("section-%d", i)})
			m.GetSections()
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.GetSections(), 10)
}
