package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	return store, path
}

func TestFileStore_MissingFileStartsEmpty(t *testing.T) {
	store, path := tempStore(t)

	data, err := store.GetSection("browser")
	require.NoError(t, err)
	assert.Empty(t, data)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "store must not create the file before Save")
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	store, path := tempStore(t)

	require.NoError(t, store.SetSection("llm", map[string]interface{}{
		"model":   "gpt-4o",
		"retries": float64(3),
	}))
	require.NoError(t, store.Save())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	data, err := reopened.GetSection("llm")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", data["model"])
	assert.Equal(t, float64(3), data["retries"])
}

func TestFileStore_SaveCreatesDirectoryAndLeavesNoTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.SetSection("browser", map[string]interface{}{"headless": true}))
	require.NoError(t, store.Save())

	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestFileStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestFileStore_SectionsAreCopied(t *testing.T) {
	store, _ := tempStore(t)

	original := map[string]interface{}{"headless": true}
	require.NoError(t, store.SetSection("browser", original))
	original["headless"] = false

	data, err := store.GetSection("browser")
	require.NoError(t, err)
	assert.Equal(t, true, data["headless"], "store must hold its own copy")

	// Mutating the returned map must not leak back either.
	data["headless"] = false
	again, err := store.GetSection("browser")
	require.NoError(t, err)
	assert.Equal(t, true, again["headless"])
}

func TestFileStore_LoadReplacesStagedSections(t *testing.T) {
	store, _ := tempStore(t)
	require.NoError(t, store.SetSection("billing", map[string]interface{}{"cycle_reset_day": float64(5)}))
	require.NoError(t, store.Save())

	require.NoError(t, store.SetSection("scratch", map[string]interface{}{"x": float64(1)}))
	require.NoError(t, store.Load())

	data, err := store.GetSection("scratch")
	require.NoError(t, err)
	assert.Empty(t, data, "Load must drop unsaved staged data")

	billing, err := store.GetSection("billing")
	require.NoError(t, err)
	assert.Equal(t, float64(5), billing["cycle_reset_day"])
}
