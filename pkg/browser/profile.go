package browser

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProfileMode selects how an instance's profile directory is derived.
type ProfileMode string

const (
	// ProfileShared uses the single shared profile directory. Instances
	// spawned in this mode see the same cookies and storage.
	ProfileShared ProfileMode = "shared"

	// ProfileIsolated uses a name-derived directory wiped before launch,
	// giving the instance a clean browser state.
	ProfileIsolated ProfileMode = "isolated"

	// ProfileCustom uses a name-derived directory that persists across
	// spawns, for instances that need their own long-lived login state.
	ProfileCustom ProfileMode = "custom"
)

// profileDir resolves the user-data directory for an instance. The shared
// path is fixed; isolated and custom paths are derived from the instance
// name. Isolated directories are removed first so every spawn starts clean.
func profileDir(base string, mode ProfileMode, name string) (string, error) {
	var dir string
	switch mode {
	case ProfileShared, "":
		dir = filepath.Join(base, "shared")
	case ProfileIsolated:
		dir = filepath.Join(base, "isolated", name)
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("resetting isolated profile %q: %w", name, err)
		}
	case ProfileCustom:
		dir = filepath.Join(base, "profiles", name)
	default:
		return "", fmt.Errorf("unknown profile mode %q", mode)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating profile directory: %w", err)
	}
	return dir, nil
}
