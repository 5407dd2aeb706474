package browser

import (
	"errors"
	"fmt"
)

// Sentinel errors for pool and tab operations. Callers match them with
// errors.Is; the wrapped messages carry the offending name or index.
var (
	// ErrNotFound indicates an unknown instance name.
	ErrNotFound = errors.New("instance not found")

	// ErrDuplicateName indicates a spawn collision on an existing name.
	ErrDuplicateName = errors.New("instance name already in use")

	// ErrPoolFull indicates the configured instance cap has been reached.
	ErrPoolFull = errors.New("instance limit reached")

	// ErrNoActiveInstance indicates the pool has no active instance to
	// route to.
	ErrNoActiveInstance = errors.New("no active browser instance")

	// ErrTabOutOfRange indicates a tab index outside [0, tab count).
	ErrTabOutOfRange = errors.New("tab index out of range")

	// ErrLastTab indicates an attempt to close an instance's only tab.
	ErrLastTab = errors.New("cannot close the last tab")

	// ErrNoTabMatch indicates a tab URL fragment matched no open tab.
	ErrNoTabMatch = errors.New("no tab matches fragment")
)

// LaunchError reports a browser process that failed to start or exited
// before exposing a control endpoint. Diagnostics carries captured process
// output when available.
type LaunchError struct {
	Name        string
	Diagnostics string
	Err         error
}

func (e *LaunchError) Error() string {
	if e.Diagnostics != "" {
		return fmt.Sprintf("launching instance %q: %v (%s)", e.Name, e.Err, e.Diagnostics)
	}
	return fmt.Sprintf("launching instance %q: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
