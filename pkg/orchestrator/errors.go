package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/vouch/pkg/types"
)

// ErrAborted is the sentinel matched by errors.Is for cooperative
// cancellation of a dispatched command.
var ErrAborted = errors.New("command aborted")

// AbortedError reports that the caller cancelled a command while its
// dispatched work was still in flight. The underlying external call is not
// force-terminated; the orchestrator simply stops waiting on it.
type AbortedError struct {
	Mode types.Mode
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("%s command aborted", e.Mode)
}

func (e *AbortedError) Is(target error) bool {
	return target == ErrAborted || target == context.Canceled
}
