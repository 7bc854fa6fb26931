// Package hook holds the registry of syscall hooks and the result shape
// callbacks hand back across the runtime boundary.
package hook

import (
	"github.com/pkg/errors"
)

// Action selects whether the real syscall executes after a pre-hook.
type Action int

const (
	// Continue dispatches the real syscall. This is the default when a
	// hook returns nothing at all.
	Continue Action = 0

	// Skip suppresses the real syscall. The guest observes the hook's Ret
	// instead, or zero when the hook provided none.
	Skip Action = 1
)

// Result is the loosely structured value a callback returns. Every field
// is optional; the dispatch engine validates the shape once at its
// boundary and rejects anything malformed without applying any of it.
type Result struct {
	// Action picks Continue or Skip. Pre-hooks only.
	Action Action

	// Args replaces the eight argument slots in effect for the rest of the
	// dispatch, whether or not the real syscall runs. Honored only when it
	// holds exactly eight values. Pre-hooks only.
	Args []int64

	// Ret is the return value the guest observes: paired with Skip on a
	// pre-hook, or replacing the real return value from a post-hook.
	Ret *int64
}

// Int builds the optional return value for a Result inline.
func Int(v int64) *int64 {
	return &v
}

var ErrInvalidResult = errors.New("malformed hook result")
