// Package script carries hook invocations across the boundary between the
// dispatch engine and an embedded scripting runtime.
package script

import (
	"github.com/evanphx/systap/abi"
	"github.com/evanphx/systap/hook"
)

// Kind distinguishes the two callback shapes that cross the boundary.
type Kind int

const (
	// Pre callbacks see (num, args) and may pick an action, override the
	// arguments, or supply the return value for a skip.
	Pre Kind = iota

	// Post callbacks see (num, ret, args) and may only replace the return
	// value.
	Post
)

func (k Kind) String() string {
	switch k {
	case Pre:
		return "pre"
	case Post:
		return "post"
	}

	return "unknown"
}

// Call is the uniform frame handed to the runtime for one hook invocation.
// Args arrive sign-extended into the signed domain hooks operate on; Ret
// is only meaningful for Post calls.
type Call struct {
	Kind Kind
	Num  int64
	Ret  int64
	Args [abi.MaxArgs]int64
}

// Runtime executes callback handles inside whatever scripting environment
// is embedded. Invoke is the single crossing point: a nil result with a
// nil error means the hook returned nothing. Runtimes report script
// exceptions as errors rather than panicking, though the bridge contains
// panics anyway.
type Runtime interface {
	Invoke(h hook.Handle, call Call) (*hook.Result, error)
}
