package script

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/evanphx/systap/hook"
)

// ErrCallback wraps failures raised by hook callback code itself, as
// opposed to failures of the machinery around it.
var ErrCallback = errors.New("hook callback error")

// Bridge serializes every crossing into the embedded runtime and converts
// callback failures, returned errors and panics alike, into ErrCallback.
// Scripting runtimes are typically single threaded, so one engine-wide
// lock linearizes hook execution across all guest threads. That lock is
// the documented throughput ceiling of interception, not a tuning knob.
type Bridge struct {
	mu sync.Mutex
	rt Runtime
}

func NewBridge(rt Runtime) *Bridge {
	return &Bridge{rt: rt}
}

// Invoke runs one callback under the invocation lock. Any failure comes
// back wrapping ErrCallback; the caller decides what containment means.
func (b *Bridge) Invoke(h hook.Handle, call Call) (res *hook.Result, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	defer func() {
		if v := recover(); v != nil {
			res = nil
			err = errors.Wrapf(ErrCallback, "panic in %s hook for syscall %d: %v", call.Kind, call.Num, v)
		}
	}()

	res, err = b.rt.Invoke(h, call)
	if err != nil {
		return nil, errors.Wrapf(ErrCallback, "%s hook for syscall %d: %s", call.Kind, call.Num, err)
	}

	return res, nil
}
