package script

import (
	"github.com/pkg/errors"

	"github.com/evanphx/systap/abi"
	"github.com/evanphx/systap/hook"
)

// PreFunc is a native pre-hook: it sees the syscall number and the eight
// argument slots and may return a result, or nil for "no opinion".
type PreFunc func(num int64, args [abi.MaxArgs]int64) *hook.Result

// PostFunc is a native post-hook: it additionally sees the return value
// about to be delivered and may return a result replacing it.
type PostFunc func(num int64, ret int64, args [abi.MaxArgs]int64) *hook.Result

// GoRuntime is the in-process runtime: handles are Go closures. It is the
// default runtime, and the one the demo and the tests embed.
type GoRuntime struct{}

func (GoRuntime) Invoke(h hook.Handle, call Call) (*hook.Result, error) {
	switch call.Kind {
	case Pre:
		fn, ok := h.(PreFunc)
		if !ok {
			return nil, errors.Errorf("pre handle is %T, want script.PreFunc", h)
		}

		return fn(call.Num, call.Args), nil
	case Post:
		fn, ok := h.(PostFunc)
		if !ok {
			return nil, errors.Errorf("post handle is %T, want script.PostFunc", h)
		}

		return fn(call.Num, call.Ret, call.Args), nil
	}

	return nil, errors.Errorf("unknown call kind %d", call.Kind)
}
