package systap

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/evanphx/systap/abi"
	"github.com/evanphx/systap/hook"
	"github.com/evanphx/systap/script"
)

// Native executes the real syscall with the raw argument block in effect
// and returns the raw return value. The emulator supplies it per dispatch;
// the engine never interprets what it does.
type Native func(ctx context.Context, num int64, args [abi.MaxArgs]uint64) uint64

// State tracks one invocation through the dispatch protocol.
type State int

const (
	StatePreDispatch State = iota
	StateExecute
	StateSkipped
	StatePostDispatch
	StateDone
)

// Invocation is the ephemeral record of one intercepted syscall: the
// number, the argument block actually in effect, the chosen action, and
// the working return value. It lives exactly as long as one Dispatch.
type Invocation struct {
	Num    int64
	Args   [abi.MaxArgs]uint64
	Action hook.Action
	Ret    uint64
	State  State
}

// Dispatch runs one guest syscall through the interception protocol:
// pre-hook, native execution unless skipped, post-hook, then write-back of
// the final return value into the guest's return register. It blocks the
// issuing guest thread until every phase is done; there is no timeout, so
// a hook that never returns stalls that thread. The truncated final
// return value is also returned for the emulator's convenience.
func (e *Engine) Dispatch(ctx context.Context, cpu abi.RegisterFile, num int64, native Native) uint64 {
	if !e.Enabled() {
		ret := native(ctx, num, abi.ReadFrame(cpu, num).Args)
		abi.WriteRet(cpu, ret)

		return abi.Truncate(cpu.Word(), ret)
	}

	// One registry snapshot per dispatch: hooks registered while this
	// syscall is in flight apply from the next syscall on.
	pre, post := e.registry.Lookup(num)

	inv := Invocation{
		Num:  num,
		Args: abi.ReadFrame(cpu, num).Args,
	}

	e.preDispatch(&inv, cpu, pre)

	if inv.Action == hook.Skip {
		inv.State = StateSkipped
		e.L.Trace("syscall skipped by pre-hook", "num", num, "ret", int64(inv.Ret))
	} else {
		inv.State = StateExecute
		inv.Ret = native(ctx, num, inv.Args)
	}

	e.postDispatch(&inv, cpu, post)

	inv.State = StateDone
	abi.WriteRet(cpu, inv.Ret)

	return abi.Truncate(cpu.Word(), inv.Ret)
}

func (e *Engine) preDispatch(inv *Invocation, cpu abi.RegisterFile, h hook.Handle) {
	inv.State = StatePreDispatch

	if h == nil {
		return
	}

	w := cpu.Word()

	call := script.Call{
		Kind: script.Pre,
		Num:  inv.Num,
		Args: abi.SignExtendAll(w, inv.Args),
	}

	res, err := e.bridge.Invoke(h, call)
	if err != nil {
		e.L.Error("pre-hook failed, continuing unmodified", "syscall", inv.Num, "error", err)
		return
	}

	if res == nil {
		return
	}

	if err := checkPre(res); err != nil {
		e.L.Error("rejecting malformed pre-hook result", "syscall", inv.Num, "error", err)
		e.L.Trace("rejected hook result", "syscall", inv.Num, "result", spew.Sdump(res))
		return
	}

	if res.Args != nil {
		var over [abi.MaxArgs]int64
		copy(over[:], res.Args)

		inv.Args = abi.TruncateAll(w, over)
		abi.WriteArgs(cpu, inv.Args)
	}

	inv.Action = res.Action

	if res.Action == hook.Skip && res.Ret != nil {
		inv.Ret = abi.FromInt(w, *res.Ret)
	}
}

func (e *Engine) postDispatch(inv *Invocation, cpu abi.RegisterFile, h hook.Handle) {
	inv.State = StatePostDispatch

	if h == nil {
		return
	}

	w := cpu.Word()

	call := script.Call{
		Kind: script.Post,
		Num:  inv.Num,
		Ret:  abi.SignExtend(w, inv.Ret),
		Args: abi.SignExtendAll(w, inv.Args),
	}

	res, err := e.bridge.Invoke(h, call)
	if err != nil {
		e.L.Error("post-hook failed, return value unchanged", "syscall", inv.Num, "error", err)
		return
	}

	if res == nil {
		return
	}

	if err := checkPost(res); err != nil {
		e.L.Error("rejecting malformed post-hook result", "syscall", inv.Num, "error", err)
		e.L.Trace("rejected hook result", "syscall", inv.Num, "result", spew.Sdump(res))
		return
	}

	if res.Ret != nil {
		inv.Ret = abi.FromInt(w, *res.Ret)
	}
}

func checkPre(res *hook.Result) error {
	if res.Action != hook.Continue && res.Action != hook.Skip {
		return errors.Wrapf(hook.ErrInvalidResult, "unknown action %d", res.Action)
	}

	if res.Args != nil && len(res.Args) != abi.MaxArgs {
		return errors.Wrapf(hook.ErrInvalidResult, "argument override has %d values, want %d",
			len(res.Args), abi.MaxArgs)
	}

	return nil
}

func checkPost(res *hook.Result) error {
	if res.Action != hook.Continue {
		return errors.Wrap(hook.ErrInvalidResult, "post-hook cannot pick an action")
	}

	if res.Args != nil {
		return errors.Wrap(hook.ErrInvalidResult, "post-hook cannot override arguments")
	}

	return nil
}
