package kernel

import (
	"context"

	"github.com/evanphx/systap"
	"github.com/evanphx/systap/abi"
)

// Trap is the kernel's syscall entry: every guest syscall funnels through
// here. With an engine attached the dispatch protocol wraps the native
// handler; without one the handler runs directly, which is also exactly
// what a closed engine reduces to.
func (k *Kernel) Trap(ctx context.Context, t *Task, num int64) uint64 {
	if name, ok := SyscallNames[num]; ok {
		k.L.Trace("syscall", "tid", t.Tid, "num", num, "name", name)
	} else {
		k.L.Trace("syscall", "tid", t.Tid, "num", num)
	}

	native := systap.Native(func(ctx context.Context, num int64, args [abi.MaxArgs]uint64) uint64 {
		return k.exec(ctx, t, num, args)
	})

	if k.Tap != nil {
		return k.Tap.Dispatch(ctx, t.Regs, num, native)
	}

	args := abi.ReadFrame(t.Regs, num).Args
	ret := native(ctx, num, args)
	abi.WriteRet(t.Regs, ret)

	return ret
}

func (k *Kernel) exec(ctx context.Context, t *Task, num int64, args [abi.MaxArgs]uint64) uint64 {
	if num < 0 || num >= int64(len(syscallTable)) || syscallTable[num] == nil {
		k.L.Error("unknown syscall", "tid", t.Tid, "num", num)

		ret := int64(-abi.ENOSYS)

		return uint64(ret)
	}

	return uint64(syscallTable[num](ctx, k.L, t, args))
}

// Syscall loads the argument registers and traps. It is the guest-side
// calling convention the demo program uses, returning the sign-extended
// value the guest would see.
func (k *Kernel) Syscall(ctx context.Context, t *Task, num int64, args ...uint64) int64 {
	if len(args) > t.Regs.Arity() {
		panic("kernel: more syscall arguments than the guest ABI carries")
	}

	for i, a := range args {
		t.Regs.SetArg(i, a)
	}

	// clear the rest; stale registers must not leak into the frame
	for i := len(args); i < t.Regs.Arity(); i++ {
		t.Regs.SetArg(i, 0)
	}

	raw := k.Trap(ctx, t, num)

	return abi.SignExtend(t.Regs.Word(), raw)
}
