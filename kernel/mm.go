package kernel

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/evanphx/systap/abi"
	"github.com/evanphx/systap/memory"
)

func sysMmap(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		addr  = args[0]
		size  = args[1]
		prot  = memory.Prot(args[2])
		flags = int64(args[3])

		private = flags&abi.MAP_PRIVATE != 0
		shared  = flags&abi.MAP_SHARED != 0
		anon    = flags&abi.MAP_ANONYMOUS != 0
	)

	// Require exactly one of MAP_PRIVATE and MAP_SHARED.
	if private == shared {
		return -abi.EINVAL
	}

	// File-backed mappings are not part of the harness.
	if !anon {
		return -abi.ENOSYS
	}

	if size == 0 {
		return -abi.EINVAL
	}

	if addr == 0 {
		addr = t.takeMmap(size)
	}

	if err := t.Mem.Map(addr, size, prot); err != nil {
		l.Error("error mapping region", "error", err)
		return -abi.EINVAL
	}

	l.Trace("new region", "addr", addr, "size", size, "prot", prot.String())

	return int64(addr)
}

func sysMunmap(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		addr = args[0]
		size = args[1]
	)

	if err := t.Mem.Unmap(addr, size); err != nil {
		return -abi.EINVAL
	}

	return 0
}

func init() {
	syscallTable[SYS_MMAP] = sysMmap
	syscallTable[SYS_MUNMAP] = sysMunmap
}
