package kernel

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"

	"github.com/evanphx/systap/abi"
)

// getpid passes the emulator's own pid through, the way user-mode
// emulation usually does: the guest is this process.
func sysGetpid(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	return int64(unix.Getpid())
}

func sysGettid(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	return int64(t.Tid)
}

func sysExitGroup(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	t.Exit(int(int64(args[0])))

	return 0
}

func init() {
	syscallTable[SYS_GETPID] = sysGetpid
	syscallTable[SYS_GETTID] = sysGettid
	syscallTable[SYS_EXIT_GROUP] = sysExitGroup
}
