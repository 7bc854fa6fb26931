package kernel

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/evanphx/systap/abi"
)

// Syscall numbers the reference kernel implements, amd64 numbering.
const (
	SYS_READ          = 0
	SYS_WRITE         = 1
	SYS_OPEN          = 2
	SYS_CLOSE         = 3
	SYS_LSEEK         = 8
	SYS_MMAP          = 9
	SYS_MUNMAP        = 11
	SYS_DUP2          = 33
	SYS_GETPID        = 39
	SYS_GETTID        = 186
	SYS_CLOCK_GETTIME = 228
	SYS_EXIT_GROUP    = 231
	SYS_OPENAT        = 257
)

// Handler executes one native syscall for a task. Arguments arrive in the
// uniform eight-slot raw form; the signed result is truncated into the
// return register by the trap path.
type Handler func(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64

var syscallTable [512]Handler

// SyscallNames mirrors the table for trace logging.
var SyscallNames = map[int64]string{
	SYS_READ:          "read",
	SYS_WRITE:         "write",
	SYS_OPEN:          "open",
	SYS_CLOSE:         "close",
	SYS_LSEEK:         "lseek",
	SYS_MMAP:          "mmap",
	SYS_MUNMAP:        "munmap",
	SYS_DUP2:          "dup2",
	SYS_GETPID:        "getpid",
	SYS_GETTID:        "gettid",
	SYS_CLOCK_GETTIME: "clock_gettime",
	SYS_EXIT_GROUP:    "exit_group",
	SYS_OPENAT:        "openat",
}
