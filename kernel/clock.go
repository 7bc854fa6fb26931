package kernel

import (
	"context"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/evanphx/systap/abi"
)

type timespec struct {
	Sec  int64
	NSec int64
}

var boot = time.Now()

func sysClockGettime(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		clk = args[0]
		ptr = args[1]
	)

	var ts timespec

	switch clk {
	case 0: // CLOCK_REALTIME
		now := time.Now()
		ts = timespec{
			Sec:  now.Unix(),
			NSec: int64(now.Nanosecond()),
		}
	case 1, 6: // CLOCK_MONOTONIC, CLOCK_MONOTONIC_COARSE
		ns := time.Since(boot).Nanoseconds()
		ts = timespec{
			Sec:  ns / 1000000000,
			NSec: ns % 1000000000,
		}
	default:
		return -abi.EINVAL
	}

	if err := t.CopyOut(ptr, ts); err != nil {
		l.Error("error copying out timespec", "error", err)
		return -abi.EFAULT
	}

	return 0
}

func init() {
	syscallTable[SYS_CLOCK_GETTIME] = sysClockGettime
}
