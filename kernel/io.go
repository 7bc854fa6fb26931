package kernel

import (
	"context"
	"io"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/evanphx/systap/abi"
)

func sysRead(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		fd  = int(args[0])
		buf = args[1]
		sz  = args[2]
	)

	f, ok := t.GetFile(fd)
	if !ok {
		return -abi.EBADF
	}

	r, ok := f.Reader()
	if !ok {
		return -abi.EBADF
	}

	tmp := make([]byte, sz)

	n, err := r.Read(tmp)
	if err != nil {
		if err == io.EOF {
			return 0
		}

		if n == 0 || err != io.ErrUnexpectedEOF {
			l.Error("error reading", "error", err, "fd", fd)
			return -abi.EIO
		}
	}

	if err := t.proxy().Write(buf, tmp[:n]); err != nil {
		l.Error("error copying data out", "error", err)
		return -abi.EFAULT
	}

	return int64(n)
}

func sysWrite(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		fd  = int(args[0])
		ptr = args[1]
		sz  = args[2]
	)

	f, ok := t.GetFile(fd)
	if !ok {
		return -abi.EBADF
	}

	w, ok := f.Writer()
	if !ok {
		return -abi.EBADF
	}

	data, err := t.proxy().Read(ptr, sz)
	if err != nil {
		l.Error("error reading data from userspace", "error", err)
		return -abi.EFAULT
	}

	n, err := w.Write(data)
	if err != nil {
		l.Error("error writing data", "error", err)
		return -abi.EFAULT
	}

	return int64(n)
}

func sysClose(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		fd = int(args[0])
	)

	err := t.CloseFile(fd)
	if err != nil {
		if errors.Cause(err) == ErrUnknownFile {
			return -abi.EBADF
		}

		l.Error("error closing fd", "error", err, "fd", fd)
		return -abi.ENOSYS
	}

	return 0
}

func sysLseek(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		fd     = int(args[0])
		off    = int64(args[1])
		whence = int(args[2])
	)

	f, ok := t.GetFile(fd)
	if !ok {
		return -abi.EBADF
	}

	if f.node == nil {
		return -abi.ESPIPE
	}

	pos, err := f.Seek(off, whence)
	if err != nil {
		return -abi.EINVAL
	}

	return pos
}

func sysDup2(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		from = int(args[0])
		to   = int(args[1])
	)

	err := t.Dup2(from, to)
	if err != nil {
		l.Error("error duping fd", "from", from, "to", to)
		return -abi.EBADF
	}

	return int64(to)
}

func init() {
	syscallTable[SYS_READ] = sysRead
	syscallTable[SYS_WRITE] = sysWrite
	syscallTable[SYS_CLOSE] = sysClose
	syscallTable[SYS_LSEEK] = sysLseek
	syscallTable[SYS_DUP2] = sysDup2
}
