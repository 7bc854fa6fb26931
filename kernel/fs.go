package kernel

import (
	"context"
	"path/filepath"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/evanphx/systap/abi"
)

func openPath(ctx context.Context, l hclog.Logger, t *Task, ptr uint64, flags int64) int64 {
	path, err := t.ReadCString(ptr)
	if err != nil {
		l.Error("error reading cstring", "error", err)
		return -abi.EFAULT
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join("/", path)
	}
	path = filepath.Clean(path)

	l.Trace("open file", "path", path, "flags", flags)

	fd, err := t.OpenFile(ctx, path, flags)
	if err != nil {
		switch errors.Cause(err) {
		case ErrUnknownPath:
			return -abi.ENOENT
		case ErrReadOnly:
			return -abi.EACCES
		}

		l.Error("error opening file", "error", err)

		return -abi.ENOSYS
	}

	return int64(fd)
}

func sysOpen(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		ptr   = args[0]
		flags = int64(args[1])
	)

	return openPath(ctx, l, t, ptr, flags)
}

func sysOpenAt(ctx context.Context, l hclog.Logger, t *Task, args [abi.MaxArgs]uint64) int64 {
	var (
		dirfd = int64(args[0])
		ptr   = args[1]
		flags = int64(args[2])
	)

	// The harness has no directory descriptors; everything resolves from
	// the root, so only AT_FDCWD makes sense as a base.
	if dirfd != abi.AT_FDCWD {
		path, err := t.ReadCString(ptr)
		if err == nil && filepath.IsAbs(path) {
			return openPath(ctx, l, t, ptr, flags)
		}

		return -abi.EBADF
	}

	return openPath(ctx, l, t, ptr, flags)
}

func init() {
	syscallTable[SYS_OPEN] = sysOpen
	syscallTable[SYS_OPENAT] = sysOpenAt
}
