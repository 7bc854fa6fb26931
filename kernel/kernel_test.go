package kernel

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/evanphx/systap"
	"github.com/evanphx/systap/abi"
	"github.com/evanphx/systap/hook"
	"github.com/evanphx/systap/memory"
	"github.com/evanphx/systap/script"
)

const (
	strPage  = 0x1000
	dataPage = 0x3000
)

type testWorld struct {
	k    *Kernel
	task *Task
	out  *bytes.Buffer
	errw *bytes.Buffer
}

func newWorld(t *testing.T) *testWorld {
	k := New()
	k.L = hclog.NewNullLogger()

	k.AddFile("/etc/hostname", []byte("callisto\n"))
	k.AddFile("/etc/passwd", []byte("root:x:0:0::/root:/bin/sh\n"))
	k.AddFile("/data/digits", []byte("0123456789"))

	task := k.NewTask()

	out := new(bytes.Buffer)
	errw := new(bytes.Buffer)
	task.HookupStdio(strings.NewReader(""), out, errw)

	require.NoError(t, task.Mem.Map(strPage, memory.DefaultPageSize, memory.ProtRead|memory.ProtWrite))
	require.NoError(t, task.Mem.Map(dataPage, memory.DefaultPageSize, memory.ProtRead|memory.ProtWrite))

	return &testWorld{k: k, task: task, out: out, errw: errw}
}

// seed places a NUL-terminated string in guest memory and returns its
// address.
func (w *testWorld) seed(t *testing.T, off uint64, s string) uint64 {
	addr := uint64(strPage) + off
	require.NoError(t, w.task.proxy().Write(addr, append([]byte(s), 0)))

	return addr
}

func TestKernel(t *testing.T) {
	n := neko.Modern(t)

	ctx := context.Background()

	n.It("runs the open, read, write, close lifecycle", func(t *testing.T) {
		w := newWorld(t)
		path := w.seed(t, 0, "/etc/hostname")

		fd := w.k.Syscall(ctx, w.task, SYS_OPEN, path, abi.O_RDONLY)
		require.Equal(t, int64(3), fd)

		nread := w.k.Syscall(ctx, w.task, SYS_READ, uint64(fd), dataPage, 64)
		require.Equal(t, int64(len("callisto\n")), nread)

		got := w.k.Syscall(ctx, w.task, SYS_WRITE, 1, dataPage, uint64(nread))
		require.Equal(t, nread, got)
		require.Equal(t, "callisto\n", w.out.String())

		require.Equal(t, int64(0), w.k.Syscall(ctx, w.task, SYS_CLOSE, uint64(fd)))
		require.Equal(t, int64(-abi.EBADF), w.k.Syscall(ctx, w.task, SYS_READ, uint64(fd), dataPage, 8))
	})

	n.It("reports ENOENT for paths outside the tree", func(t *testing.T) {
		w := newWorld(t)
		path := w.seed(t, 0, "/no/such/file")

		require.Equal(t, int64(-abi.ENOENT), w.k.Syscall(ctx, w.task, SYS_OPEN, path, abi.O_RDONLY))
	})

	n.It("refuses write access to the read-only tree", func(t *testing.T) {
		w := newWorld(t)
		path := w.seed(t, 0, "/etc/hostname")

		require.Equal(t, int64(-abi.EACCES), w.k.Syscall(ctx, w.task, SYS_OPEN, path, abi.O_WRONLY))
		require.Equal(t, int64(-abi.EACCES), w.k.Syscall(ctx, w.task, SYS_OPEN, path, abi.O_RDWR))
	})

	n.It("resolves openat relative to the root", func(t *testing.T) {
		w := newWorld(t)
		rel := w.seed(t, 0, "etc/hostname")
		abs := w.seed(t, 64, "/etc/hostname")

		dirfd := int64(abi.AT_FDCWD)

		fd := w.k.Syscall(ctx, w.task, SYS_OPENAT, uint64(dirfd), rel, abi.O_RDONLY)
		require.Equal(t, int64(3), fd)

		// absolute paths ignore dirfd, relative ones need a real one
		fd = w.k.Syscall(ctx, w.task, SYS_OPENAT, 5, abs, abi.O_RDONLY)
		require.Equal(t, int64(4), fd)

		require.Equal(t, int64(-abi.EBADF), w.k.Syscall(ctx, w.task, SYS_OPENAT, 5, rel, abi.O_RDONLY))
	})

	n.It("rejects syscalls it does not implement", func(t *testing.T) {
		w := newWorld(t)

		require.Equal(t, int64(-abi.ENOSYS), w.k.Syscall(ctx, w.task, 300))
		require.Equal(t, int64(-abi.ENOSYS), w.k.Syscall(ctx, w.task, 9999))
	})

	n.It("faults on unmapped guest pointers", func(t *testing.T) {
		w := newWorld(t)

		require.Equal(t, int64(-abi.EFAULT), w.k.Syscall(ctx, w.task, SYS_WRITE, 1, 0xdead0000, 10))
		require.Equal(t, int64(-abi.EFAULT), w.k.Syscall(ctx, w.task, SYS_OPEN, 0xdead0000, abi.O_RDONLY))
	})

	n.It("seeks within tree files and nowhere else", func(t *testing.T) {
		w := newWorld(t)
		path := w.seed(t, 0, "/data/digits")

		fd := w.k.Syscall(ctx, w.task, SYS_OPEN, path, abi.O_RDONLY)
		require.Equal(t, int64(3), fd)

		require.Equal(t, int64(4), w.k.Syscall(ctx, w.task, SYS_LSEEK, uint64(fd), 4, abi.SEEK_SET))

		nread := w.k.Syscall(ctx, w.task, SYS_READ, uint64(fd), dataPage, 3)
		require.Equal(t, int64(3), nread)

		buf, err := w.task.proxy().Read(dataPage, 3)
		require.NoError(t, err)
		require.Equal(t, []byte("456"), buf)

		require.Equal(t, int64(7), w.k.Syscall(ctx, w.task, SYS_LSEEK, uint64(fd), 0, abi.SEEK_CUR))
		require.Equal(t, int64(9), w.k.Syscall(ctx, w.task, SYS_LSEEK, uint64(fd), ^uint64(0), abi.SEEK_END))

		require.Equal(t, int64(-abi.EINVAL), w.k.Syscall(ctx, w.task, SYS_LSEEK, uint64(fd), 0, 9))
		require.Equal(t, int64(-abi.ESPIPE), w.k.Syscall(ctx, w.task, SYS_LSEEK, 1, 0, abi.SEEK_SET))
	})

	n.It("shares the offset across dup'd descriptors", func(t *testing.T) {
		w := newWorld(t)
		path := w.seed(t, 0, "/data/digits")

		fd := w.k.Syscall(ctx, w.task, SYS_OPEN, path, abi.O_RDONLY)
		dup := w.k.Syscall(ctx, w.task, SYS_DUP2, uint64(fd), 9)
		require.Equal(t, int64(9), dup)

		require.Equal(t, int64(4), w.k.Syscall(ctx, w.task, SYS_READ, uint64(fd), dataPage, 4))
		require.Equal(t, int64(3), w.k.Syscall(ctx, w.task, SYS_READ, uint64(dup), dataPage, 3))

		buf, err := w.task.proxy().Read(dataPage, 3)
		require.NoError(t, err)
		require.Equal(t, []byte("456"), buf)
	})

	n.It("maps and unmaps anonymous regions", func(t *testing.T) {
		w := newWorld(t)

		addr := w.k.Syscall(ctx, w.task, SYS_MMAP,
			0, memory.DefaultPageSize,
			uint64(memory.ProtRead|memory.ProtWrite),
			abi.MAP_PRIVATE|abi.MAP_ANONYMOUS, 0, 0)
		require.Greater(t, addr, int64(0))
		require.Equal(t, int64(0), addr%memory.DefaultPageSize)

		require.NoError(t, w.task.proxy().Write(uint64(addr), []byte("hi")))

		require.Equal(t, int64(0), w.k.Syscall(ctx, w.task, SYS_MUNMAP, uint64(addr), memory.DefaultPageSize))

		_, err := w.task.proxy().Read(uint64(addr), 2)
		require.Error(t, err)
	})

	n.It("validates mmap flag combinations", func(t *testing.T) {
		w := newWorld(t)

		both := uint64(abi.MAP_PRIVATE | abi.MAP_SHARED | abi.MAP_ANONYMOUS)
		require.Equal(t, int64(-abi.EINVAL), w.k.Syscall(ctx, w.task, SYS_MMAP, 0, 4096, 3, both, 0, 0))

		neither := uint64(abi.MAP_ANONYMOUS)
		require.Equal(t, int64(-abi.EINVAL), w.k.Syscall(ctx, w.task, SYS_MMAP, 0, 4096, 3, neither, 0, 0))

		fileBacked := uint64(abi.MAP_PRIVATE)
		require.Equal(t, int64(-abi.ENOSYS), w.k.Syscall(ctx, w.task, SYS_MMAP, 0, 4096, 3, fileBacked, 0, 0))

		require.Equal(t, int64(-abi.EINVAL), w.k.Syscall(ctx, w.task, SYS_MUNMAP, 0x1001, 4096))
	})

	n.It("tells tasks who they are", func(t *testing.T) {
		w := newWorld(t)

		require.Equal(t, int64(os.Getpid()), w.k.Syscall(ctx, w.task, SYS_GETPID))
		require.Equal(t, int64(w.task.Tid), w.k.Syscall(ctx, w.task, SYS_GETTID))

		other := w.k.NewTask()
		require.Equal(t, w.task.Tid+1, other.Tid)
	})

	n.It("writes timespecs for the clocks it knows", func(t *testing.T) {
		w := newWorld(t)

		before := time.Now().Unix()
		require.Equal(t, int64(0), w.k.Syscall(ctx, w.task, SYS_CLOCK_GETTIME, 0, dataPage))

		var ts timespec
		require.NoError(t, w.task.CopyIn(dataPage, &ts))
		require.GreaterOrEqual(t, ts.Sec, before)
		require.Less(t, ts.NSec, int64(1000000000))

		require.Equal(t, int64(0), w.k.Syscall(ctx, w.task, SYS_CLOCK_GETTIME, 1, dataPage))

		require.Equal(t, int64(-abi.EINVAL), w.k.Syscall(ctx, w.task, SYS_CLOCK_GETTIME, 99, dataPage))
		require.Equal(t, int64(-abi.EFAULT), w.k.Syscall(ctx, w.task, SYS_CLOCK_GETTIME, 0, 0xdead0000))
	})

	n.It("records exit_group", func(t *testing.T) {
		w := newWorld(t)

		require.Equal(t, int64(0), w.k.Syscall(ctx, w.task, SYS_EXIT_GROUP, 7))

		exited, code := w.task.Exited()
		require.True(t, exited)
		require.Equal(t, 7, code)

		_, ok := w.task.GetFile(1)
		require.False(t, ok)
	})

	n.Meow()
}

func TestKernelTap(t *testing.T) {
	n := neko.Modern(t)

	ctx := context.Background()

	attach := func(t *testing.T, w *testWorld) *systap.API {
		eng, err := systap.New(systap.Config{
			Memory: w.task.Mem,
			Logger: hclog.NewNullLogger(),
		})
		require.NoError(t, err)

		w.k.Tap = eng

		return eng.API()
	}

	n.It("denies one path while letting others through", func(t *testing.T) {
		w := newWorld(t)
		api := attach(t, w)

		api.RegisterPreHook(SYS_OPEN, script.PreFunc(func(num int64, args [abi.MaxArgs]int64) *hook.Result {
			path, err := api.ReadString(uint64(args[0]))
			if err != nil {
				return nil
			}

			if path == "/etc/passwd" {
				return &hook.Result{Action: hook.Skip, Ret: hook.Int(-abi.EACCES)}
			}

			return nil
		}))

		passwd := w.seed(t, 0, "/etc/passwd")
		hostname := w.seed(t, 64, "/etc/hostname")

		require.Equal(t, int64(-abi.EACCES), w.k.Syscall(ctx, w.task, SYS_OPEN, passwd, abi.O_RDONLY))

		fd := w.k.Syscall(ctx, w.task, SYS_OPEN, hostname, abi.O_RDONLY)
		require.Equal(t, int64(3), fd)
	})

	n.It("rewrites arguments before the native handler sees them", func(t *testing.T) {
		w := newWorld(t)
		api := attach(t, w)

		// divert stderr writes onto stdout
		api.RegisterPreHook(SYS_WRITE, script.PreFunc(func(num int64, args [abi.MaxArgs]int64) *hook.Result {
			if args[0] != 2 {
				return nil
			}

			over := args
			over[0] = 1

			return &hook.Result{Args: over[:]}
		}))

		msg := w.seed(t, 0, "diverted")

		got := w.k.Syscall(ctx, w.task, SYS_WRITE, 2, msg, 8)
		require.Equal(t, int64(8), got)

		require.Equal(t, "diverted", w.out.String())
		require.Equal(t, "", w.errw.String())
	})

	n.It("lets a post-hook inspect payloads the native handler produced", func(t *testing.T) {
		w := newWorld(t)
		api := attach(t, w)

		var preview string
		api.RegisterPostHook(SYS_READ, script.PostFunc(func(num int64, ret int64, args [abi.MaxArgs]int64) *hook.Result {
			if ret > 0 {
				data, err := api.ReadMemory(uint64(args[1]), uint64(ret))
				if err == nil {
					preview = string(data)
				}
			}

			return nil
		}))

		path := w.seed(t, 0, "/etc/hostname")
		fd := w.k.Syscall(ctx, w.task, SYS_OPEN, path, abi.O_RDONLY)

		nread := w.k.Syscall(ctx, w.task, SYS_READ, uint64(fd), dataPage, 64)
		require.Equal(t, int64(len("callisto\n")), nread)
		require.Equal(t, "callisto\n", preview)
	})

	n.It("hides the real pid behind a skip", func(t *testing.T) {
		w := newWorld(t)
		api := attach(t, w)

		api.RegisterPreHook(SYS_GETPID, script.PreFunc(func(num int64, args [abi.MaxArgs]int64) *hook.Result {
			return &hook.Result{Action: hook.Skip, Ret: hook.Int(4242)}
		}))

		require.Equal(t, int64(4242), w.k.Syscall(ctx, w.task, SYS_GETPID))

		api.UnregisterPreHook(SYS_GETPID)
		require.Equal(t, int64(os.Getpid()), w.k.Syscall(ctx, w.task, SYS_GETPID))
	})

	n.It("survives hooks that blow up", func(t *testing.T) {
		w := newWorld(t)
		api := attach(t, w)

		api.RegisterPreHook(SYS_OPEN, script.PreFunc(func(num int64, args [abi.MaxArgs]int64) *hook.Result {
			panic("scripted failure")
		}))

		path := w.seed(t, 0, "/etc/hostname")
		fd := w.k.Syscall(ctx, w.task, SYS_OPEN, path, abi.O_RDONLY)
		require.Equal(t, int64(3), fd)
	})

	n.It("observes mappings disappearing underneath hooks", func(t *testing.T) {
		w := newWorld(t)
		api := attach(t, w)

		var preErr, postErr error
		api.RegisterPreHook(SYS_MUNMAP, script.PreFunc(func(num int64, args [abi.MaxArgs]int64) *hook.Result {
			_, preErr = api.ReadMemory(uint64(args[0]), 8)
			return nil
		}))
		api.RegisterPostHook(SYS_MUNMAP, script.PostFunc(func(num int64, ret int64, args [abi.MaxArgs]int64) *hook.Result {
			_, postErr = api.ReadMemory(uint64(args[0]), 8)
			return nil
		}))

		addr := w.k.Syscall(ctx, w.task, SYS_MMAP,
			0, memory.DefaultPageSize,
			uint64(memory.ProtRead|memory.ProtWrite),
			abi.MAP_PRIVATE|abi.MAP_ANONYMOUS, 0, 0)
		require.Greater(t, addr, int64(0))

		require.Equal(t, int64(0), w.k.Syscall(ctx, w.task, SYS_MUNMAP, uint64(addr), memory.DefaultPageSize))

		require.NoError(t, preErr)
		require.Error(t, postErr)
	})

	n.It("goes quiet after the engine closes", func(t *testing.T) {
		w := newWorld(t)
		api := attach(t, w)

		fired := false
		api.RegisterPreHook(SYS_GETPID, script.PreFunc(func(num int64, args [abi.MaxArgs]int64) *hook.Result {
			fired = true
			return &hook.Result{Action: hook.Skip, Ret: hook.Int(1)}
		}))

		require.Equal(t, int64(1), w.k.Syscall(ctx, w.task, SYS_GETPID))
		require.True(t, fired)

		fired = false
		require.NoError(t, w.k.Tap.Close())

		require.Equal(t, int64(os.Getpid()), w.k.Syscall(ctx, w.task, SYS_GETPID))
		require.False(t, fired)
	})

	n.Meow()
}
