// Command systap-demo runs a canned guest against the reference kernel
// with an interception engine attached: opens of a configurable path are
// denied, writes are previewed, and read results are logged, mirroring
// what an embedded script would do inside a real emulator.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/evanphx/systap"
	"github.com/evanphx/systap/abi"
	"github.com/evanphx/systap/hook"
	"github.com/evanphx/systap/kernel"
	stlog "github.com/evanphx/systap/log"
	"github.com/evanphx/systap/memory"
	"github.com/evanphx/systap/script"
)

var (
	fTrace = pflag.BoolP("trace", "t", false, "enable trace logging")
	fDeny  = pflag.StringP("deny", "d", "/etc/passwd", "absolute path the open hooks refuse")
)

func main() {
	cpuprofile := os.Getenv("CPUPROFILE")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		fmt.Printf("pprof: profiling started\n")
	}

	pflag.Parse()

	if *fTrace {
		stlog.EnableTrace()
	}

	ctx := context.Background()

	k := kernel.New()
	k.AddFile("/etc/hostname", []byte("callisto\n"))
	k.AddFile("/etc/passwd", []byte("root:x:0:0:root:/root:/bin/sh\n"))

	task := k.NewTask()
	task.HookupStdio(os.Stdin, os.Stdout, os.Stderr)

	eng, err := systap.New(systap.Config{
		Memory: task.Mem,
	})
	if err != nil {
		log.Fatal(err)
	}

	k.Tap = eng

	installHooks(eng.API(), *fDeny)

	err = runGuest(ctx, k, task)

	if cpuprofile != "" {
		pprof.StopCPUProfile()
		fmt.Printf("pprof: profiling finished\n")
	}

	if err != nil {
		log.Fatal(err)
	}

	_, code := task.Exited()
	fmt.Printf("guest exited code=%d\n", code)
}

func installHooks(api *systap.API, deny string) {
	l := stlog.L.Named("hooks")

	openGuard := script.PreFunc(func(num int64, args [abi.MaxArgs]int64) *hook.Result {
		ptr := uint64(args[0])
		if num == kernel.SYS_OPENAT {
			ptr = uint64(args[1])
		}

		path, err := api.ReadString(ptr)
		if err != nil {
			l.Error("error reading open path", "error", err)
			return nil
		}

		if path == deny {
			l.Info("denying open", "path", path)
			return &hook.Result{Action: hook.Skip, Ret: hook.Int(-abi.EACCES)}
		}

		l.Info("allowing open", "path", path)

		return nil
	})

	api.RegisterPreHook(kernel.SYS_OPEN, openGuard)
	api.RegisterPreHook(kernel.SYS_OPENAT, openGuard)

	api.RegisterPreHook(kernel.SYS_WRITE, script.PreFunc(func(num int64, args [abi.MaxArgs]int64) *hook.Result {
		data, err := api.ReadMemory(uint64(args[1]), uint64(args[2]))
		if err != nil {
			l.Error("error reading write payload", "error", err)
			return nil
		}

		l.Info("write", "fd", args[0], "len", args[2], "payload", preview(data))

		return nil
	}))

	api.RegisterPostHook(kernel.SYS_READ, script.PostFunc(func(num int64, ret int64, args [abi.MaxArgs]int64) *hook.Result {
		l.Info("read returned", "fd", args[0], "ret", ret)

		return nil
	}))
}

func preview(data []byte) string {
	const max = 32

	if len(data) > max {
		return fmt.Sprintf("%q...", data[:max])
	}

	return fmt.Sprintf("%q", data)
}

// runGuest drives the syscalls a tiny startup stub would make. A real
// embedder runs a CPU loop here; the demo issues the calls directly.
func runGuest(ctx context.Context, k *kernel.Kernel, task *kernel.Task) error {
	const strs = 0x1000

	if err := task.Mem.Map(strs, memory.DefaultPageSize, memory.ProtRead|memory.ProtWrite); err != nil {
		return err
	}

	// stand in for the loader placing constants in guest memory
	mem := memory.Proxy{M: task.Mem}

	passwd := uint64(strs)
	if err := mem.Write(passwd, append([]byte("/etc/passwd"), 0)); err != nil {
		return err
	}

	hostname := uint64(strs + 0x40)
	if err := mem.Write(hostname, append([]byte("/etc/hostname"), 0)); err != nil {
		return err
	}

	pid := k.Syscall(ctx, task, kernel.SYS_GETPID)
	tid := k.Syscall(ctx, task, kernel.SYS_GETTID)
	fmt.Printf("pid=%d tid=%d\n", pid, tid)

	if ret := k.Syscall(ctx, task, kernel.SYS_CLOCK_GETTIME, 0, strs+0x100); ret != 0 {
		return errors.Errorf("clock_gettime failed: %d", ret)
	}

	denied := k.Syscall(ctx, task, kernel.SYS_OPEN, passwd, abi.O_RDONLY)
	fmt.Printf("open(/etc/passwd) = %d\n", denied)

	dirfd := int64(abi.AT_FDCWD)

	fd := k.Syscall(ctx, task, kernel.SYS_OPENAT, uint64(dirfd), hostname, abi.O_RDONLY)
	if fd < 0 {
		return errors.Errorf("open /etc/hostname failed: %d", fd)
	}

	buf := k.Syscall(ctx, task, kernel.SYS_MMAP,
		0, memory.DefaultPageSize,
		uint64(memory.ProtRead|memory.ProtWrite),
		abi.MAP_PRIVATE|abi.MAP_ANONYMOUS, 0, 0)
	if buf < 0 {
		return errors.Errorf("mmap failed: %d", buf)
	}

	n := k.Syscall(ctx, task, kernel.SYS_READ, uint64(fd), uint64(buf), 128)
	if n < 0 {
		return errors.Errorf("read failed: %d", n)
	}

	if ret := k.Syscall(ctx, task, kernel.SYS_WRITE, 1, uint64(buf), uint64(n)); ret != n {
		return errors.Errorf("write failed: %d", ret)
	}

	k.Syscall(ctx, task, kernel.SYS_CLOSE, uint64(fd))
	k.Syscall(ctx, task, kernel.SYS_MUNMAP, uint64(buf), memory.DefaultPageSize)
	k.Syscall(ctx, task, kernel.SYS_EXIT_GROUP, 0)

	return nil
}
