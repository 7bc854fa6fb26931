package kernel

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/evanphx/systap/abi"
	"github.com/evanphx/systap/log"
	"github.com/evanphx/systap/memory"
)

// Regs is the reference register file: a 64-bit guest with six argument
// registers. Dispatching through exactly six means hooks always see the
// two trailing slots of the uniform frame as zero.
type Regs struct {
	args [6]uint64
	ret  uint64
}

func (r *Regs) Word() abi.Word         { return abi.Word64 }
func (r *Regs) Arity() int             { return len(r.args) }
func (r *Regs) Arg(i int) uint64       { return r.args[i] }
func (r *Regs) SetArg(i int, v uint64) { r.args[i] = v }
func (r *Regs) Ret() uint64            { return r.ret }
func (r *Regs) SetRet(v uint64)        { r.ret = v }

// mmapBase is where anonymous mappings start when the guest lets the
// kernel pick the address.
const mmapBase = 0x100000

// Task is one guest thread: its register file, its address space, and its
// file descriptor table.
type Task struct {
	Kernel *Kernel
	Tid    int
	Regs   *Regs
	Mem    *memory.Space

	mu  sync.Mutex
	fds []*File

	nextMmap uint64

	exited   bool
	exitCode int
}

func (k *Kernel) NewTask() *Task {
	k.mu.Lock()
	k.nextTid++
	tid := k.nextTid
	k.mu.Unlock()

	return &Task{
		Kernel:   k,
		Tid:      tid,
		Regs:     &Regs{},
		Mem:      memory.NewSpace(),
		nextMmap: mmapBase,
	}
}

// HookupStdio installs the host streams as fds 0, 1, and 2.
func (t *Task) HookupStdio(in io.Reader, out, errw io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fds = append(t.fds,
		&File{refs: 1, r: in},
		&File{refs: 1, w: out},
		&File{refs: 1, w: errw},
	)
}

func (t *Task) GetFile(fd int) (*File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fd < 0 || fd >= len(t.fds) {
		return nil, false
	}

	file := t.fds[fd]
	if file == nil {
		return nil, false
	}

	return file, true
}

// AddFile installs f into the lowest free fd slot and returns the fd.
func (t *Task) AddFile(f *File) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	for fd, cur := range t.fds {
		if cur == nil {
			t.fds[fd] = f
			return fd
		}
	}

	t.fds = append(t.fds, f)

	return len(t.fds) - 1
}

func (t *Task) CloseFile(fd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fd < 0 || fd >= len(t.fds) {
		return ErrUnknownFile
	}

	file := t.fds[fd]
	if file == nil {
		return ErrUnknownFile
	}

	t.fds[fd] = nil

	return file.Close()
}

func (t *Task) Dup2(from, to int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if from < 0 || from >= len(t.fds) || t.fds[from] == nil {
		return ErrUnknownFile
	}

	if to < 0 {
		return ErrUnknownFile
	}

	for to >= len(t.fds) {
		t.fds = append(t.fds, nil)
	}

	if f := t.fds[to]; f != nil {
		f.Close()
	}

	t.fds[to] = t.fds[from]
	t.fds[to].incRef()

	return nil
}

// OpenFile resolves path in the kernel's tree and installs a descriptor
// for it. The tree is read only; any write access is refused.
func (t *Task) OpenFile(ctx context.Context, path string, flags int64) (int, error) {
	if flags&abi.O_ACCMODE != abi.O_RDONLY {
		return 0, ErrReadOnly
	}

	node, ok := t.Kernel.resolve(path)
	if !ok {
		return 0, ErrUnknownPath
	}

	f := &File{refs: 1, node: node}

	return t.AddFile(f), nil
}

// proxy returns a validated accessor over the task's address space.
func (t *Task) proxy() memory.Proxy {
	return memory.Proxy{M: t.Mem}
}

// ReadAt implements io.ReaderAt over guest memory.
func (t *Task) ReadAt(b []byte, off int64) (int, error) {
	data, err := t.proxy().Read(uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}

	return copy(b, data), nil
}

// WriteAt implements io.WriterAt over guest memory.
func (t *Task) WriteAt(b []byte, off int64) (int, error) {
	if err := t.proxy().Write(uint64(off), b); err != nil {
		return 0, err
	}

	return len(b), nil
}

type readAdapter struct {
	sub    io.ReaderAt
	offset int64
}

func (ra readAdapter) Read(b []byte) (int, error) {
	return ra.sub.ReadAt(b, ra.offset)
}

type writeAdapter struct {
	sub    io.WriterAt
	offset int64
}

func (wa writeAdapter) Write(b []byte) (int, error) {
	return wa.sub.WriteAt(b, wa.offset)
}

// CopyIn reads a fixed-size value out of guest memory at addr.
func (t *Task) CopyIn(addr uint64, val interface{}) error {
	return binary.Read(readAdapter{sub: t, offset: int64(addr)}, binary.LittleEndian, val)
}

// CopyOut writes a fixed-size value into guest memory at addr.
func (t *Task) CopyOut(addr uint64, val interface{}) error {
	return binary.Write(writeAdapter{sub: t, offset: int64(addr)}, binary.LittleEndian, val)
}

// ReadCString reads a NUL-terminated string from guest memory.
func (t *Task) ReadCString(addr uint64) (string, error) {
	return t.proxy().ReadString(addr)
}

// takeMmap hands out the next free anonymous mapping address, keeping one
// guard page between allocations.
func (t *Task) takeMmap(size uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	addr := t.nextMmap
	t.nextMmap += t.Mem.Round(size) + t.Mem.PageSize()

	return addr
}

func (t *Task) Exit(code int) {
	log.L.Trace("task-exit", "tid", t.Tid, "code", code)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exited {
		return
	}

	t.exited = true
	t.exitCode = code

	for fd, f := range t.fds {
		if f != nil {
			f.Close()
			t.fds[fd] = nil
		}
	}
}

// Exited reports whether the task called exit_group and with what code.
func (t *Task) Exited() (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.exited, t.exitCode
}
