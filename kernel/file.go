package kernel

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// File is one fd table entry. Slots wrapping host streams carry r or w;
// slots opened from the file tree carry a node and a read offset. Entries
// are refcounted so dup'd descriptors share one offset.
type File struct {
	mu   sync.Mutex
	refs int

	node *inode
	off  int64

	r io.Reader
	w io.Writer
}

// Reader reports whether the file can be read and hands back the reader.
func (f *File) Reader() (io.Reader, bool) {
	if f.node == nil && f.r == nil {
		return nil, false
	}

	return f, true
}

// Writer reports whether the file can be written and hands back the
// writer. Tree-backed files are read only.
func (f *File) Writer() (io.Writer, bool) {
	if f.w == nil {
		return nil, false
	}

	return f, true
}

func (f *File) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.node != nil {
		if f.off >= int64(len(f.node.data)) {
			return 0, io.EOF
		}

		n := copy(b, f.node.data[f.off:])
		f.off += int64(n)

		return n, nil
	}

	if f.r == nil {
		return 0, ErrUnknownFile
	}

	return f.r.Read(b)
}

func (f *File) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.w == nil {
		return 0, ErrReadOnly
	}

	return f.w.Write(b)
}

// Seek moves the read offset of a tree-backed file. whence follows
// lseek(2); the new offset is returned.
func (f *File) Seek(off int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.node == nil {
		return 0, errors.Wrap(ErrUnknownFile, "not a seekable file")
	}

	var base int64

	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.off
	case io.SeekEnd:
		base = int64(len(f.node.data))
	default:
		return 0, errors.Errorf("unknown whence %d", whence)
	}

	if base+off < 0 {
		return 0, errors.Errorf("offset %d before start of file", base+off)
	}

	f.off = base + off

	return f.off, nil
}

func (f *File) incRef() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refs++
}

// Close drops one reference. The entry holds no host resources, so the
// last close only retires the refcount.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refs--

	return nil
}
