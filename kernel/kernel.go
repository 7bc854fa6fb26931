// Package kernel is the miniature native syscall layer the demo guest runs
// against. It exists to give the interception engine a realistic dispatch
// path to sit in: handlers execute against an in-memory file tree and the
// task's address space, and Trap is the single funnel where an attached
// engine observes every syscall.
package kernel

import (
	"sync"

	hclog "github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/evanphx/systap"
	"github.com/evanphx/systap/log"
)

var (
	ErrUnknownFile = errors.New("unknown file")
	ErrUnknownPath = errors.New("unknown path")
	ErrReadOnly    = errors.New("file tree is read only")
)

// dcacheSize bounds the path lookup cache.
const dcacheSize = 128

type inode struct {
	path string
	data []byte
}

// Kernel holds the pieces shared by every task: the file tree, the lookup
// cache over it, and the optional interception engine.
type Kernel struct {
	L hclog.Logger

	// Tap, when set, intercepts every syscall passing through Trap.
	Tap *systap.Engine

	mu      sync.Mutex
	files   map[string]*inode
	dcache  *lru.Cache
	nextTid int
}

func New() *Kernel {
	dcache, err := lru.New(dcacheSize)
	if err != nil {
		panic(err)
	}

	return &Kernel{
		L:      log.L,
		files:  make(map[string]*inode),
		dcache: dcache,
	}
}

// AddFile seeds the in-memory tree with a file. Re-adding a path replaces
// its contents.
func (k *Kernel) AddFile(path string, data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.files[path] = &inode{path: path, data: data}
	k.dcache.Remove(path)
}

// resolve looks a path up, consulting the dentry cache first. Negative
// results are not cached; the tree is small and misses are rare.
func (k *Kernel) resolve(path string) (*inode, bool) {
	if v, ok := k.dcache.Get(path); ok {
		return v.(*inode), true
	}

	k.mu.Lock()
	n, ok := k.files[path]
	k.mu.Unlock()

	if ok {
		k.dcache.Add(path, n)
	}

	return n, ok
}
