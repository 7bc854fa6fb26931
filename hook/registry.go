package hook

import (
	"sync"
)

// Handle is an opaque callback reference owned by the scripting runtime.
// The registry only stores handles; invoking one is the runtime's job.
type Handle any

type entry struct {
	pre  Handle
	post Handle
}

// Registry maps syscall numbers to at most one pre-hook and one post-hook
// each. One registry is shared by every guest thread of an emulated
// process; mutations may interleave with dispatches, including mutations
// made from inside a running hook, which affect later syscalls only.
type Registry struct {
	mu    sync.RWMutex
	hooks map[int64]entry
}

func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[int64]entry),
	}
}

// RegisterPre installs h as the pre-hook for num, replacing any previous
// one. Numbers with no meaning to the guest ABI are accepted; they simply
// never match a dispatch.
func (r *Registry) RegisterPre(num int64, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.hooks[num]
	e.pre = h
	r.hooks[num] = e
}

// RegisterPost installs h as the post-hook for num, replacing any previous
// one.
func (r *Registry) RegisterPost(num int64, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.hooks[num]
	e.post = h
	r.hooks[num] = e
}

// UnregisterPre removes the pre-hook for num. Removing a hook that was
// never registered does nothing.
func (r *Registry) UnregisterPre(num int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.hooks[num]
	if !ok {
		return
	}

	e.pre = nil
	if e.post == nil {
		delete(r.hooks, num)
	} else {
		r.hooks[num] = e
	}
}

// UnregisterPost removes the post-hook for num.
func (r *Registry) UnregisterPost(num int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.hooks[num]
	if !ok {
		return
	}

	e.post = nil
	if e.pre == nil {
		delete(r.hooks, num)
	} else {
		r.hooks[num] = e
	}
}

// Lookup returns the hooks registered for num. Both slots come from one
// locked read, so a dispatch always sees a consistent pair; it never sees
// half of a concurrent update.
func (r *Registry) Lookup(num int64) (pre, post Handle) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.hooks[num]

	return e.pre, e.post
}
