package systap

import (
	"github.com/evanphx/systap/hook"
)

// Continue and Skip are re-exported so runtime bindings can surface the
// action sentinels without importing the hook package.
const (
	Continue = hook.Continue
	Skip     = hook.Skip
)

// API is the capability surface a scripting runtime exposes to hook code:
// hook management plus validated guest memory access. How it gets bound
// into the runtime's namespace is the embedder's business; users of the
// native Go runtime just call it.
type API struct {
	e *Engine
}

// RegisterPreHook installs h as the pre-hook for syscall num, replacing
// any previous one. num is not checked against a syscall table; a number
// the guest never issues simply never fires.
func (a *API) RegisterPreHook(num int64, h hook.Handle) {
	a.e.registry.RegisterPre(num, h)
}

// RegisterPostHook installs h as the post-hook for syscall num, replacing
// any previous one.
func (a *API) RegisterPostHook(num int64, h hook.Handle) {
	a.e.registry.RegisterPost(num, h)
}

// UnregisterPreHook removes the pre-hook for num, if any.
func (a *API) UnregisterPreHook(num int64) {
	a.e.registry.UnregisterPre(num)
}

// UnregisterPostHook removes the post-hook for num, if any.
func (a *API) UnregisterPostHook(num int64) {
	a.e.registry.UnregisterPost(num)
}

// ReadMemory returns size bytes of guest memory at addr. The whole range
// must be mapped and readable or nothing comes back.
func (a *API) ReadMemory(addr, size uint64) ([]byte, error) {
	return a.e.mem.Read(addr, size)
}

// WriteMemory stores data into guest memory at addr. The whole range is
// validated writable before the first byte lands.
func (a *API) WriteMemory(addr uint64, data []byte) error {
	return a.e.mem.Write(addr, data)
}

// ReadString reads a NUL-terminated string from guest memory, capped at
// memory.StringLimit bytes.
func (a *API) ReadString(addr uint64) (string, error) {
	return a.e.mem.ReadString(addr)
}
