// Package systap intercepts guest system calls inside a user-mode
// emulator. An embedded script, or plain Go code, can observe every
// syscall before it runs, rewrite its arguments, suppress it with a
// substituted return value, and adjust the value the guest finally
// observes, all without touching the guest binary or the emulator's
// dispatch tables.
//
// The engine sits between the emulator's syscall decode and its native
// handlers: the emulator calls Dispatch instead of the handler, and the
// engine runs the handler itself via the Native callback unless a hook
// skipped it. Hook misbehavior never escapes; a hook that fails or
// returns garbage is logged and the syscall proceeds untouched.
package systap

import (
	"sync/atomic"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/evanphx/systap/hook"
	"github.com/evanphx/systap/log"
	"github.com/evanphx/systap/memory"
	"github.com/evanphx/systap/script"
)

// Config assembles an Engine. Memory is the only required piece.
type Config struct {
	// Memory is the emulator's address translation facility; it backs the
	// guest memory access the API hands to hooks.
	Memory memory.Mapper

	// Runtime executes hook callbacks. Defaults to script.GoRuntime.
	Runtime script.Runtime

	// Logger receives contained-failure diagnostics. Defaults to log.L.
	Logger hclog.Logger
}

var ErrNoMemory = errors.New("config: guest memory mapper required")

// Engine owns one emulated process's hook registry and runs its dispatch
// protocol. Construct one at process start with New; all guest threads of
// the process share it.
type Engine struct {
	L hclog.Logger

	registry *hook.Registry
	bridge   *script.Bridge
	mem      memory.Proxy

	enabled atomic.Bool
}

func New(cfg Config) (*Engine, error) {
	if cfg.Memory == nil {
		return nil, ErrNoMemory
	}

	rt := cfg.Runtime
	if rt == nil {
		rt = script.GoRuntime{}
	}

	l := cfg.Logger
	if l == nil {
		l = log.L
	}

	e := &Engine{
		L:        l,
		registry: hook.NewRegistry(),
		bridge:   script.NewBridge(rt),
		mem:      memory.Proxy{M: cfg.Memory},
	}
	e.enabled.Store(true)

	return e, nil
}

// Close turns interception off. Dispatches after Close run the native
// syscall directly, as if the engine had never been attached; registered
// hooks stay in the registry but never fire again.
func (e *Engine) Close() error {
	e.enabled.Store(false)

	return nil
}

func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// API returns the capability surface to expose inside the scripting
// runtime.
func (e *Engine) API() *API {
	return &API{e: e}
}
