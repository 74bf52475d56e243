package vm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/soltak/tourchain/core"
)

// Handler is the function signature every transaction module must implement.
type Handler func(ctx *Context, payload json.RawMessage) error

// BlockHook runs once per block after all transactions have been applied.
// The Context passed to it has no Tx. Modules use hooks for time-driven
// work (deadline expiry, scheduled starts, bracket progression) that is
// part of block application and therefore must be deterministic.
type BlockHook func(ctx *Context) error

// Registry maps TxTypes to Handlers and keeps the ordered block-hook list.
// Thread-safe for concurrent registration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.TxType]Handler
	hooks    []BlockHook
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.TxType]Handler)}
}

// Register associates typ with h. Panics on duplicate registration.
func (r *Registry) Register(typ core.TxType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[typ]; exists {
		panic(fmt.Sprintf("vm: handler already registered for TxType %q", typ))
	}
	r.handlers[typ] = h
}

// RegisterBlockHook appends h to the hook list. Hooks run in registration
// order, which init() ordering makes identical across builds of the same
// binary.
func (r *Registry) RegisterBlockHook(h BlockHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Execute dispatches payload to the handler registered for typ.
func (r *Registry) Execute(typ core.TxType, ctx *Context, payload json.RawMessage) error {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("vm: no handler registered for TxType %q", typ)
	}
	return h(ctx, payload)
}

// RunBlockHooks invokes every registered hook with ctx.
func (r *Registry) RunBlockHooks(ctx *Context) error {
	r.mu.RLock()
	hooks := make([]BlockHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}

// globalRegistry is the package-level singleton that modules register into.
var globalRegistry = NewRegistry()

// Register adds a handler to the global registry.
// Module init() functions call this to self-register.
func Register(typ core.TxType, h Handler) {
	globalRegistry.Register(typ, h)
}

// RegisterBlockHook adds a per-block hook to the global registry.
func RegisterBlockHook(h BlockHook) {
	globalRegistry.RegisterBlockHook(h)
}
