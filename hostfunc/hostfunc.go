package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrUnknownFunction is returned by Call for names nothing registered.
var ErrUnknownFunction = errors.New("unknown function")

// Func is a host function callable by a guest. Args and results travel as JSON.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Registry maps host function names to implementations. The bridge reads it
// while the guest runs, so registration and calls may be concurrent.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name, replacing any previous registration.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// Call runs the function registered under name. Nil args become an empty map
// so functions can index them freely.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	fn, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return fn(ctx, args)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.funcs))
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}
