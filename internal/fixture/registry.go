// Package fixture holds the registry of data-fixture factories.
//
// Factories produce test data for scenarios and remember what they made
// (sequence counters, the last created entity). Between scenarios they are
// reset, never recreated. Factories are registered explicitly by name when
// the runtime boots; only concrete factories are ever registered, so there
// is no notion of an abstract base factory at runtime.
package fixture

import (
	"fmt"
	"sync"
)

// Factory is the capability every fixture factory exposes.
type Factory interface {
	// Reset drops any memoized state so the next scenario starts from a
	// clean counter.
	Reset()
}

// FactoryFunc adapts a plain function to Factory.
type FactoryFunc func()

// Reset calls f.
func (f FactoryFunc) Reset() { f() }

type entry struct {
	name    string
	factory Factory
}

// Registry is an ordered set of named factories.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a factory under name. Names must be unique and non-empty.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("register fixture factory: name is required")
	}
	if f == nil {
		return fmt.Errorf("register fixture factory %q: factory is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[name]; exists {
		return fmt.Errorf("register fixture factory %q: already registered", name)
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, entry{name: name, factory: f})
	return nil
}

// MustRegister is Register that panics on error. Intended for bootstrap code.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.entries[i].factory, true
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered factories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ResetAll resets every registered factory once, in registration order, and
// returns how many were reset.
func (r *Registry) ResetAll() int {
	r.mu.RLock()
	factories := make([]Factory, len(r.entries))
	for i, e := range r.entries {
		factories[i] = e.factory
	}
	r.mu.RUnlock()

	for _, f := range factories {
		f.Reset()
	}
	return len(factories)
}
