package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/history"
)

// Registry maps command names to factories.
// It is safe for concurrent use so adapters can register commands at startup
// while a workspace is being built.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]registration
	nextID    uint64
}

type registration struct {
	id      uint64
	factory history.Factory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]registration),
	}
}

// Register adds a factory under name and returns a function that removes it again.
// If a factory with the same name exists, it is overwritten; callers that need
// idempotent registration check Has first. The returned function only removes the
// factory it registered.
func (r *Registry) Register(name string, factory history.Factory) (func(), error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "command name is empty", name)
	}
	if factory == nil {
		return nil, domain.NewValidationError("factory", fmt.Sprintf("factory for %q is nil", name), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.factories[name] = registration{id: id, factory: factory}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.factories[name]; ok && current.id == id {
			delete(r.factories, name)
		}
	}, nil
}

// MustRegister is Register for static wiring; it panics on invalid input.
func (r *Registry) MustRegister(name string, factory history.Factory) {
	if _, err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// RegisterCommand registers a prototype command that is executed as-is by every call.
// Use it for stateless commands only; stateful ones need a Factory.
func (r *Registry) RegisterCommand(name string, cmd history.Command) (func(), error) {
	if cmd == nil || (reflect.ValueOf(cmd).Kind() == reflect.Pointer && reflect.ValueOf(cmd).IsNil()) {
		return nil, domain.NewValidationError("command", fmt.Sprintf("command %q is nil", name), nil)
	}
	return r.Register(name, func(history.FactoryInput) (history.Command, error) {
		return cmd, nil
	})
}

// Has reports whether a factory is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup implements history.Resolver.
func (r *Registry) Lookup(name string) (history.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return reg.factory, true
}

// Build resolves name and invokes its factory.
// Unknown names fail with a *domain.LookupError.
func (r *Registry) Build(name string, in history.FactoryInput) (history.Command, error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, &domain.LookupError{Kind: domain.LookupCommand, Name: name}
	}
	return factory(in)
}
