// Package capability provides the reference registry of executable
// capabilities.  The control loop treats the registry as an opaque
// collaborator: it describes what is available to the reasoning oracle and
// dispatches accepted actions.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnregistered is returned when an action names a capability the registry
// does not know.  The error is fatal to that action attempt only - the loop
// records it and re-enters reasoning.
var ErrUnregistered = errors.New("capability: not registered")

// Handler executes one capability invocation.
type Handler func(ctx context.Context, parameters map[string]interface{}) (interface{}, error)

// Descriptor is the serializable description advertised to the reasoning
// oracle.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type entry struct {
	descriptor Descriptor
	handler    Handler
}

// Registry is a concurrency-safe capability table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds or replaces a capability.
func (r *Registry) Register(name, description string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = &entry{
		descriptor: Descriptor{Name: name, Description: description},
		handler:    handler,
	}
}

// Describe lists registered capabilities in registration order.
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].descriptor)
	}
	return out
}

// Execute dispatches a capability by name.  Handler errors are returned
// as-is; unknown names yield ErrUnregistered.
func (r *Registry) Execute(ctx context.Context, name string, parameters map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	item, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregistered, name)
	}
	return item.handler(ctx, parameters)
}
