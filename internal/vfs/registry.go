package vfs

import (
	"fmt"
	"sync"
)

// Closer is implemented by providers that hold releasable resources
// (remote sessions). The local provider is stateless and does not.
type Closer interface {
	Close() error
}

// Registry resolves handles to live providers. A handle stays valid for the
// lifetime of every operation referencing it; resolving a handle that was
// unregistered (disconnected) fails fast with a connectivity error, never a
// silent no-op.
type Registry struct {
	mu        sync.RWMutex
	providers map[Handle]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Handle]Provider)}
}

// Register adds a provider under its own handle. Registering the same handle
// twice replaces the previous provider.
func (r *Registry) Register(p Provider) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Handle()] = p
	return p.Handle()
}

// Get resolves a handle to its provider.
func (r *Registry) Get(h Handle) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[h]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", h, ErrConnectivity)
	}
	return p, nil
}

// Unregister removes a provider and closes it if it holds resources.
// In-flight operations against the handle observe connectivity errors.
func (r *Registry) Unregister(h Handle) error {
	r.mu.Lock()
	p, ok := r.providers[h]
	delete(r.providers, h)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if c, isCloser := p.(Closer); isCloser {
		return c.Close()
	}
	return nil
}

// Handles returns the currently registered handles.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.providers))
	for h := range r.providers {
		out = append(out, h)
	}
	return out
}
