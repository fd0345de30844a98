package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownProvider is returned when a requested provider name is not registered.
var ErrUnknownProvider = errors.New("provider: unknown provider") //nolint:gochecknoglobals // sentinel error

// Factory creates a Service from settings.
type Factory func(settings Settings) (Service, error)

// Registry manages provider factories by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for a provider name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a provider service by name.
func (r *Registry) Create(name string, settings Settings) (Service, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider.Registry.Create(%q): %w", name, ErrUnknownProvider)
	}

	svc, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("provider.Registry.Create(%q): %w", name, err)
	}

	return svc, nil
}

// Available returns registered provider names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
