// Package registry maps engine names to search module constructors.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// Factory builds a fresh search module for one job.
type Factory func(cfg harvest.ModuleConfig) (harvest.SearchModule, error)

// Registry is populated at start-up and implements harvest.Loader.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Names are case-insensitive.
func (r *Registry) Register(name string, factory Factory) error {
	key := normalize(name)
	if key == "" {
		return fmt.Errorf("register module: name is required")
	}
	if factory == nil {
		return fmt.Errorf("register module %q: nil factory", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("register module %q: already registered", key)
	}
	r.factories[key] = factory
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Load builds the module registered for engine, configured from job.
func (r *Registry) Load(engine string, job harvest.Job) (harvest.SearchModule, error) {
	key := normalize(engine)
	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", harvest.ErrUnknownModule, engine)
	}
	module, err := factory(job.Config())
	if err != nil {
		return nil, fmt.Errorf("build module %q: %w", key, err)
	}
	return module, nil
}

// Names lists registered engines in sorted order.
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

// Has reports whether engine is registered.
func (r *Registry) Has(engine string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[normalize(engine)]
	return ok
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
