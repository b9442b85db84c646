package strategy

import (
	"fmt"
	"sync"

	"github.com/newthinker/quantbench/internal/core"
)

// Factory builds a fresh, uninitialised strategy.
type Factory func() Strategy

type entry struct {
	meta    Metadata
	factory Factory
}

// Registry is the closed set of strategies a deployment offers. Lookups
// of unregistered ids fail instead of falling back to a default.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	aliases map[string]string
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
		aliases: make(map[string]string),
	}
}

// Register adds a strategy under meta.ID.
func (r *Registry) Register(meta Metadata, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[meta.ID]; !exists {
		r.order = append(r.order, meta.ID)
	}
	r.entries[meta.ID] = entry{meta: meta, factory: factory}
}

// Alias makes alias resolve to an already registered id.
func (r *Registry) Alias(alias, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = target
}

// Resolve maps an id or alias to its canonical id.
func (r *Registry) Resolve(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[id]; ok {
		id = target
	}
	if _, ok := r.entries[id]; !ok {
		return "", core.WrapError(core.ErrStrategyUnknown, fmt.Errorf("strategy %q", id))
	}
	return id, nil
}

// Metadata returns the catalogue entry for id.
func (r *Registry) Metadata(id string) (Metadata, error) {
	canonical, err := r.Resolve(id)
	if err != nil {
		return Metadata{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[canonical].meta, nil
}

// New builds and initialises the strategy id with params layered over its
// defaults.
func (r *Registry) New(id string, params map[string]any) (Strategy, error) {
	canonical, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	e := r.entries[canonical]
	r.mu.RUnlock()

	s := e.factory()
	if err := s.Init(Config{Params: Merge(e.meta.DefaultParams(), params)}); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("strategy %s: %w", canonical, err))
	}
	return s, nil
}

// List returns catalogue entries in registration order.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].meta)
	}
	return out
}
