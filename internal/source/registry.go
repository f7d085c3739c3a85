package source

import (
	"fmt"
	"sort"

	"WeeklyIntel/internal/ports"
)

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]ports.Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src ports.Source) {
	if r.sources == nil {
		r.sources = map[string]ports.Source{}
	}
	r.sources[src.Name()] = src
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Source, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// Names lists registered sources in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sources returns the registered sources ordered by name.
func (r *Registry) Sources() []ports.Source {
	names := r.Names()
	out := make([]ports.Source, 0, len(names))
	for _, name := range names {
		out = append(out, r.sources[name])
	}
	return out
}

// Len reports how many sources are registered.
func (r *Registry) Len() int {
	return len(r.sources)
}
