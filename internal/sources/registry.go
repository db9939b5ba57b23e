package sources

import (
	"fmt"
	"net/http"

	"github.com/watariapp/watari/internal/shared"
)

// Registry holds the configured catalogue sources keyed by ID.
//
// It is built once from configuration and injected into consumers; there is no
// package-level registry.
type Registry struct {
	byID  map[string]Source
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Source)}
}

// NewRegistryFromConfig builds a registry of HTTP sources from configuration.
func NewRegistryFromConfig(configs []shared.SourceConfig, client *http.Client) *Registry {
	r := NewRegistry()
	for _, sc := range configs {
		r.Register(NewHTTPSource(sc, client))
	}
	return r
}

// Register adds a source, replacing any source with the same ID.
func (r *Registry) Register(s Source) {
	if _, ok := r.byID[s.ID()]; !ok {
		r.order = append(r.order, s.ID())
	}
	r.byID[s.ID()] = s
}

// Get returns the source with the given ID.
func (r *Registry) Get(id string) (Source, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSourceUnknown, id)
	}
	return s, nil
}

// Resolve maps the given IDs to sources, preserving order and skipping
// unknown IDs.
func (r *Registry) Resolve(ids []string) []Source {
	out := make([]Source, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// All returns every registered source in registration order.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
