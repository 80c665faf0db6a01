// Package providers defines the Collector contract and the registry that
// maps provider ids to their collectors.
package providers

import (
	"context"
	"fmt"
	"sort"

	"gpu-catalog/catalog"
)

// Collector fetches one provider's GPU offerings and normalizes them to the
// canonical record schema. Implementations own their network calls and
// buffers; they never share state with other collectors.
//
// Zero records with a nil error is a valid result. A cancelled context must
// surface as an error, never as a silently empty catalog.
type Collector interface {
	// Name returns the provider id this collector handles
	Name() string

	// Collect fetches and normalizes the provider's current offerings
	Collect(ctx context.Context) ([]catalog.OfferRecord, error)
}

// CollectError wraps a single provider's collection failure. The fan-out
// layer produces these so barrier diagnostics always name the provider.
type CollectError struct {
	Provider string
	Err      error
}

func (e *CollectError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Provider, e.Err)
}

func (e *CollectError) Unwrap() error {
	return e.Err
}

// Registry provides centralized collector registration
type Registry struct {
	collectors map[string]Collector
	aliases    map[string]string // alias -> canonical provider id
}

// NewRegistry creates an empty collector registry
func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]Collector),
		aliases:    make(map[string]string),
	}
}

// Register adds a collector to the registry
func (r *Registry) Register(c Collector) {
	r.collectors[c.Name()] = c
}

// RegisterAlias creates an alias for a provider id
func (r *Registry) RegisterAlias(alias, canonical string) {
	r.aliases[alias] = canonical
}

// Get retrieves a collector by provider id or alias
func (r *Registry) Get(provider string) Collector {
	if c, ok := r.collectors[provider]; ok {
		return c
	}
	if canonical, ok := r.aliases[provider]; ok {
		if c, ok := r.collectors[canonical]; ok {
			return c
		}
	}
	return nil
}

// Names returns registered provider ids in lexicographic order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a list of provider ids (or aliases) to collectors, failing on
// the first unknown id so a typoed provider never silently shrinks a run.
func (r *Registry) Resolve(providerIDs []string) ([]Collector, error) {
	collectors := make([]Collector, 0, len(providerIDs))
	for _, id := range providerIDs {
		c := r.Get(id)
		if c == nil {
			return nil, fmt.Errorf("unknown provider: %s", id)
		}
		collectors = append(collectors, c)
	}
	return collectors, nil
}
