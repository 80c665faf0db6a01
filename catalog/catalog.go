package catalog

import (
	"fmt"
	"sort"
)

// ProviderCatalog is one collector's full output for a run. Records are owned
// by the collector until handed to the assembler and immutable after that.
type ProviderCatalog struct {
	Provider string        `json:"provider"`
	Records  []OfferRecord `json:"records"`
}

// Catalog is the assembled union of all provider catalogs for one run:
// exactly one entry per configured provider, keyed by provider id.
type Catalog struct {
	providers map[string]ProviderCatalog
}

// NewCatalog assembles provider catalogs into one Catalog. Duplicate provider
// entries are a caller bug and rejected.
func NewCatalog(provs []ProviderCatalog) (*Catalog, error) {
	c := &Catalog{providers: make(map[string]ProviderCatalog, len(provs))}
	for _, p := range provs {
		if p.Provider == "" {
			return nil, fmt.Errorf("provider catalog with empty provider id")
		}
		if _, ok := c.providers[p.Provider]; ok {
			return nil, fmt.Errorf("duplicate provider catalog: %s", p.Provider)
		}
		c.providers[p.Provider] = p
	}
	return c, nil
}

// Providers returns provider ids in lexicographic order.
func (c *Catalog) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns one provider's catalog.
func (c *Catalog) Get(provider string) (ProviderCatalog, bool) {
	p, ok := c.providers[provider]
	return p, ok
}

// TotalRecords counts records across all providers.
func (c *Catalog) TotalRecords() int {
	total := 0
	for _, p := range c.providers {
		total += len(p.Records)
	}
	return total
}

// All returns every record in provider order. Used by the validator and the
// history sink; the slice is a copy, the records are shared.
func (c *Catalog) All() []OfferRecord {
	records := make([]OfferRecord, 0, c.TotalRecords())
	for _, name := range c.Providers() {
		records = append(records, c.providers[name].Records...)
	}
	return records
}
