package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"gpu-catalog/catalog"
)

// CompletenessError reports an incomplete collection: the barrier saw fewer
// successful provider catalogs than configured providers. Always fatal to
// the run; a catalog missing a provider would silently bias every downstream
// price comparison.
type CompletenessError struct {
	Failed  map[string]error // provider -> its collection failure
	Missing []string         // providers with no outcome at all
}

func (e *CompletenessError) Error() string {
	var parts []string
	if len(e.Failed) > 0 {
		names := make([]string, 0, len(e.Failed))
		for name := range e.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		parts = append(parts, fmt.Sprintf("failed: %s", strings.Join(names, ", ")))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing: %s", strings.Join(e.Missing, ", ")))
	}
	return "incomplete collection (" + strings.Join(parts, "; ") + ")"
}

// Providers returns every failed or missing provider id, sorted.
func (e *CompletenessError) Providers() []string {
	names := make([]string, 0, len(e.Failed)+len(e.Missing))
	for name := range e.Failed {
		names = append(names, name)
	}
	names = append(names, e.Missing...)
	sort.Strings(names)
	return names
}

// Barrier applies the all-or-nothing completeness gate: every required
// provider must have exactly one successful outcome. Strict AND, never a
// best-effort union.
func Barrier(required []string, outcomes []Outcome) error {
	byProvider := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byProvider[o.Provider] = o
	}

	cerr := &CompletenessError{Failed: make(map[string]error)}
	for _, provider := range required {
		o, ok := byProvider[provider]
		if !ok {
			cerr.Missing = append(cerr.Missing, provider)
			continue
		}
		if o.Err != nil {
			cerr.Failed[provider] = o.Err
		}
	}
	sort.Strings(cerr.Missing)

	if len(cerr.Failed) > 0 || len(cerr.Missing) > 0 {
		return cerr
	}
	return nil
}

// Assemble runs the barrier and, when it holds, re-reads the staged files
// into one catalog.
func Assemble(dir string, required []string, outcomes []Outcome) (*catalog.Catalog, error) {
	if len(required) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	if err := Barrier(required, outcomes); err != nil {
		return nil, err
	}
	staged, err := LoadStaged(dir, required)
	if err != nil {
		return nil, err
	}
	return catalog.NewCatalog(staged)
}
