package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu-catalog/catalog"
)

type stubCollector struct {
	name string
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	return nil, nil
}

func TestRegistryResolvesAliases(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	r.Register(&stubCollector{name: "linode"})
	r.RegisterAlias("akamai", "linode")

	assert.NotNil(r.Get("linode"))
	assert.NotNil(r.Get("akamai"))
	assert.Nil(r.Get("nonexistent"))
}

func TestRegistryResolveFailsOnUnknownProvider(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubCollector{name: "linode"})

	_, err := r.Resolve([]string{"linode", "voltagepark"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voltagepark")
}

func TestDefaultRegistryWiresAllProviders(t *testing.T) {
	assert := assert.New(t)

	r := DefaultRegistry(Config{})

	want := []string{"aws", "crusoe", "genesiscloud", "latitude", "leadergpu", "linode", "scaleway", "seeweb"}
	assert.Equal(want, r.Names())

	collectors, err := r.Resolve(want)
	require.NoError(t, err)
	assert.Len(collectors, len(want))

	// Aliases resolve to the canonical collectors.
	assert.Equal(r.Get("linode"), r.Get("akamai"))
	assert.Equal(r.Get("genesiscloud"), r.Get("genesis"))
}

func TestCollectErrorNamesProvider(t *testing.T) {
	assert := assert.New(t)

	cause := errors.New("connection refused")
	err := &CollectError{Provider: "crusoe", Err: cause}

	assert.Contains(err.Error(), "crusoe")
	assert.True(errors.Is(err, cause))
}
