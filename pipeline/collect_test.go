package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu-catalog/catalog"
	"gpu-catalog/providers"
)

type stubCollector struct {
	name    string
	records []catalog.OfferRecord
	err     error
	block   bool // wait for cancellation instead of returning
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func record(provider, instance string, price float64) catalog.OfferRecord {
	return catalog.OfferRecord{
		Provider:     provider,
		InstanceName: instance,
		Location:     "US",
		Price:        decimal.NewFromFloat(price),
		GPUCount:     1,
		GPUName:      "H100",
		GPUMemory:    80,
		GPUVendor:    catalog.VendorNVIDIA,
		CPUCount:     8,
		Memory:       64,
		Available:    true,
	}
}

func TestCollectAllKeepsCollectorOrder(t *testing.T) {
	assert := assert.New(t)

	collectors := []providers.Collector{
		&stubCollector{name: "crusoe", records: []catalog.OfferRecord{record("crusoe", "H100-1x", 3.95)}},
		&stubCollector{name: "linode", records: []catalog.OfferRecord{record("linode", "g1", 1.50)}},
	}

	outcomes := CollectAll(context.Background(), collectors, zerolog.Nop())

	require.Len(t, outcomes, 2)
	assert.Equal("crusoe", outcomes[0].Provider)
	assert.Equal("linode", outcomes[1].Provider)
	assert.Len(outcomes[0].Records, 1)
	assert.NoError(outcomes[0].Err)
}

func TestCollectAllWrapsFailuresPerProvider(t *testing.T) {
	assert := assert.New(t)

	cause := errors.New("api down")
	collectors := []providers.Collector{
		&stubCollector{name: "crusoe", records: []catalog.OfferRecord{record("crusoe", "H100-1x", 3.95)}},
		&stubCollector{name: "seeweb", err: cause},
	}

	outcomes := CollectAll(context.Background(), collectors, zerolog.Nop())

	assert.NoError(outcomes[0].Err)

	var collectErr *providers.CollectError
	require.ErrorAs(t, outcomes[1].Err, &collectErr)
	assert.Equal("seeweb", collectErr.Provider)
	assert.True(errors.Is(outcomes[1].Err, cause))
}

func TestCollectAllCancellationSurfacesAsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	collectors := []providers.Collector{
		&stubCollector{name: "linode", records: []catalog.OfferRecord{record("linode", "g1", 1.50)}},
		&stubCollector{name: "latitude", block: true},
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	outcomes := CollectAll(ctx, collectors, zerolog.Nop())

	// The cancelled collector reports failure rather than vanishing, so the
	// barrier still sees it.
	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	require.Error(t, outcomes[1].Err)
	assert.True(t, errors.Is(outcomes[1].Err, context.Canceled))
}

func TestStageAndLoadStagedRoundTrip(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	outcomes := []Outcome{
		{Provider: "crusoe", Records: []catalog.OfferRecord{record("crusoe", "H100-1x", 3.95)}},
		{Provider: "seeweb", Err: errors.New("api down")},
		{Provider: "linode", Records: []catalog.OfferRecord{record("linode", "g1", 1.50)}},
	}

	require.NoError(t, Stage(dir, outcomes))

	// Failed providers stage nothing.
	_, err := LoadStaged(dir, []string{"seeweb"})
	require.Error(t, err)
	assert.Contains(err.Error(), "seeweb")

	staged, err := LoadStaged(dir, []string{"crusoe", "linode"})
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.Equal("crusoe", staged[0].Provider)
	require.Len(t, staged[0].Records, 1)
	assert.Equal("H100-1x", staged[0].Records[0].InstanceName)
	assert.True(staged[0].Records[0].Price.Equal(decimal.NewFromFloat(3.95)))
}
