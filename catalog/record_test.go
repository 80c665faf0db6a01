package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingModes(t *testing.T) {
	assert := assert.New(t)

	ondemand := OfferRecord{Provider: "aws", InstanceName: "p5.48xlarge", Price: decimal.NewFromInt(98)}
	assert.Equal([]PricingMode{ModeOnDemand}, ondemand.PricingModes())

	spot := decimal.RequireFromString("30.5")
	both := OfferRecord{Provider: "aws", InstanceName: "p5.48xlarge", Price: decimal.NewFromInt(98), SpotPrice: &spot}
	assert.Equal([]PricingMode{ModeOnDemand, ModeSpot}, both.PricingModes())
}

func TestOfferKeys(t *testing.T) {
	spot := decimal.RequireFromString("0.5")
	rec := OfferRecord{
		Provider:     "genesiscloud",
		InstanceName: "RTX 4090-1x",
		Location:     "EU",
		Price:        decimal.NewFromInt(1),
		SpotPrice:    &spot,
	}

	keys := rec.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, "genesiscloud/RTX 4090-1x/EU/ondemand", keys[0].String())
	assert.Equal(t, "genesiscloud/RTX 4090-1x/EU/spot", keys[1].String())
}

func TestSortOffers(t *testing.T) {
	recs := []OfferRecord{
		{Provider: "a", InstanceName: "z", Location: "US", Price: decimal.NewFromInt(5)},
		{Provider: "a", InstanceName: "b", Location: "EU", Price: decimal.NewFromInt(1)},
		{Provider: "a", InstanceName: "a", Location: "EU", Price: decimal.NewFromInt(1)},
		{Provider: "a", InstanceName: "a", Location: "AP", Price: decimal.NewFromInt(1)},
	}

	SortOffers(recs)

	assert.Equal(t, "a", recs[0].InstanceName)
	assert.Equal(t, "AP", recs[0].Location)
	assert.Equal(t, "a", recs[1].InstanceName)
	assert.Equal(t, "EU", recs[1].Location)
	assert.Equal(t, "b", recs[2].InstanceName)
	assert.Equal(t, "z", recs[3].InstanceName)
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]ProviderCatalog{
		{Provider: "linode"},
		{Provider: "linode"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate provider")
}

func TestCatalogProvidersSorted(t *testing.T) {
	c, err := NewCatalog([]ProviderCatalog{
		{Provider: "seeweb", Records: []OfferRecord{{Provider: "seeweb", InstanceName: "x", Price: decimal.NewFromInt(1)}}},
		{Provider: "crusoe"},
		{Provider: "linode"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"crusoe", "linode", "seeweb"}, c.Providers())
	assert.Equal(t, 1, c.TotalRecords())

	all := c.All()
	require.Len(t, all, 1)
	assert.Equal(t, "seeweb", all[0].Provider)
}
