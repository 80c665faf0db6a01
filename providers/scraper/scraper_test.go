package scraper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu-catalog/catalog"
)

const sampleResponse = `{
  "gpus": [
    {"name": "H100", "memory": 80, "count": 8, "price": 25.00, "location": "US", "cpu": 176, "ram": 1024, "disk": 512, "spot": false, "vendor": "NVIDIA"},
    {"name": "A100", "memory": 40, "count": 1, "price": 1.95, "location": "US", "cpu": 12, "ram": 120, "spot": false, "vendor": "NVIDIA"}
  ]
}`

func TestParseListings(t *testing.T) {
	listings, err := ParseListings(sampleResponse)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "H100", listings[0].Name)
	assert.Equal(t, 8, listings[0].Count)
	assert.Equal(t, 25.00, listings[0].Price)
	require.NotNil(t, listings[0].Disk)
	assert.Equal(t, 512.0, *listings[0].Disk)
	assert.Nil(t, listings[1].Disk)
}

func TestParseListingsStripsCodeFence(t *testing.T) {
	fenced := "```json\n" + sampleResponse + "\n```"
	listings, err := ParseListings(fenced)
	require.NoError(t, err)
	assert.Len(t, listings, 2)
}

func TestParseListingsRejectsProse(t *testing.T) {
	_, err := ParseListings("Sure! Here are the GPUs you asked for.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse model response")
}

func TestToRecordsMergesSpotIntoOnDemand(t *testing.T) {
	listings := []Listing{
		{Name: "RTX 4090", Count: 1, Price: 0.70, Location: "EU", CPU: 8, RAM: 32, Vendor: "NVIDIA"},
		{Name: "RTX 4090", Count: 1, Price: 0.35, Location: "EU", CPU: 8, RAM: 32, Spot: true, Vendor: "NVIDIA"},
	}

	recs := ToRecords("genesiscloud", listings)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "RTX 4090-1x", rec.InstanceName)
	assert.True(t, rec.Price.Equal(decimal.NewFromFloat(0.70)))
	require.NotNil(t, rec.SpotPrice)
	assert.True(t, rec.SpotPrice.Equal(decimal.NewFromFloat(0.35)))
}

func TestToRecordsKeepsSpotOnlyListings(t *testing.T) {
	listings := []Listing{
		{Name: "A100", Count: 2, Price: 1.10, Location: "EU", Spot: true, Vendor: "NVIDIA"},
	}

	recs := ToRecords("genesiscloud", listings)
	require.Len(t, recs, 1)

	// Spot-only offers keep their price in both columns.
	assert.True(t, recs[0].Price.Equal(decimal.NewFromFloat(1.10)))
	require.NotNil(t, recs[0].SpotPrice)
	assert.True(t, recs[0].SpotPrice.Equal(decimal.NewFromFloat(1.10)))
}

func TestToRecordsVendorMapping(t *testing.T) {
	recs := ToRecords("scaleway", []Listing{
		{Name: "MI300X", Count: 1, Price: 3, Location: "Paris", Vendor: "AMD"},
		{Name: "H100", Count: 1, Price: 3, Location: "Paris", Vendor: "NVIDIA"},
		{Name: "L40", Count: 1, Price: 1, Location: "Paris"},
	})
	require.Len(t, recs, 3)

	assert.Equal(t, catalog.VendorAMD, recs[0].GPUVendor)
	assert.Equal(t, catalog.VendorNVIDIA, recs[1].GPUVendor)
	// Unspecified vendors default to NVIDIA, matching the prompts.
	assert.Equal(t, catalog.VendorNVIDIA, recs[2].GPUVendor)
}

func TestPageCollectorNames(t *testing.T) {
	ex := NewExtractor(Config{})

	assert.Equal(t, "crusoe", NewCrusoe(ex).Name())
	assert.Equal(t, "genesiscloud", NewGenesisCloud(ex).Name())
	assert.Equal(t, "seeweb", NewSeeweb(ex).Name())
	assert.Equal(t, "scaleway", NewScaleway(ex).Name())
}

func TestExtractorRequiresAPIKey(t *testing.T) {
	ex := NewExtractor(Config{})
	_, err := ex.chatModel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
