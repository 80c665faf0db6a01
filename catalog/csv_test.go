package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() OfferRecord {
	spot := decimal.RequireFromString("1.2")
	disk := 512.0
	return OfferRecord{
		Provider:     "crusoe",
		InstanceName: "H100-8x",
		Location:     "US",
		Price:        decimal.RequireFromString("25.00"),
		SpotPrice:    &spot,
		GPUCount:     8,
		GPUName:      "H100",
		GPUMemory:    80,
		GPUVendor:    VendorNVIDIA,
		CPUCount:     176,
		Memory:       1024,
		DiskSize:     &disk,
		Available:    true,
	}
}

func TestWriteReadCSV(t *testing.T) {
	assert := assert.New(t)

	recs := []OfferRecord{
		testRecord(),
		{
			Provider:     "linode",
			InstanceName: "A100-1x",
			Location:     "US",
			Price:        decimal.RequireFromString("3.99"),
			GPUCount:     1,
			GPUName:      "A100",
			GPUMemory:    80,
			GPUVendor:    VendorNVIDIA,
			CPUCount:     8,
			Memory:       64,
			Available:    true,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal("crusoe", got[0].Provider)
	assert.True(got[0].Price.Equal(decimal.RequireFromString("25.00")))
	require.NotNil(t, got[0].SpotPrice)
	assert.True(got[0].SpotPrice.Equal(decimal.RequireFromString("1.2")))
	require.NotNil(t, got[0].DiskSize)
	assert.Equal(512.0, *got[0].DiskSize)

	// Optionals absent on the second record stay absent after a round trip.
	assert.Nil(got[1].SpotPrice)
	assert.Nil(got[1].DiskSize)
	assert.Equal(VendorNVIDIA, got[1].GPUVendor)
}

func TestWriteCSVHeaderOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, strings.Join(Columns, ","), header)
}

func TestReadCSVRejectsWrongHeader(t *testing.T) {
	in := "provider,instance_name,price\nfoo,bar,1.0\n"
	_, err := ReadCSV(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestReadCSVRejectsEmptyFile(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header")
}

func TestReadCSVRejectsBadPrice(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []OfferRecord{testRecord()}))

	corrupted := strings.Replace(buf.String(), "25.00", "not-a-price", 1)
	_, err := ReadCSV(strings.NewReader(corrupted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse price")
}
