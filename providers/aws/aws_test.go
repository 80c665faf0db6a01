package aws

import (
	"context"
	"fmt"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu-catalog/catalog"
)

const p4dDoc = `{
  "product": {"attributes": {
    "instanceType": "p4d.24xlarge", "regionCode": "us-east-1",
    "vcpu": "96", "memory": "1152 GiB", "gpu": "8", "storage": "8 x 1000 SSD"
  }},
  "terms": {"OnDemand": {"X": {"priceDimensions": {"X.Y": {"pricePerUnit": {"USD": "32.7726000000"}}}}}}
}`

const g4dnDoc = `{
  "product": {"attributes": {
    "instanceType": "g4dn.xlarge", "regionCode": "us-east-1",
    "vcpu": "4", "memory": "16 GiB", "gpu": "1", "storage": "125 GB NVMe SSD"
  }},
  "terms": {"OnDemand": {"X": {"priceDimensions": {"X.Y": {"pricePerUnit": {"USD": "0.5260000000"}}}}}}
}`

const c5Doc = `{
  "product": {"attributes": {
    "instanceType": "c5.large", "regionCode": "us-east-1",
    "vcpu": "2", "memory": "4 GiB", "storage": "EBS only"
  }},
  "terms": {"OnDemand": {"X": {"priceDimensions": {"X.Y": {"pricePerUnit": {"USD": "0.0850000000"}}}}}}
}`

const unknownFamilyDoc = `{
  "product": {"attributes": {
    "instanceType": "z9.xlarge", "regionCode": "us-east-1",
    "vcpu": "8", "memory": "32 GiB", "gpu": "1", "storage": "EBS only"
  }},
  "terms": {"OnDemand": {"X": {"priceDimensions": {"X.Y": {"pricePerUnit": {"USD": "1.0000000000"}}}}}}
}`

type fakeProducts struct {
	pages     map[string]*pricing.GetProductsOutput
	lastInput *pricing.GetProductsInput
}

func (f *fakeProducts) GetProducts(ctx context.Context, in *pricing.GetProductsInput, _ ...func(*pricing.Options)) (*pricing.GetProductsOutput, error) {
	f.lastInput = in
	out, ok := f.pages[awssdk.ToString(in.NextToken)]
	if !ok {
		return nil, fmt.Errorf("unexpected page token %q", awssdk.ToString(in.NextToken))
	}
	return out, nil
}

func TestCollectPaginatesAndFilters(t *testing.T) {
	assert := assert.New(t)

	fake := &fakeProducts{pages: map[string]*pricing.GetProductsOutput{
		"": {
			PriceList: []string{p4dDoc, c5Doc},
			NextToken: awssdk.String("t1"),
		},
		"t1": {
			PriceList: []string{g4dnDoc, unknownFamilyDoc},
		},
	}}

	c := &Collector{client: fake}
	records, err := c.Collect(context.Background())
	require.NoError(t, err)

	// Two GPU instances survive; the CPU-only and unknown-family documents
	// are dropped. Sorted by ascending price.
	require.Len(t, records, 2)

	g4dn := records[0]
	assert.Equal("g4dn.xlarge", g4dn.InstanceName)
	assert.Equal("us-east-1", g4dn.Location)
	assert.Equal("0.526", g4dn.Price.String())
	assert.Equal(1, g4dn.GPUCount)
	assert.Equal("T4", g4dn.GPUName)
	assert.Equal(16.0, g4dn.GPUMemory)
	assert.Equal(catalog.VendorNVIDIA, g4dn.GPUVendor)
	assert.Equal(4, g4dn.CPUCount)
	assert.Equal(16.0, g4dn.Memory)
	assert.Nil(g4dn.DiskSize)

	p4d := records[1]
	assert.Equal("p4d.24xlarge", p4d.InstanceName)
	assert.Equal("A100", p4d.GPUName)
	assert.Equal(8, p4d.GPUCount)
	assert.Equal(40.0, p4d.GPUMemory)
	require.NotNil(t, p4d.DiskSize)
	assert.Equal(8000.0, *p4d.DiskSize)
}

func TestCollectScopesRegionFilter(t *testing.T) {
	fake := &fakeProducts{pages: map[string]*pricing.GetProductsOutput{
		"": {PriceList: nil},
	}}

	c := &Collector{region: "eu-west-1", client: fake}
	_, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, fake.lastInput)

	found := false
	for _, f := range fake.lastInput.Filters {
		if awssdk.ToString(f.Field) == "regionCode" && awssdk.ToString(f.Value) == "eu-west-1" {
			found = true
		}
	}
	assert.True(t, found, "regionCode filter missing")
}

func TestProductRecordSkipsDegenerateDocuments(t *testing.T) {
	assert := assert.New(t)

	_, ok := productRecord(c5Doc)
	assert.False(ok, "cpu-only instance kept")

	_, ok = productRecord(unknownFamilyDoc)
	assert.False(ok, "unknown family kept")

	_, ok = productRecord(`{not json`)
	assert.False(ok, "bad json kept")

	zeroPrice := `{
	  "product": {"attributes": {"instanceType": "g5.xlarge", "gpu": "1", "vcpu": "4", "memory": "16 GiB"}},
	  "terms": {"OnDemand": {"X": {"priceDimensions": {"X.Y": {"pricePerUnit": {"USD": "0.0000000000"}}}}}}
	}`
	_, ok = productRecord(zeroPrice)
	assert.False(ok, "zero-price document kept")
}

func TestParseStorage(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(8000.0, parseStorage("8 x 1000 SSD"))
	assert.Equal(3800.0, parseStorage("2 x 1900 NVMe SSD"))
	assert.Equal(0.0, parseStorage("EBS only"))
	assert.Equal(0.0, parseStorage(""))
}
