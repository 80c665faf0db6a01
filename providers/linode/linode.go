// Package linode collects GPU instance types from the Linode (Akamai Cloud)
// public API.
package linode

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gpu-catalog/catalog"
	"gpu-catalog/pkg/platform"
	"gpu-catalog/pkg/units"
)

const typesURL = "https://api.linode.com/v4/linode/types"

// gpuMemoryGB maps Linode's GPU models to their memory size; the types API
// does not expose it.
var gpuMemoryGB = map[string]float64{
	"RTX6000": 24,
	"RTX4000": 20,
}

// label form: "Dedicated 32GB + RTX6000 GPU x1"
var labelModelRe = regexp.MustCompile(`\+\s*([A-Za-z0-9 ]+?)\s+GPU`)

type Collector struct {
	http *platform.HTTPClient
	url  string
}

func New() *Collector {
	return &Collector{
		http: platform.NewHTTPClient(30 * time.Second),
		url:  typesURL,
	}
}

func (c *Collector) Name() string { return "linode" }

// instanceType is the subset of the Linode types API response we map.
// Memory and disk are reported in MB.
type instanceType struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Class  string `json:"class"`
	VCPUs  int    `json:"vcpus"`
	Memory int    `json:"memory"`
	Disk   int    `json:"disk"`
	GPUs   int    `json:"gpus"`
	Price  struct {
		Hourly  float64 `json:"hourly"`
		Monthly float64 `json:"monthly"`
	} `json:"price"`
}

type typesResponse struct {
	Data []instanceType `json:"data"`
}

func (c *Collector) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	var resp typesResponse
	if err := c.http.GetJSON(ctx, c.url, &resp); err != nil {
		return nil, err
	}

	var records []catalog.OfferRecord
	for _, t := range resp.Data {
		if t.Class != "gpu" {
			continue
		}

		model := gpuModelFromLabel(t.Label)
		disk := units.MBToGB(float64(t.Disk))
		records = append(records, catalog.OfferRecord{
			Provider:     c.Name(),
			InstanceName: t.ID,
			Location:     "US",
			Price:        decimal.NewFromFloat(t.Price.Hourly),
			GPUCount:     t.GPUs,
			GPUName:      model,
			GPUMemory:    gpuMemoryGB[model],
			GPUVendor:    catalog.VendorNVIDIA,
			CPUCount:     t.VCPUs,
			Memory:       units.MBToGB(float64(t.Memory)),
			DiskSize:     &disk,
			Available:    true,
		})
	}

	catalog.SortOffers(records)
	return records, nil
}

func gpuModelFromLabel(label string) string {
	m := labelModelRe.FindStringSubmatch(label)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
