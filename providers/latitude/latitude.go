// Package latitude collects bare-metal GPU plans from latitude.sh. Pricing
// lives in the Next.js data payload behind the public pricing page; the
// build id embedded in the page keys the payload URL.
package latitude

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gpu-catalog/catalog"
	"gpu-catalog/pkg/platform"
)

const pricingURL = "https://www.latitude.sh/pricing"

var (
	buildIDRe   = regexp.MustCompile(`"buildId":"([^"]+)"`)
	gpuMemoryRe = regexp.MustCompile(`(\d+)GB`)
)

type Collector struct {
	http    *platform.HTTPClient
	pageURL string
	dataURL string // format string taking the build id
}

func New() *Collector {
	return &Collector{
		http:    platform.NewHTTPClient(30 * time.Second),
		pageURL: pricingURL,
		dataURL: "https://www.latitude.sh/_next/data/%s/en/pricing.json",
	}
}

func (c *Collector) Name() string { return "latitude" }

type pricingData struct {
	PageProps struct {
		PlansData []struct {
			Attributes planAttributes `json:"attributes"`
		} `json:"plansData"`
	} `json:"pageProps"`
}

type planAttributes struct {
	Name  string `json:"name"`
	Specs struct {
		CPU struct {
			Cores int `json:"cores"`
			Count int `json:"count"`
		} `json:"cpu"`
		Memory struct {
			Total float64 `json:"total"`
		} `json:"memory"`
		GPU struct {
			Count int    `json:"count"`
			Type  string `json:"type"`
		} `json:"gpu"`
	} `json:"specs"`
	Regions []planRegion `json:"regions"`
}

type planRegion struct {
	Pricing struct {
		USD struct {
			Hour float64 `json:"hour"`
		} `json:"USD"`
	} `json:"pricing"`
	Locations struct {
		Available []string `json:"available"`
	} `json:"locations"`
}

func (c *Collector) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	page, err := c.http.GetText(ctx, c.pageURL)
	if err != nil {
		return nil, err
	}

	buildID := extractBuildID(page)
	if buildID == "" {
		return nil, fmt.Errorf("pricing page has no Next.js build id")
	}

	var data pricingData
	if err := c.http.GetJSON(ctx, fmt.Sprintf(c.dataURL, buildID), &data); err != nil {
		return nil, err
	}

	var records []catalog.OfferRecord
	for _, plan := range data.PageProps.PlansData {
		for _, region := range plan.Attributes.Regions {
			if rec, ok := planRecord(plan.Attributes, region); ok {
				records = append(records, rec)
			}
		}
	}

	catalog.SortOffers(records)
	return records, nil
}

func planRecord(plan planAttributes, region planRegion) (catalog.OfferRecord, bool) {
	if len(region.Locations.Available) == 0 {
		return catalog.OfferRecord{}, false
	}

	cpuCount := plan.Specs.CPU.Count
	if cpuCount == 0 {
		cpuCount = 1
	}

	var vendor catalog.GPUVendor
	gpuName := plan.Specs.GPU.Type
	if strings.Contains(gpuName, "NVIDIA") {
		vendor = catalog.VendorNVIDIA
	}

	var gpuMemory float64
	if m := gpuMemoryRe.FindStringSubmatch(gpuName); m != nil {
		gpuMemory, _ = strconv.ParseFloat(m[1], 64)
	}

	return catalog.OfferRecord{
		Provider:     "latitude",
		InstanceName: plan.Name,
		Location:     region.Locations.Available[0],
		Price:        decimal.NewFromFloat(region.Pricing.USD.Hour),
		GPUCount:     plan.Specs.GPU.Count,
		GPUName:      gpuName,
		GPUMemory:    gpuMemory,
		GPUVendor:    vendor,
		CPUCount:     plan.Specs.CPU.Cores * cpuCount,
		Memory:       plan.Specs.Memory.Total,
		Available:    true,
	}, true
}

func extractBuildID(html string) string {
	m := buildIDRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return m[1]
}
