// Package aws collects GPU instance offers from the AWS Price List API.
// The API reports vCPU, memory and GPU counts per instance type but not the
// accelerator model, so model and memory come from a per-family table.
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/shopspring/decimal"

	"gpu-catalog/catalog"
)

// pricingRegion is where the Price List API itself is served, independent of
// the regions being priced.
const pricingRegion = "us-east-1"

type gpuSpec struct {
	Name     string
	MemoryGB float64
	Vendor   catalog.GPUVendor
}

// gpuSpecs maps an instance family to its accelerator.
var gpuSpecs = map[string]gpuSpec{
	"p3":   {Name: "V100", MemoryGB: 16, Vendor: catalog.VendorNVIDIA},
	"p3dn": {Name: "V100", MemoryGB: 32, Vendor: catalog.VendorNVIDIA},
	"p4d":  {Name: "A100", MemoryGB: 40, Vendor: catalog.VendorNVIDIA},
	"p4de": {Name: "A100", MemoryGB: 80, Vendor: catalog.VendorNVIDIA},
	"p5":   {Name: "H100", MemoryGB: 80, Vendor: catalog.VendorNVIDIA},
	"g4ad": {Name: "Radeon Pro V520", MemoryGB: 8, Vendor: catalog.VendorAMD},
	"g4dn": {Name: "T4", MemoryGB: 16, Vendor: catalog.VendorNVIDIA},
	"g5":   {Name: "A10G", MemoryGB: 24, Vendor: catalog.VendorNVIDIA},
	"g5g":  {Name: "T4g", MemoryGB: 16, Vendor: catalog.VendorNVIDIA},
	"g6":   {Name: "L4", MemoryGB: 24, Vendor: catalog.VendorNVIDIA},
	"g6e":  {Name: "L40S", MemoryGB: 48, Vendor: catalog.VendorNVIDIA},
	"gr6":  {Name: "L4", MemoryGB: 24, Vendor: catalog.VendorNVIDIA},
}

var storageRe = regexp.MustCompile(`(\d+)\s*x\s*(\d+)`)

type productsAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

type Collector struct {
	region string
	client productsAPI
}

// New returns a collector scoped to one priced region, or to every region
// when region is empty.
func New(region string) *Collector {
	return &Collector{region: region}
}

func (c *Collector) Name() string { return "aws" }

func (c *Collector) api(ctx context.Context) (productsAPI, error) {
	if c.client != nil {
		return c.client, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(pricingRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	c.client = pricing.NewFromConfig(cfg)
	return c.client, nil
}

func (c *Collector) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	client, err := c.api(ctx)
	if err != nil {
		return nil, err
	}

	filters := []types.Filter{
		termMatch("operatingSystem", "Linux"),
		termMatch("tenancy", "Shared"),
		termMatch("preInstalledSw", "NA"),
		termMatch("capacitystatus", "Used"),
	}
	if c.region != "" {
		filters = append(filters, termMatch("regionCode", c.region))
	}

	in := &pricing.GetProductsInput{
		ServiceCode:   awssdk.String("AmazonEC2"),
		FormatVersion: awssdk.String("aws_v1"),
		Filters:       filters,
	}

	var records []catalog.OfferRecord
	p := pricing.NewGetProductsPaginator(client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("get products: %w", err)
		}
		for _, doc := range out.PriceList {
			if rec, ok := productRecord(doc); ok {
				records = append(records, rec)
			}
		}
	}

	catalog.SortOffers(records)
	return records, nil
}

func termMatch(field, value string) types.Filter {
	return types.Filter{
		Field: awssdk.String(field),
		Type:  types.FilterTypeTermMatch,
		Value: awssdk.String(value),
	}
}

type priceListDoc struct {
	Product struct {
		Attributes map[string]string `json:"attributes"`
	} `json:"product"`
	Terms struct {
		OnDemand map[string]struct {
			PriceDimensions map[string]struct {
				PricePerUnit map[string]string `json:"pricePerUnit"`
			} `json:"priceDimensions"`
		} `json:"OnDemand"`
	} `json:"terms"`
}

// productRecord turns one price list document into an offer. Documents for
// instance types without GPUs, or for families not in gpuSpecs, are dropped.
func productRecord(raw string) (catalog.OfferRecord, bool) {
	var doc priceListDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return catalog.OfferRecord{}, false
	}

	attrs := doc.Product.Attributes
	gpuCount, err := strconv.Atoi(attrs["gpu"])
	if err != nil || gpuCount < 1 {
		return catalog.OfferRecord{}, false
	}

	instanceType := attrs["instanceType"]
	family, _, _ := strings.Cut(instanceType, ".")
	spec, ok := gpuSpecs[family]
	if !ok {
		return catalog.OfferRecord{}, false
	}

	price, ok := onDemandPrice(doc)
	if !ok {
		return catalog.OfferRecord{}, false
	}

	cpuCount, _ := strconv.Atoi(attrs["vcpu"])

	rec := catalog.OfferRecord{
		Provider:     "aws",
		InstanceName: instanceType,
		Location:     attrs["regionCode"],
		Price:        price,
		GPUCount:     gpuCount,
		GPUName:      spec.Name,
		GPUMemory:    spec.MemoryGB,
		GPUVendor:    spec.Vendor,
		CPUCount:     cpuCount,
		Memory:       parseMemory(attrs["memory"]),
		Available:    true,
	}

	if disk := parseStorage(attrs["storage"]); disk > 0 {
		rec.DiskSize = &disk
	}

	return rec, true
}

func onDemandPrice(doc priceListDoc) (decimal.Decimal, bool) {
	for _, term := range doc.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			usd, ok := dim.PricePerUnit["USD"]
			if !ok {
				continue
			}
			price, err := decimal.NewFromString(usd)
			if err != nil || price.IsZero() {
				continue
			}
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

// parseMemory reads the attribute form "768 GiB".
func parseMemory(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	gb, _ := strconv.ParseFloat(fields[0], 64)
	return gb
}

// parseStorage reads the attribute form "8 x 1000 SSD"; "EBS only" yields 0.
func parseStorage(s string) float64 {
	m := storageRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.ParseFloat(m[1], 64)
	size, _ := strconv.ParseFloat(m[2], 64)
	return n * size
}
