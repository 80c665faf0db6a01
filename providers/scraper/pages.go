// Per-provider page collectors. Each pairs a pricing page URL with the
// extraction prompt that encodes that page's quirks (currency, billing
// period, locations).

package scraper

import (
	"context"

	"gpu-catalog/catalog"
)

// =============================================================================
// Crusoe
// =============================================================================

type Crusoe struct{ ex *Extractor }

func NewCrusoe(ex *Extractor) *Crusoe { return &Crusoe{ex: ex} }

func (c *Crusoe) Name() string { return "crusoe" }

const crusoeURL = "https://crusoe.ai/cloud/"

const crusoePrompt = `Extract every GPU instance from the Crusoe Cloud pricing page. For each one provide:
1. GPU model name without vendor prefix (e.g. H100, A100)
2. GPU memory in GB (number)
3. Number of GPUs per instance (number)
4. Price per hour in USD (number)
5. Location: "US" (all Crusoe instances are in the US)
6. CPU core count (number)
7. System RAM in GB (number)
8. Disk size in GB if shown (number)

Rules:
- All numeric values must be numbers, not strings
- The vendor is always "NVIDIA"
- Use 0 for memory/cpu/ram values the page does not show

Return JSON of the form:
{"gpus": [{"name": "H100", "memory": 80, "count": 8, "price": 25.00, "location": "US", "cpu": 0, "ram": 0, "disk": 0, "spot": false, "vendor": "NVIDIA"}]}`

func (c *Crusoe) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	listings, err := c.ex.Extract(ctx, crusoeURL, crusoePrompt)
	if err != nil {
		return nil, err
	}
	recs := ToRecords(c.Name(), listings)
	catalog.SortOffers(recs)
	return recs, nil
}

// =============================================================================
// Genesis Cloud
// =============================================================================

type GenesisCloud struct{ ex *Extractor }

func NewGenesisCloud(ex *Extractor) *GenesisCloud { return &GenesisCloud{ex: ex} }

func (c *GenesisCloud) Name() string { return "genesiscloud" }

const genesisCloudURL = "https://www.genesiscloud.com/pricing"

const genesisCloudPrompt = `Extract every GPU instance from the Genesis Cloud pricing page. For each one provide:
1. GPU model name without vendor prefix (e.g. RTX 4090, A100)
2. GPU memory in GB (number)
3. Number of GPUs per instance (number)
4. Price per hour in USD (number; prices are already USD per hour)
5. Location: the listed region, or "EU" when none is shown
6. CPU core count (number)
7. System RAM in GB (number)
8. Disk size in GB if shown (number)

Rules:
- Include both RTX and data center GPUs
- When a spot price is listed, emit a separate entry with "spot": true
- All numeric values must be numbers, not strings
- The vendor is always "NVIDIA"
- For missing numeric values use memory=0, count=1, price=0, cpu=0, ram=0; skip rows where everything is missing

Return JSON of the form:
{"gpus": [{"name": "RTX 4090", "memory": 24, "count": 1, "price": 0.70, "location": "EU", "cpu": 8, "ram": 32, "disk": 100, "spot": false, "vendor": "NVIDIA"}]}`

func (c *GenesisCloud) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	listings, err := c.ex.Extract(ctx, genesisCloudURL, genesisCloudPrompt)
	if err != nil {
		return nil, err
	}
	recs := ToRecords(c.Name(), listings)
	catalog.SortOffers(recs)
	return recs, nil
}

// =============================================================================
// Seeweb
// =============================================================================

type Seeweb struct{ ex *Extractor }

func NewSeeweb(ex *Extractor) *Seeweb { return &Seeweb{ex: ex} }

func (c *Seeweb) Name() string { return "seeweb" }

const seewebURL = "https://www.seeweb.it/en/products/cloud-server-gpu"

const seewebPrompt = `Extract every GPU instance from the Seeweb cloud server GPU pricing page. For each one provide:
1. GPU model name without vendor prefix (e.g. A4000, A6000)
2. GPU memory in GB (number)
3. Number of GPUs per instance (number)
4. Price per hour in USD (number)
5. Location: "Italy" (all Seeweb instances are in Italy)
6. CPU core count (number)
7. System RAM in GB (number)
8. Disk size in GB if shown (number)

Rules:
- Convert monthly prices to hourly by dividing by 720 (24 * 30)
- Convert EUR to USD by multiplying by 1.10
- All numeric values must be numbers, not strings
- The vendor is always "NVIDIA"

Return JSON of the form:
{"gpus": [{"name": "A6000", "memory": 48, "count": 1, "price": 1.90, "location": "Italy", "cpu": 8, "ram": 64, "disk": 200, "spot": false, "vendor": "NVIDIA"}]}`

func (c *Seeweb) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	listings, err := c.ex.Extract(ctx, seewebURL, seewebPrompt)
	if err != nil {
		return nil, err
	}
	recs := ToRecords(c.Name(), listings)
	catalog.SortOffers(recs)
	return recs, nil
}

// =============================================================================
// Scaleway
// =============================================================================

type Scaleway struct{ ex *Extractor }

func NewScaleway(ex *Extractor) *Scaleway { return &Scaleway{ex: ex} }

func (c *Scaleway) Name() string { return "scaleway" }

const scalewayURL = "https://www.scaleway.com/en/pricing/gpu/"

const scalewayPrompt = `Extract every GPU instance from the Scaleway GPU pricing page. For each one provide:
1. GPU model name without vendor prefix; strip size suffixes (e.g. "L40s-1-48G" becomes "L40")
2. GPU memory in GB (number)
3. Number of GPUs per instance (number)
4. Price per hour in USD (number)
5. Location: "Paris" or "Amsterdam"
6. CPU core count (number)
7. System RAM in GB (number)
8. Disk size in GB if shown (number)

Rules:
- Convert EUR to USD by multiplying by 1.10
- All numeric values must be numbers, not strings
- The vendor is "NVIDIA" unless the page explicitly says AMD

Return JSON of the form:
{"gpus": [{"name": "H100", "memory": 80, "count": 1, "price": 2.73, "location": "Paris", "cpu": 24, "ram": 240, "disk": 0, "spot": false, "vendor": "NVIDIA"}]}`

func (c *Scaleway) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	listings, err := c.ex.Extract(ctx, scalewayURL, scalewayPrompt)
	if err != nil {
		return nil, err
	}
	recs := ToRecords(c.Name(), listings)
	catalog.SortOffers(recs)
	return recs, nil
}
