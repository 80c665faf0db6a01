// Package leadergpu collects dedicated GPU server offers from leadergpu.com.
// The site's filter endpoint returns JSON whose matchesHtml field carries the
// rendered server cards; offer fields are pulled out of the card markup with
// targeted expressions. All servers are NVIDIA and hosted in Europe.
package leadergpu

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gpu-catalog/catalog"
	"gpu-catalog/pkg/platform"
	"gpu-catalog/pkg/units"
)

const filterURL = "https://www.leadergpu.com/filter_servers"

var (
	sectionRe = regexp.MustCompile(`(?s)<section[^>]*class="[^"]*b-product-gpu[^"]*"[^>]*>(.*?)</section>`)
	gpuLineRe = regexp.MustCompile(`(?s)>\s*GPU:\s*(?:<p[^>]*>)?\s*([^<]+)`)
	gpuRAMRe  = regexp.MustCompile(`>\s*GPU RAM:\s*<span[^>]*>([^<]+)</span>`)
	cpuRe     = regexp.MustCompile(`>\s*CPU:\s*<span[^>]*>([^<]+)</span>`)
	ramRe     = regexp.MustCompile(`>\s*RAM:\s*<span[^>]*>([^<]+)</span>`)
	nvmeRe    = regexp.MustCompile(`>\s*NVME:\s*<span[^>]*>([^<]+)</span>`)
	priceRe   = regexp.MustCompile(`<p[^>]*>([^<]+)</p>`)

	memoryRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:GB|GiB|G)`)
	terabyteRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*TB`)
	coresRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:cores?|vCPU)`)
	countRe    = regexp.MustCompile(`^(\d+)\s*(?:pcs\.?|x)\s*(.+)$`)
	numberRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

type filterResponse struct {
	MatchesHTML string `json:"matchesHtml"`
}

type Collector struct {
	http *platform.HTTPClient
	url  string
}

func New() *Collector {
	return &Collector{
		http: platform.NewHTTPClient(30 * time.Second),
		url:  filterURL,
	}
}

func (c *Collector) Name() string { return "leadergpu" }

func (c *Collector) Collect(ctx context.Context) ([]catalog.OfferRecord, error) {
	var resp filterResponse
	if err := c.http.GetJSON(ctx, c.url, &resp); err != nil {
		return nil, err
	}

	var records []catalog.OfferRecord
	for _, m := range sectionRe.FindAllStringSubmatch(resp.MatchesHTML, -1) {
		if rec, ok := cardRecord(m[1]); ok {
			records = append(records, rec)
		}
	}

	catalog.SortOffers(records)
	return records, nil
}

// cardRecord extracts one offer from a server card. Cards without a
// recognizable GPU line are skipped.
func cardRecord(card string) (catalog.OfferRecord, bool) {
	count, model := ParseGPU(match(gpuLineRe, card))
	if model == "" {
		return catalog.OfferRecord{}, false
	}

	price := cardPrice(card)

	rec := catalog.OfferRecord{
		Provider:     "leadergpu",
		InstanceName: model + "-" + strconv.Itoa(count) + "x",
		Location:     "EU",
		Price:        decimal.NewFromFloat(price),
		GPUCount:     count,
		GPUName:      model,
		GPUMemory:    ParseMemory(match(gpuRAMRe, card)),
		GPUVendor:    catalog.VendorNVIDIA,
		CPUCount:     ParseCPUCores(match(cpuRe, card)),
		Memory:       ParseMemory(match(ramRe, card)),
		Available:    true,
	}

	if disk := ParseMemory(match(nvmeRe, card)); disk > 0 {
		rec.DiskSize = &disk
	}

	return rec, true
}

// cardPrice returns the first price on the card that converts to a positive
// hourly rate.
func cardPrice(card string) float64 {
	i := strings.Index(card, "b-product-gpu-prices")
	if i < 0 {
		return 0
	}
	for _, m := range priceRe.FindAllStringSubmatch(card[i:], -1) {
		if p := ParsePrice(m[1]); p > 0 {
			return p
		}
	}
	return 0
}

func match(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ParseMemory reads a size like "16GB", "64GiB", "128 G" or "2 TB" and
// returns gigabytes.
func ParseMemory(s string) float64 {
	if m := terabyteRe.FindStringSubmatch(s); m != nil {
		tb, _ := strconv.ParseFloat(m[1], 64)
		return units.TBToGB(tb)
	}
	if m := memoryRe.FindStringSubmatch(s); m != nil {
		gb, _ := strconv.ParseFloat(m[1], 64)
		return gb
	}
	return 0
}

// ParseCPUCores reads a core count like "32 cores" or "64 vCPU".
func ParseCPUCores(s string) int {
	m := coresRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// ParseGPU reads a card's GPU line like "4x NVIDIA RTX 4090" or
// "8 pcs RTX A6000" and returns the count and model. The vendor prefix is
// dropped; a line without a count means a single GPU.
func ParseGPU(s string) (int, string) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "GPU:"))
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "NVIDIA", "")), " ")
	if s == "" {
		return 0, ""
	}
	if m := countRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, strings.TrimSpace(m[2])
	}
	return 1, s
}

// ParsePrice reads a quoted price like "€1200/month" or "€0.02/minute" and
// returns the hourly rate, rounded to four decimal places. The numeric value
// is kept as quoted; only the billing period is normalized.
func ParsePrice(s string) float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return 0
	}
	price, _ := strconv.ParseFloat(m, 64)

	period := units.PeriodHourly
	switch {
	case strings.Contains(s, "month"):
		period = units.PeriodMonthly
	case strings.Contains(s, "week"):
		period = units.PeriodWeekly
	case strings.Contains(s, "day"):
		period = units.PeriodDaily
	case strings.Contains(s, "minute"):
		period = units.PeriodPerMinute
	}

	return math.Round(units.ToHourly(price, period)*10000) / 10000
}
