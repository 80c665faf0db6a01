// Package scraper provides collectors for providers without a structured
// pricing API. Pages are fetched over HTTP and offer listings are extracted
// with an OpenAI chat model prompted per provider.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"

	"gpu-catalog/catalog"
	"gpu-catalog/pkg/platform"
)

// DefaultModel is the extraction model when none is configured.
const DefaultModel = "gpt-4o-mini"

const fetchTimeout = 30 * time.Second

const systemPrompt = "You are a helpful assistant that extracts GPU offering information from provider pricing pages. Respond with JSON only, no surrounding text."

// Config holds the extraction model settings. The API key comes from
// OPENAI_API_KEY; BaseURL supports OpenAI-compatible gateways.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Extractor fetches pages and turns them into offer listings. One Extractor
// is shared by all page collectors in a run; the chat model is created
// lazily so runs without extraction collectors never need an API key.
type Extractor struct {
	cfg  Config
	http *platform.HTTPClient

	mu    sync.Mutex
	model model.BaseChatModel
}

// NewExtractor creates an extractor with the given model config.
func NewExtractor(cfg Config) *Extractor {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Extractor{
		cfg:  cfg,
		http: platform.NewHTTPClient(fetchTimeout),
	}
}

func (e *Extractor) chatModel(ctx context.Context) (model.BaseChatModel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return e.model, nil
	}
	if e.cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY must be set for extraction collectors")
	}

	mcfg := &openai.ChatModelConfig{
		Model:  e.cfg.Model,
		APIKey: e.cfg.APIKey,
	}
	if e.cfg.BaseURL != "" {
		mcfg.BaseURL = e.cfg.BaseURL
	}

	m, err := openai.NewChatModel(ctx, mcfg)
	if err != nil {
		return nil, fmt.Errorf("initialize chat model: %w", err)
	}
	e.model = m
	return m, nil
}

// Listing is the JSON shape the model returns for one offer.
type Listing struct {
	Name     string   `json:"name"`
	Memory   float64  `json:"memory"`
	Count    int      `json:"count"`
	Price    float64  `json:"price"`
	Location string   `json:"location"`
	CPU      int      `json:"cpu"`
	RAM      float64  `json:"ram"`
	Disk     *float64 `json:"disk,omitempty"`
	Spot     bool     `json:"spot"`
	Vendor   string   `json:"vendor"`
}

type listingPage struct {
	GPUs []Listing `json:"gpus"`
}

// Extract fetches a URL and extracts its offer listings with the model.
func (e *Extractor) Extract(ctx context.Context, url, prompt string) ([]Listing, error) {
	content, err := e.http.GetText(ctx, url)
	if err != nil {
		return nil, err
	}
	return e.ExtractContent(ctx, content, prompt)
}

// ExtractContent runs extraction over already-fetched content.
func (e *Extractor) ExtractContent(ctx context.Context, content, prompt string) ([]Listing, error) {
	m, err := e.chatModel(ctx)
	if err != nil {
		return nil, err
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Here is the webpage content:\n\n%s\n\n%s", content, prompt)),
	}

	resp, err := m.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("model generate: %w", err)
	}

	return ParseListings(resp.Content)
}

// ParseListings decodes the model's JSON response. Responses occasionally
// arrive wrapped in a markdown code fence despite the prompt; tolerate that.
func ParseListings(raw string) ([]Listing, error) {
	var page listingPage
	if err := json.Unmarshal([]byte(stripFence(raw)), &page); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return page.GPUs, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ToRecords converts listings into canonical records. Spot listings merge
// into their on-demand twin (same model, count, and location) as that
// record's spot price; a spot-only listing keeps its price in both columns
// so the record stays schema-complete.
func ToRecords(provider string, listings []Listing) []catalog.OfferRecord {
	type groupKey struct {
		name     string
		count    int
		location string
	}

	records := make([]catalog.OfferRecord, 0, len(listings))
	index := make(map[groupKey]int)
	var spotOnly []Listing

	for _, l := range listings {
		if l.Spot {
			spotOnly = append(spotOnly, l)
			continue
		}
		key := groupKey{l.Name, l.Count, l.Location}
		if _, exists := index[key]; exists {
			continue
		}
		records = append(records, listingRecord(provider, l))
		index[key] = len(records) - 1
	}

	for _, l := range spotOnly {
		spot := decimal.NewFromFloat(l.Price)
		if i, ok := index[groupKey{l.Name, l.Count, l.Location}]; ok {
			records[i].SpotPrice = &spot
			continue
		}
		rec := listingRecord(provider, l)
		rec.SpotPrice = &spot
		records = append(records, rec)
	}

	return records
}

func listingRecord(provider string, l Listing) catalog.OfferRecord {
	vendor := catalog.VendorNVIDIA
	if strings.EqualFold(l.Vendor, "amd") {
		vendor = catalog.VendorAMD
	}
	return catalog.OfferRecord{
		Provider:     provider,
		InstanceName: fmt.Sprintf("%s-%dx", l.Name, l.Count),
		Location:     l.Location,
		Price:        decimal.NewFromFloat(l.Price),
		GPUCount:     l.Count,
		GPUName:      l.Name,
		GPUMemory:    l.Memory,
		GPUVendor:    vendor,
		CPUCount:     l.CPU,
		Memory:       l.RAM,
		DiskSize:     l.Disk,
		Available:    true,
	}
}
