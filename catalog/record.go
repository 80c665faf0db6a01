// Package catalog defines the canonical offer record schema shared by every
// provider collector, plus its tabular (CSV) serialization.
package catalog

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// GPUVendor identifies the accelerator manufacturer.
type GPUVendor string

const (
	VendorNVIDIA GPUVendor = "nvidia"
	VendorAMD    GPUVendor = "amd"
)

// PricingMode distinguishes on-demand from spot pricing for the same offer.
type PricingMode string

const (
	ModeOnDemand PricingMode = "ondemand"
	ModeSpot     PricingMode = "spot"
)

// OfferRecord is one provider's priced compute configuration, normalized to
// the canonical schema. Prices are USD per hour. Sizes are GB.
type OfferRecord struct {
	Provider     string           `json:"provider"`
	InstanceName string           `json:"instance_name"`
	Location     string           `json:"location"`
	Price        decimal.Decimal  `json:"price"`
	SpotPrice    *decimal.Decimal `json:"spot_price,omitempty"`
	GPUCount     int              `json:"gpu_count"`
	GPUName      string           `json:"gpu_name,omitempty"`
	GPUMemory    float64          `json:"gpu_memory,omitempty"`
	GPUVendor    GPUVendor        `json:"gpu_vendor,omitempty"`
	CPUCount     int              `json:"cpu_count"`
	Memory       float64          `json:"memory"`
	DiskSize     *float64         `json:"disk_size,omitempty"`
	Available    bool             `json:"available"`
}

// PricingModes lists the modes this record is priced under. Every record has
// an on-demand price; spot applies only when a spot price is present.
func (r OfferRecord) PricingModes() []PricingMode {
	modes := []PricingMode{ModeOnDemand}
	if r.SpotPrice != nil {
		modes = append(modes, ModeSpot)
	}
	return modes
}

// OfferKey is the uniqueness tuple for duplicate detection within one catalog.
type OfferKey struct {
	Provider     string
	InstanceName string
	Location     string
	Mode         PricingMode
}

func (k OfferKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Provider, k.InstanceName, k.Location, k.Mode)
}

// Keys returns the uniqueness tuples this record occupies.
func (r OfferRecord) Keys() []OfferKey {
	keys := make([]OfferKey, 0, 2)
	for _, mode := range r.PricingModes() {
		keys = append(keys, OfferKey{
			Provider:     r.Provider,
			InstanceName: r.InstanceName,
			Location:     r.Location,
			Mode:         mode,
		})
	}
	return keys
}

// SortOffers orders records by ascending on-demand price, breaking ties on
// instance name then location so serialization is reproducible.
func SortOffers(records []OfferRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if cmp := records[i].Price.Cmp(records[j].Price); cmp != 0 {
			return cmp < 0
		}
		if records[i].InstanceName != records[j].InstanceName {
			return records[i].InstanceName < records[j].InstanceName
		}
		return records[i].Location < records[j].Location
	})
}
