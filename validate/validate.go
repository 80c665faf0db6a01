// Package validate provides the Catalog Integrity Validator
// Runs a fixed battery of checks over an assembled catalog before any
// version is allocated
package validate

import (
	"fmt"
	"strings"
	"time"

	"gpu-catalog/catalog"
)

// CheckID identifies one check in the battery
type CheckID string

const (
	CheckSchema     CheckID = "schema_conformance"
	CheckRange      CheckID = "type_range"
	CheckDuplicates CheckID = "duplicate_keys"
	CheckSizeFloor  CheckID = "size_floor"
	CheckKnownGPUs  CheckID = "known_gpus"
)

// Severity defines check violation severity
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Decision is the validation outcome
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionDeny Decision = "deny"
)

// Violation pins one finding to a provider and, when record-level, to the
// record's index within that provider's catalog. Record is -1 for
// catalog-level findings.
type Violation struct {
	Check    CheckID  `json:"check"`
	Provider string   `json:"provider"`
	Record   int      `json:"record"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result contains the validation outcome
type Result struct {
	Decision    Decision    `json:"decision"`
	Violations  []Violation `json:"violations"`
	Warnings    []Violation `json:"warnings"`
	ChecksRan   int         `json:"checks_ran"`
	ValidatedAt time.Time   `json:"validated_at"`
}

// Err returns a ValidationError when the catalog was denied, nil otherwise.
func (r *Result) Err() error {
	if r.Decision != DecisionDeny {
		return nil
	}
	return &ValidationError{Violations: r.Violations}
}

// ValidationError reports a denied catalog.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "catalog validation failed"
	}
	v := e.Violations[0]
	return fmt.Sprintf("catalog validation failed: %d violation(s), first: [%s] %s: %s",
		len(e.Violations), v.Check, v.Provider, v.Message)
}

// Config holds the validator knobs
type Config struct {
	// MinRecords is the per-provider record floor; providers below it fail
	// the size check
	MinRecords int
	// ProviderFloors overrides MinRecords for specific providers
	ProviderFloors map[string]int
	// KnownGPUs is the recognized model set for the sanity check
	KnownGPUs []string
	// StrictGPUNames raises unrecognized GPU models from warning to error
	StrictGPUNames bool
}

// DefaultConfig returns the default validator configuration
func DefaultConfig() Config {
	return Config{
		MinRecords: 1,
		KnownGPUs:  knownGPUModels(),
	}
}

// Validator runs the check battery against assembled catalogs
type Validator struct {
	cfg Config
}

// NewValidator creates a validator with the given configuration
func NewValidator(cfg Config) *Validator {
	if cfg.MinRecords <= 0 {
		cfg.MinRecords = 1
	}
	if cfg.KnownGPUs == nil {
		cfg.KnownGPUs = knownGPUModels()
	}
	return &Validator{cfg: cfg}
}

// Validate runs every check and accumulates findings. Checks always all run;
// an early failure never masks later findings.
func (v *Validator) Validate(c *catalog.Catalog) *Result {
	result := &Result{
		Decision:    DecisionPass,
		Violations:  make([]Violation, 0),
		Warnings:    make([]Violation, 0),
		ValidatedAt: time.Now(),
	}

	checks := []func(*catalog.Catalog) []Violation{
		v.checkSchema,
		v.checkRanges,
		v.checkDuplicates,
		v.checkSizeFloor,
		v.checkKnownGPUs,
	}

	for _, check := range checks {
		result.ChecksRan++
		for _, violation := range check(c) {
			if violation.Severity == SeverityError {
				result.Violations = append(result.Violations, violation)
				result.Decision = DecisionDeny
				continue
			}
			result.Warnings = append(result.Warnings, violation)
			if result.Decision == DecisionPass {
				result.Decision = DecisionWarn
			}
		}
	}

	return result
}

func (v *Validator) checkSchema(c *catalog.Catalog) []Violation {
	var violations []Violation
	for _, provider := range c.Providers() {
		pc, _ := c.Get(provider)
		for i, rec := range pc.Records {
			if rec.Provider == "" {
				violations = append(violations, schemaViolation(provider, i, "empty provider id"))
			} else if rec.Provider != provider {
				violations = append(violations, schemaViolation(provider, i,
					fmt.Sprintf("record claims provider %q", rec.Provider)))
			}
			if rec.InstanceName == "" {
				violations = append(violations, schemaViolation(provider, i, "empty instance name"))
			}
			if rec.Location == "" {
				violations = append(violations, schemaViolation(provider, i, "empty location"))
			}
			if rec.GPUCount > 0 && rec.GPUName == "" {
				violations = append(violations, schemaViolation(provider, i,
					fmt.Sprintf("%d GPUs but no model name", rec.GPUCount)))
			}
		}
	}
	return violations
}

func schemaViolation(provider string, record int, msg string) Violation {
	return Violation{
		Check:    CheckSchema,
		Provider: provider,
		Record:   record,
		Message:  msg,
		Severity: SeverityError,
	}
}

func (v *Validator) checkRanges(c *catalog.Catalog) []Violation {
	var violations []Violation
	for _, provider := range c.Providers() {
		pc, _ := c.Get(provider)
		for i, rec := range pc.Records {
			if rec.Price.IsNegative() {
				violations = append(violations, rangeViolation(provider, i,
					fmt.Sprintf("negative price %s", rec.Price)))
			}
			if rec.SpotPrice != nil && rec.SpotPrice.IsNegative() {
				violations = append(violations, rangeViolation(provider, i,
					fmt.Sprintf("negative spot price %s", rec.SpotPrice)))
			}
			if rec.GPUCount < 0 {
				violations = append(violations, rangeViolation(provider, i,
					fmt.Sprintf("negative GPU count %d", rec.GPUCount)))
			}
			if rec.GPUMemory < 0 {
				violations = append(violations, rangeViolation(provider, i,
					fmt.Sprintf("negative GPU memory %g", rec.GPUMemory)))
			}
			if rec.CPUCount < 0 {
				violations = append(violations, rangeViolation(provider, i,
					fmt.Sprintf("negative CPU count %d", rec.CPUCount)))
			}
			if rec.Memory < 0 {
				violations = append(violations, rangeViolation(provider, i,
					fmt.Sprintf("negative memory %g", rec.Memory)))
			}
			if rec.DiskSize != nil && *rec.DiskSize < 0 {
				violations = append(violations, rangeViolation(provider, i,
					fmt.Sprintf("negative disk size %g", *rec.DiskSize)))
			}
		}
	}
	return violations
}

func rangeViolation(provider string, record int, msg string) Violation {
	return Violation{
		Check:    CheckRange,
		Provider: provider,
		Record:   record,
		Message:  msg,
		Severity: SeverityError,
	}
}

// checkDuplicates enforces uniqueness of (provider, instance, location,
// pricing mode) across the whole catalog.
func (v *Validator) checkDuplicates(c *catalog.Catalog) []Violation {
	var violations []Violation
	seen := make(map[catalog.OfferKey]bool)
	for _, provider := range c.Providers() {
		pc, _ := c.Get(provider)
		for i, rec := range pc.Records {
			for _, key := range rec.Keys() {
				if seen[key] {
					violations = append(violations, Violation{
						Check:    CheckDuplicates,
						Provider: provider,
						Record:   i,
						Message:  fmt.Sprintf("duplicate key %s", key),
						Severity: SeverityError,
					})
					continue
				}
				seen[key] = true
			}
		}
	}
	return violations
}

func (v *Validator) checkSizeFloor(c *catalog.Catalog) []Violation {
	var violations []Violation
	for _, provider := range c.Providers() {
		floor := v.cfg.MinRecords
		if f, ok := v.cfg.ProviderFloors[provider]; ok {
			floor = f
		}
		pc, _ := c.Get(provider)
		if len(pc.Records) < floor {
			violations = append(violations, Violation{
				Check:    CheckSizeFloor,
				Provider: provider,
				Record:   -1,
				Message:  fmt.Sprintf("%d record(s), floor is %d", len(pc.Records), floor),
				Severity: SeverityError,
			})
		}
	}
	return violations
}

// checkKnownGPUs flags model names outside the recognized set. One finding
// per distinct name per provider; warning-level unless StrictGPUNames.
func (v *Validator) checkKnownGPUs(c *catalog.Catalog) []Violation {
	severity := SeverityWarning
	if v.cfg.StrictGPUNames {
		severity = SeverityError
	}

	var violations []Violation
	for _, provider := range c.Providers() {
		pc, _ := c.Get(provider)
		flagged := make(map[string]bool)
		for i, rec := range pc.Records {
			if rec.GPUCount == 0 || rec.GPUName == "" || flagged[rec.GPUName] {
				continue
			}
			if v.knownGPU(rec.GPUName) {
				continue
			}
			flagged[rec.GPUName] = true
			violations = append(violations, Violation{
				Check:    CheckKnownGPUs,
				Provider: provider,
				Record:   i,
				Message:  fmt.Sprintf("unrecognized GPU model %q", rec.GPUName),
				Severity: severity,
			})
		}
	}
	return violations
}

func (v *Validator) knownGPU(name string) bool {
	upper := strings.ToUpper(name)
	for _, known := range v.cfg.KnownGPUs {
		if strings.Contains(upper, strings.ToUpper(known)) {
			return true
		}
	}
	return false
}

// knownGPUModels is the recognized model set. Matching is by substring, so
// "NVIDIA H100 80GB" is covered by "H100".
func knownGPUModels() []string {
	return []string{
		"A10", "A100", "A10G", "A40", "A4000", "A5000", "A6000",
		"B200", "GH200", "H100", "H200", "L4", "L40", "L40S",
		"MI210", "MI250", "MI300X", "P100", "Radeon Pro V520",
		"RTX 3090", "RTX 4000", "RTX 4090", "RTX 5000", "RTX 5090",
		"RTX 6000", "RTX4000", "RTX6000", "T4", "T4g", "V100",
	}
}
