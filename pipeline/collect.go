// Package pipeline runs the catalog build end to end: parallel collection,
// the assembly barrier, validation, version allocation, packaging, and
// channel publishing.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gpu-catalog/catalog"
	"gpu-catalog/providers"
)

// Outcome is one collector's terminal result. Exactly one Outcome exists per
// configured provider per run, success or not.
type Outcome struct {
	Provider string
	Records  []catalog.OfferRecord
	Err      error
	Duration time.Duration
}

// CollectAll fans out one goroutine per collector and waits for every one of
// them. A failing collector never cancels its siblings; whether a failure
// matters is the barrier's call, not the fan-out's.
func CollectAll(ctx context.Context, collectors []providers.Collector, log zerolog.Logger) []Outcome {
	outcomes := make([]Outcome, len(collectors))

	var wg sync.WaitGroup
	for i, c := range collectors {
		wg.Add(1)
		go func(i int, c providers.Collector) {
			defer wg.Done()

			start := time.Now()
			records, err := c.Collect(ctx)
			elapsed := time.Since(start)

			if err != nil {
				err = &providers.CollectError{Provider: c.Name(), Err: err}
				log.Error().
					Str("provider", c.Name()).
					Dur("took", elapsed).
					Err(err).
					Msg("collection failed")
			} else {
				log.Info().
					Str("provider", c.Name()).
					Int("records", len(records)).
					Dur("took", elapsed).
					Msg("collection finished")
			}

			outcomes[i] = Outcome{
				Provider: c.Name(),
				Records:  records,
				Err:      err,
				Duration: elapsed,
			}
		}(i, c)
	}
	wg.Wait()

	return outcomes
}

// Stage writes each successful outcome to dir as <provider>.csv. Staged
// files are what the assembler reads back, so out-of-band collect runs and
// in-process runs share one path.
func Stage(dir string, outcomes []Outcome) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		if err := WriteProviderFile(dir, o.Provider, o.Records); err != nil {
			return err
		}
	}
	return nil
}

// WriteProviderFile writes one provider's records as canonical CSV.
func WriteProviderFile(dir, provider string, records []catalog.OfferRecord) error {
	f, err := os.Create(filepath.Join(dir, provider+".csv"))
	if err != nil {
		return fmt.Errorf("stage %s: %w", provider, err)
	}
	if err := catalog.WriteCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("stage %s: %w", provider, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("stage %s: %w", provider, err)
	}
	return nil
}

// LoadStaged reads one staged catalog file per required provider.
func LoadStaged(dir string, required []string) ([]catalog.ProviderCatalog, error) {
	catalogs := make([]catalog.ProviderCatalog, 0, len(required))
	for _, provider := range required {
		f, err := os.Open(filepath.Join(dir, provider+".csv"))
		if err != nil {
			return nil, fmt.Errorf("read staged catalog for %s: %w", provider, err)
		}
		records, err := catalog.ReadCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read staged catalog for %s: %w", provider, err)
		}
		catalogs = append(catalogs, catalog.ProviderCatalog{Provider: provider, Records: records})
	}
	return catalogs, nil
}
