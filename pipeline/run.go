package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gpu-catalog/bundle"
	"gpu-catalog/catalog"
	"gpu-catalog/providers"
	"gpu-catalog/publish"
	"gpu-catalog/validate"
)

// RunOutcome classifies how a run ended, for the run ledger.
type RunOutcome string

const (
	OutcomeSucceeded        RunOutcome = "succeeded"
	OutcomeCollectFailed    RunOutcome = "collect_failed"
	OutcomeValidationFailed RunOutcome = "validation_failed"
	OutcomePublishFailed    RunOutcome = "publish_failed"
	OutcomeAliasFailed      RunOutcome = "alias_failed"
	OutcomeFailed           RunOutcome = "failed"
)

// RunRecorder persists run accounting rows. Recording is advisory: a
// recorder failure is logged and never fails the run.
type RunRecorder interface {
	RecordStart(ctx context.Context, runID uuid.UUID, channel string, providerIDs []string) error
	RecordFinish(ctx context.Context, runID uuid.UUID, version string, outcome RunOutcome, detail string) error
}

// HistorySink receives the published records after a successful publish.
// Advisory like the recorder; the publish has already committed.
type HistorySink interface {
	InsertOffers(ctx context.Context, version, channel string, records []catalog.OfferRecord) error
}

// Config wires one runner. Registry, Publisher, Channel, StagingDir,
// Providers and Sequence are required; the rest defaults.
type Config struct {
	Providers  []string
	Channel    string
	StagingDir string
	Registry   *providers.Registry
	Publisher  *publish.Publisher
	Validator  *validate.Validator
	Sequence   SequenceSource
	Ledger     RunRecorder
	History    HistorySink
	Log        zerolog.Logger
	Now        func() time.Time
}

// Report summarizes a successful run.
type Report struct {
	RunID    uuid.UUID            `json:"run_id"`
	Version  string               `json:"version"`
	Channel  string               `json:"channel"`
	Records  int                  `json:"records"`
	Outcomes []Outcome            `json:"-"`
	Warnings []validate.Violation `json:"warnings,omitempty"`
	Took     time.Duration        `json:"-"`
}

// Runner executes catalog builds.
type Runner struct {
	cfg        Config
	collectors []providers.Collector
	required   []string
}

// NewRunner validates the config and resolves the provider set up front, so
// a typoed provider id fails before any network call.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("channel is required")
	}
	if cfg.StagingDir == "" {
		return nil, fmt.Errorf("staging dir is required")
	}
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	if cfg.Sequence == nil {
		return nil, fmt.Errorf("sequence source is required")
	}
	if cfg.Validator == nil {
		cfg.Validator = validate.NewValidator(validate.DefaultConfig())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	collectors, err := cfg.Registry.Resolve(cfg.Providers)
	if err != nil {
		return nil, err
	}

	required := make([]string, len(collectors))
	seen := make(map[string]bool, len(collectors))
	for i, c := range collectors {
		name := c.Name()
		if seen[name] {
			return nil, fmt.Errorf("provider %s configured twice", name)
		}
		seen[name] = true
		required[i] = name
	}

	return &Runner{cfg: cfg, collectors: collectors, required: required}, nil
}

// Providers returns the resolved canonical provider ids.
func (r *Runner) Providers() []string {
	out := make([]string, len(r.required))
	copy(out, r.required)
	return out
}

// Run executes one full catalog build. On failure the error is one of the
// pipeline's typed errors; the channel's previous latest is untouched.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.New()
	log := r.cfg.Log.With().Str("run_id", runID.String()).Logger()

	r.recordStart(ctx, log, runID)

	report, err := r.execute(ctx, log, runID)
	if err != nil {
		r.recordFinish(ctx, log, runID, versionFromError(err), classify(err), err.Error())
		return nil, err
	}
	report.Took = time.Since(start)

	r.recordFinish(ctx, log, runID, report.Version, OutcomeSucceeded, "")
	return report, nil
}

func (r *Runner) execute(ctx context.Context, log zerolog.Logger, runID uuid.UUID) (*Report, error) {
	log.Info().
		Strs("providers", r.required).
		Str("channel", r.cfg.Channel).
		Msg("run started")

	outcomes := CollectAll(ctx, r.collectors, log)
	if err := Stage(r.cfg.StagingDir, outcomes); err != nil {
		return nil, err
	}

	cat, err := Assemble(r.cfg.StagingDir, r.required, outcomes)
	if err != nil {
		return nil, err
	}
	log.Info().Int("records", cat.TotalRecords()).Msg("catalog assembled")

	result := r.cfg.Validator.Validate(cat)
	for _, w := range result.Warnings {
		log.Warn().
			Str("check", string(w.Check)).
			Str("provider", w.Provider).
			Msg(w.Message)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	log.Info().Int("checks", result.ChecksRan).Msg("catalog validated")

	version, err := AllocateVersion(ctx, r.cfg.Now(), r.cfg.Sequence)
	if err != nil {
		return nil, err
	}
	log.Info().Str("version", version.String()).Msg("version allocated")

	data, err := bundle.Package(cat, version.String())
	if err != nil {
		return nil, err
	}

	if err := r.cfg.Publisher.Publish(ctx, r.cfg.Channel, version.String(), data); err != nil {
		return nil, err
	}

	r.insertHistory(ctx, log, version.String(), cat)

	return &Report{
		RunID:    runID,
		Version:  version.String(),
		Channel:  r.cfg.Channel,
		Records:  cat.TotalRecords(),
		Outcomes: outcomes,
		Warnings: result.Warnings,
	}, nil
}

func (r *Runner) recordStart(ctx context.Context, log zerolog.Logger, runID uuid.UUID) {
	if r.cfg.Ledger == nil {
		return
	}
	if err := r.cfg.Ledger.RecordStart(ctx, runID, r.cfg.Channel, r.required); err != nil {
		log.Warn().Err(err).Msg("run ledger write failed")
	}
}

func (r *Runner) recordFinish(ctx context.Context, log zerolog.Logger, runID uuid.UUID, version string, outcome RunOutcome, detail string) {
	if r.cfg.Ledger == nil {
		return
	}
	if err := r.cfg.Ledger.RecordFinish(ctx, runID, version, outcome, detail); err != nil {
		log.Warn().Err(err).Msg("run ledger write failed")
	}
}

func (r *Runner) insertHistory(ctx context.Context, log zerolog.Logger, version string, cat *catalog.Catalog) {
	if r.cfg.History == nil {
		return
	}
	if err := r.cfg.History.InsertOffers(ctx, version, r.cfg.Channel, cat.All()); err != nil {
		log.Warn().Err(err).Msg("offer history insert failed")
	}
}

// classify maps a run error onto the ledger outcome taxonomy.
func classify(err error) RunOutcome {
	var completeness *CompletenessError
	if errors.As(err, &completeness) {
		return OutcomeCollectFailed
	}
	var validation *validate.ValidationError
	if errors.As(err, &validation) {
		return OutcomeValidationFailed
	}
	var archive *publish.ArchiveError
	if errors.As(err, &archive) {
		return OutcomePublishFailed
	}
	var alias *publish.AliasError
	if errors.As(err, &alias) {
		return OutcomeAliasFailed
	}
	return OutcomeFailed
}

// versionFromError recovers the allocated version from errors raised after
// allocation, so the ledger row still names it.
func versionFromError(err error) string {
	var archive *publish.ArchiveError
	if errors.As(err, &archive) {
		return archive.Version
	}
	var alias *publish.AliasError
	if errors.As(err, &alias) {
		return alias.Version
	}
	return ""
}
