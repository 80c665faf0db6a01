// gpucat CLI - GPU compute offering catalog pipeline
//
// Usage:
//   gpucat run [--channel stable] [--providers linode,aws]
//   gpucat collect --provider linode [--output linode.csv]
//   gpucat publish alias --version 20240115-3
//   gpucat history prices --gpu H100
//   gpucat serve --port 8080
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rs/zerolog"

	"gpu-catalog/api"
	"gpu-catalog/bundle"
	"gpu-catalog/catalog"
	"gpu-catalog/db/clickhouse"
	"gpu-catalog/ledger"
	"gpu-catalog/pipeline"
	"gpu-catalog/pkg/platform"
	"gpu-catalog/providers"
	"gpu-catalog/publish"
	"gpu-catalog/validate"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes for CI/CD integration
const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitIncomplete = 2
	ExitValidation = 3
	ExitArchive    = 4
	ExitAlias      = 5
)

func main() {
	app := &cli.App{
		Name:    "gpucat",
		Usage:   "GPU compute offering catalogs - collect, validate, publish",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"CATALOG_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "channel",
				Value:   "staging",
				Usage:   "Release channel",
				EnvVars: []string{"CATALOG_CHANNEL"},
			},
			&cli.StringFlag{
				Name:    "staging-dir",
				Value:   ".gpucat/staging",
				Usage:   "Local staging area for collected catalogs",
				EnvVars: []string{"CATALOG_STAGING_DIR"},
			},
			&cli.StringFlag{
				Name:    "store-dir",
				Value:   ".gpucat/store",
				Usage:   "Filesystem object store root (ignored when --bucket is set)",
				EnvVars: []string{"CATALOG_STORE_DIR"},
			},
			&cli.StringFlag{
				Name:    "bucket",
				Usage:   "S3 bucket for published bundles",
				EnvVars: []string{"CATALOG_BUCKET"},
			},
			&cli.StringFlag{
				Name:    "ledger-dsn",
				Usage:   "Postgres DSN for the run ledger",
				EnvVars: []string{"CATALOG_LEDGER_DSN"},
			},
			&cli.StringFlag{
				Name:    "clickhouse",
				Usage:   "ClickHouse host:port for offer history",
				EnvVars: []string{"CATALOG_CLICKHOUSE_ADDR"},
			},
			&cli.IntFlag{
				Name:    "run-number",
				Usage:   "Run sequence number override (skips the ledger sequence)",
				EnvVars: []string{"CATALOG_RUN_NUMBER"},
			},
		},

		Commands: []*cli.Command{
			runCommand(),
			collectCommand(),
			publishCommand(),
			historyCommand(),
			runsCommand(),
			migrateCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the run error taxonomy onto CI-friendly exit codes.
func exitCode(err error) int {
	var completeness *pipeline.CompletenessError
	if errors.As(err, &completeness) {
		return ExitIncomplete
	}
	var validation *validate.ValidationError
	if errors.As(err, &validation) {
		return ExitValidation
	}
	var archive *publish.ArchiveError
	if errors.As(err, &archive) {
		return ExitArchive
	}
	var alias *publish.AliasError
	if errors.As(err, &alias) {
		return ExitAlias
	}
	return ExitFailure
}

// =============================================================================
// SHARED WIRING
// =============================================================================

func newLogger(c *cli.Context) zerolog.Logger {
	return platform.NewLogger(c.String("log-level"))
}

func newStore(c *cli.Context) (publish.ObjectStore, error) {
	if bucket := c.String("bucket"); bucket != "" {
		return publish.NewS3Store(context.Background(), bucket)
	}
	return publish.NewFSStore(c.String("store-dir"))
}

// openLedger returns nil when no DSN is configured or the ledger is
// unreachable; run accounting is advisory.
func openLedger(c *cli.Context, log zerolog.Logger) *ledger.Store {
	dsn := c.String("ledger-dsn")
	if dsn == "" {
		return nil
	}
	store, err := ledger.Open(dsn)
	if err != nil {
		log.Warn().Err(err).Msg("run ledger unavailable")
		return nil
	}
	return store
}

// newSequence picks the run sequence source: an explicit --run-number wins,
// then the ledger's Postgres sequence. Without either a version can never be
// allocated, so that is a hard error.
func newSequence(c *cli.Context, led *ledger.Store) (pipeline.SequenceSource, error) {
	if n := c.Int("run-number"); n > 0 {
		return pipeline.StaticSequence(n), nil
	}
	if led != nil {
		return led, nil
	}
	return nil, fmt.Errorf("no run sequence source: set --run-number or --ledger-dsn")
}

func buildRunner(c *cli.Context, log zerolog.Logger, channel string, providerIDs []string) (*pipeline.Runner, func(), error) {
	store, err := newStore(c)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}

	led := openLedger(c, log)
	if led != nil {
		closers = append(closers, func() { led.Close() })
	}

	seq, err := newSequence(c, led)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	cfg := pipeline.Config{
		Providers:  providerIDs,
		Channel:    channel,
		StagingDir: c.String("staging-dir"),
		Registry:   providers.DefaultRegistry(providers.DefaultConfig()),
		Publisher:  publish.NewPublisher(store, log),
		Sequence:   seq,
		Log:        log,
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = cfg.Registry.Names()
	}
	if led != nil {
		cfg.Ledger = led
	}
	if addr := c.String("clickhouse"); addr != "" {
		ch, err := clickhouse.NewStoreFromAddr(addr)
		if err != nil {
			log.Warn().Err(err).Msg("offer history sink unavailable")
		} else {
			cfg.History = ch
			closers = append(closers, func() { ch.Close() })
		}
	}

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return runner, cleanup, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// =============================================================================
// RUN COMMAND
// =============================================================================

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Collect, validate, package and publish a full catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "providers",
				Usage:   "Comma-separated provider subset (default: all)",
				EnvVars: []string{"CATALOG_PROVIDERS"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format (text, json)",
			},
		},
		Action: runRun,
	}
}

func runRun(c *cli.Context) error {
	log := newLogger(c)
	channel := c.String("channel")

	runner, cleanup, err := buildRunner(c, log, channel, splitList(c.String("providers")))
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintf(os.Stderr, "📊 Collecting %d providers for channel %s\n",
		len(runner.Providers()), channel)

	report, err := runner.Run(context.Background())
	if err != nil {
		return err
	}

	if c.String("format") == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(os.Stderr, "🚀 Published version %s to channel %s (%d records in %s)\n",
		report.Version, report.Channel, report.Records, report.Took.Round(time.Millisecond))
	if len(report.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  %d validation warning(s), see log\n", len(report.Warnings))
	}

	// Bare version on stdout so scripts can capture it
	fmt.Println(report.Version)
	return nil
}

// =============================================================================
// COLLECT COMMAND
// =============================================================================

func collectCommand() *cli.Command {
	return &cli.Command{
		Name:  "collect",
		Usage: "Collect one provider's offers without publishing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "provider",
				Aliases:  []string{"p"},
				Usage:    "Provider id",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output CSV path (default: stdout)",
			},
			&cli.BoolFlag{
				Name:  "no-sort",
				Usage: "Keep collector order instead of sorting by price",
			},
		},
		Action: runCollect,
	}
}

func runCollect(c *cli.Context) error {
	reg := providers.DefaultRegistry(providers.DefaultConfig())
	collector := reg.Get(c.String("provider"))
	if collector == nil {
		return fmt.Errorf("unknown provider: %s (known: %s)",
			c.String("provider"), strings.Join(reg.Names(), ", "))
	}

	start := time.Now()
	records, err := collector.Collect(context.Background())
	if err != nil {
		return &providers.CollectError{Provider: collector.Name(), Err: err}
	}
	if !c.Bool("no-sort") {
		catalog.SortOffers(records)
	}

	fmt.Fprintf(os.Stderr, "📊 Collected %d offers from %s in %s\n",
		len(records), collector.Name(), time.Since(start).Round(time.Millisecond))

	out := os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return catalog.WriteCSV(out, records)
}

// =============================================================================
// PUBLISH COMMAND
// =============================================================================

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Channel publishing operations",
		Subcommands: []*cli.Command{
			{
				Name:  "alias",
				Usage: "Re-point a channel's latest alias at an already-archived version",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "version",
						Usage:    "Archived version to advertise",
						Required: true,
					},
				},
				Action: runPublishAlias,
			},
			{
				Name:   "latest",
				Usage:  "Print the version a channel currently advertises",
				Action: runPublishLatest,
			},
			{
				Name:  "inspect",
				Usage: "List the contents of an archived bundle",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "version",
						Value: "latest",
						Usage: "Archived version to inspect (or \"latest\")",
					},
				},
				Action: runPublishInspect,
			},
		},
	}
}

func runPublishAlias(c *cli.Context) error {
	log := newLogger(c)
	store, err := newStore(c)
	if err != nil {
		return err
	}

	channel := c.String("channel")
	target := c.String("version")
	pub := publish.NewPublisher(store, log)
	if err := pub.RetryAlias(context.Background(), channel, target); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "🚀 Channel %s now advertises %s\n", channel, target)
	return nil
}

func runPublishLatest(c *cli.Context) error {
	store, err := newStore(c)
	if err != nil {
		return err
	}

	pub := publish.NewPublisher(store, newLogger(c))
	advertised, err := pub.Latest(context.Background(), c.String("channel"))
	if err != nil {
		return err
	}
	fmt.Println(advertised)
	return nil
}

func runPublishInspect(c *cli.Context) error {
	store, err := newStore(c)
	if err != nil {
		return err
	}

	channel := c.String("channel")
	pub := publish.NewPublisher(store, newLogger(c))
	data, err := pub.Bundle(context.Background(), channel, c.String("version"))
	if err != nil {
		return err
	}
	contents, err := bundle.Read(data)
	if err != nil {
		return err
	}

	fmt.Printf("Channel:  %s\n", channel)
	fmt.Printf("Version:  %s\n", contents.Version)
	fmt.Printf("Size:     %d bytes\n\n", len(data))

	fmt.Printf("%-15s %s\n", "PROVIDER", "RECORDS")
	total := 0
	for _, pc := range contents.Catalogs {
		fmt.Printf("%-15s %d\n", pc.Provider, len(pc.Records))
		total += len(pc.Records)
	}
	fmt.Printf("%-15s %d\n", "total", total)
	return nil
}

// =============================================================================
// HISTORY COMMAND
// =============================================================================

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Query the offer history",
		Subcommands: []*cli.Command{
			{
				Name:  "prices",
				Usage: "Recent prices for a GPU model",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "gpu",
						Usage:    "GPU model, e.g. H100",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Maximum rows",
					},
				},
				Action: runHistoryPrices,
			},
		},
	}
}

func runHistoryPrices(c *cli.Context) error {
	addr := c.String("clickhouse")
	if addr == "" {
		return fmt.Errorf("offer history requires --clickhouse")
	}

	store, err := clickhouse.NewStoreFromAddr(addr)
	if err != nil {
		return err
	}
	defer store.Close()

	points, err := store.RecentPrices(context.Background(), c.String("gpu"), c.Int("limit"))
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Fprintf(os.Stderr, "No history for %q\n", c.String("gpu"))
		return nil
	}

	fmt.Printf("%-17s %-9s %-13s %-28s %-14s %10s\n",
		"PUBLISHED", "CHANNEL", "PROVIDER", "INSTANCE", "LOCATION", "USD/HR")
	for _, p := range points {
		fmt.Printf("%-17s %-9s %-13s %-28s %-14s %10s\n",
			p.PublishedAt.Format("2006-01-02 15:04"),
			p.Channel,
			p.Provider,
			truncate(p.InstanceName, 28),
			truncate(p.Location, 14),
			p.Price.StringFixed(4),
		)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// =============================================================================
// RUNS COMMAND
// =============================================================================

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent runs from the ledger",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 10,
				Usage: "Maximum rows",
			},
		},
		Action: runRuns,
	}
}

func runRuns(c *cli.Context) error {
	dsn := c.String("ledger-dsn")
	if dsn == "" {
		return fmt.Errorf("listing runs requires --ledger-dsn")
	}

	store, err := ledger.Open(dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(context.Background(), c.Int("limit"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "No runs recorded")
		return nil
	}

	fmt.Printf("%-17s %-37s %-9s %-18s %s\n",
		"STARTED", "RUN ID", "CHANNEL", "OUTCOME", "VERSION")
	for _, r := range runs {
		outcome := string(r.Outcome)
		if r.FinishedAt == nil {
			outcome = "running"
		}
		fmt.Printf("%-17s %-37s %-9s %-18s %s\n",
			r.StartedAt.Format("2006-01-02 15:04"),
			r.RunID.String(),
			r.Channel,
			outcome,
			r.Version,
		)
	}
	return nil
}

// =============================================================================
// MIGRATE COMMAND
// =============================================================================

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Create ledger and history tables",
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	ctx := context.Background()
	migrated := false

	if dsn := c.String("ledger-dsn"); dsn != "" {
		store, err := ledger.Open(dsn)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "✅ Ledger schema up to date")
		migrated = true
	}

	if addr := c.String("clickhouse"); addr != "" {
		store, err := clickhouse.NewStoreFromAddr(addr)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "✅ Offer history schema up to date")
		migrated = true
	}

	if !migrated {
		return fmt.Errorf("nothing to migrate: set --ledger-dsn and/or --clickhouse")
	}
	return nil
}

// =============================================================================
// SERVE COMMAND (RUN DISPATCH API)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the run dispatch API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"CATALOG_PORT"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Require X-API-Key on dispatch requests",
				EnvVars: []string{"CATALOG_API_KEY"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	log := newLogger(c)

	run := func(ctx context.Context, channel string, providerIDs []string) (*pipeline.Report, error) {
		runner, cleanup, err := buildRunner(c, log, channel, providerIDs)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		return runner.Run(ctx)
	}

	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")
	cfg.DefaultChannel = c.String("channel")
	cfg.APIKey = c.String("api-key")

	server := api.NewServer(run, cfg, log)
	return server.StartWithGracefulShutdown()
}
