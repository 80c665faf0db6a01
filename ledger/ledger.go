// Package ledger persists run accounting in Postgres: one row per pipeline
// run plus the monotonic run-sequence allocator. The ledger is optional and
// advisory except for NextRunSeq, which is a hard dependency when chosen as
// the sequence source.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gpu-catalog/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog_runs (
	run_id      UUID PRIMARY KEY,
	channel     TEXT NOT NULL,
	providers   TEXT[] NOT NULL,
	version     TEXT,
	outcome     TEXT NOT NULL DEFAULT 'running',
	detail      TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE SEQUENCE IF NOT EXISTS catalog_run_seq;
`

// Run is one ledger row.
type Run struct {
	RunID      uuid.UUID
	Channel    string
	Providers  []string
	Version    string
	Outcome    pipeline.RunOutcome
	Detail     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Store implements the pipeline's RunRecorder and SequenceSource over
// Postgres.
type Store struct {
	db *sql.DB
}

var (
	_ pipeline.RunRecorder    = (*Store)(nil)
	_ pipeline.SequenceSource = (*Store)(nil)
)

// Open connects to the ledger database.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty ledger dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	db.SetMaxOpenConns(4)
	return &Store{db: db}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the ledger schema when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate run ledger: %w", err)
	}
	return nil
}

// RecordStart inserts the run row as it begins.
func (s *Store) RecordStart(ctx context.Context, runID uuid.UUID, channel string, providerIDs []string) error {
	query := `
		INSERT INTO catalog_runs (run_id, channel, providers, started_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, runID, channel, pq.Array(providerIDs), time.Now()); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// RecordFinish closes the run row with its outcome. An empty version stays
// NULL: runs that fail before allocation never carry one.
func (s *Store) RecordFinish(ctx context.Context, runID uuid.UUID, version string, outcome pipeline.RunOutcome, detail string) error {
	query := `
		UPDATE catalog_runs
		SET version = NULLIF($2, ''), outcome = $3, detail = $4, finished_at = $5
		WHERE run_id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, runID, version, string(outcome), detail, time.Now()); err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// NextRunSeq allocates the next run sequence. The sequence is global rather
// than per-date; versions only need to be distinct and increasing, and a
// global sequence stays monotonic across day boundaries too.
func (s *Store) NextRunSeq(ctx context.Context, date string) (int, error) {
	var seq int64
	row := s.db.QueryRowContext(ctx, `SELECT nextval('catalog_run_seq')`)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("allocate run sequence: %w", err)
	}
	return int(seq), nil
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, channel, providers, version, outcome, detail, started_at, finished_at
		FROM catalog_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			providers pq.StringArray
			version   sql.NullString
		)
		if err := rows.Scan(&run.RunID, &run.Channel, &providers, &version,
			&run.Outcome, &run.Detail, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Providers = providers
		run.Version = version.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
