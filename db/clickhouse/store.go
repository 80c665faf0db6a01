// Package clickhouse provides the ClickHouse offer history sink
// Optimized for columnar price-over-time analytics across published catalogs
package clickhouse

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"

	"gpu-catalog/catalog"
	"gpu-catalog/pipeline"
)

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "gpucatalog",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store implements the offer history sink using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

var _ pipeline.HistorySink = (*Store)(nil)

// NewStore creates a new ClickHouse history store
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// NewStoreFromAddr creates a store from a host:port address, with default
// credentials and database
func NewStoreFromAddr(addr string) (*Store, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("malformed clickhouse address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("malformed clickhouse address %q: %w", addr, err)
	}

	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	return NewStore(cfg)
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Migrate creates the history table when missing
func (s *Store) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS offer_history (
			version       String,
			channel       String,
			provider      String,
			instance_name String,
			location      String,
			price         Decimal(18, 6),
			spot_price    Nullable(Decimal(18, 6)),
			gpu_count     Int32,
			gpu_name      String,
			gpu_memory    Float64,
			gpu_vendor    String,
			cpu_count     Int32,
			memory        Float64,
			disk_size     Nullable(Float64),
			available     UInt8,
			published_at  DateTime
		)
		ENGINE = MergeTree
		ORDER BY (provider, instance_name, location, published_at)
	`
	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create offer_history: %w", err)
	}
	return nil
}

// =============================================================================
// HISTORY OPERATIONS
// =============================================================================

// InsertOffers batch-inserts the published records tagged with their version
// and channel
func (s *Store) InsertOffers(ctx context.Context, version, channel string, records []catalog.OfferRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO offer_history (
			version, channel, provider, instance_name, location,
			price, spot_price, gpu_count, gpu_name, gpu_memory, gpu_vendor,
			cpu_count, memory, disk_size, available, published_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now()
	for _, rec := range records {
		if err := batch.Append(
			version, channel, rec.Provider, rec.InstanceName, rec.Location,
			rec.Price, rec.SpotPrice, int32(rec.GPUCount), rec.GPUName, rec.GPUMemory, string(rec.GPUVendor),
			int32(rec.CPUCount), rec.Memory, rec.DiskSize, boolToUInt8(rec.Available), now,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// PricePoint is one historical price observation for a GPU model
type PricePoint struct {
	Version      string
	Channel      string
	Provider     string
	InstanceName string
	Location     string
	Price        decimal.Decimal
	GPUCount     int32
	PublishedAt  time.Time
}

// RecentPrices returns the newest observations for a GPU model, matched by
// case-insensitive substring
func (s *Store) RecentPrices(ctx context.Context, gpuName string, limit int) ([]PricePoint, error) {
	query := `
		SELECT version, channel, provider, instance_name, location, price, gpu_count, published_at
		FROM offer_history
		WHERE positionCaseInsensitive(gpu_name, ?) > 0
		ORDER BY published_at DESC, price ASC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, gpuName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(
			&p.Version, &p.Channel, &p.Provider, &p.InstanceName,
			&p.Location, &p.Price, &p.GPUCount, &p.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		points = append(points, p)
	}
	return points, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
