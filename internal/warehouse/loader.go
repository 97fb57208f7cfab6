package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/peerplay/consumption-dashboard/internal/economy"
)

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported warehouse driver")

// Loader reads the daily consumption table. An empty result is not an error.
type Loader interface {
	// FetchRows returns every row dated on or after since; nil since means all rows.
	FetchRows(ctx context.Context, since *economy.Date) ([]economy.RawRow, error)
	// DateBounds returns the min and max date in the table.
	DateBounds(ctx context.Context) (economy.DateRange, error)
	Ping(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverBigQuery   = "bigquery"
	DriverSnowflake  = "snowflake"
	DriverClickHouse = "clickhouse"
	DriverPostgres   = "postgres"
)

// Config holds warehouse connection settings.
type Config struct {
	Driver string
	Table  string
	Shape  economy.Shape

	// BigQuery
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
	MaxBytesBilled  int64

	// SQL drivers
	DSN              string
	ConnectionString string
	Warehouse        string
}

// Open builds the Loader for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Loader, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("warehouse table is required")
	}
	switch strings.ToLower(cfg.Driver) {
	case "", DriverBigQuery:
		return NewBigQueryLoader(ctx, cfg)
	case DriverSnowflake, DriverClickHouse, DriverPostgres:
		return OpenSQL(cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
}

// Ping checks connectivity, retrying with exponential backoff.
func Ping(ctx context.Context, l Loader, maxRetries uint64) error {
	attempt := 0
	op := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := l.Ping(pingCtx); err != nil {
			log.Printf("Warehouse: ping attempt %d failed: %v", attempt, err)
			return err
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("failed to reach warehouse after %d attempts: %w", attempt, err)
	}
	return nil
}
