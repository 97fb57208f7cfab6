package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
	_ "github.com/lib/pq"                      // Postgres driver

	"github.com/peerplay/consumption-dashboard/internal/economy"
)

// SQLLoader reads the table through database/sql. Every column is selected
// so that schema drift degrades to missing (zero) values instead of errors.
type SQLLoader struct {
	db     *sql.DB
	driver string
	table  string
	shape  economy.Shape
}

// OpenSQL opens a pooled connection for one of the SQL drivers.
func OpenSQL(cfg Config) (*SQLLoader, error) {
	driver := strings.ToLower(cfg.Driver)
	dsn := cfg.DSN
	if driver == DriverSnowflake && dsn == "" {
		sf := ParseConnectionString(cfg.ConnectionString)
		if cfg.Warehouse != "" {
			sf.Warehouse = cfg.Warehouse
		}
		var err error
		if dsn, err = sf.DSN(); err != nil {
			return nil, err
		}
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s: connection string is required", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewSQLLoader(db, driver, cfg.Table, cfg.Shape), nil
}

// NewSQLLoader wraps an existing connection.
func NewSQLLoader(db *sql.DB, driver, table string, shape economy.Shape) *SQLLoader {
	return &SQLLoader{db: db, driver: driver, table: table, shape: shape}
}

// DB exposes the pool, used for Postgres advisory locks.
func (l *SQLLoader) DB() *sql.DB { return l.db }

// Driver is the database/sql driver name.
func (l *SQLLoader) Driver() string { return l.driver }

// Close closes the database connection
func (l *SQLLoader) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (l *SQLLoader) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *SQLLoader) placeholder() string {
	if l.driver == DriverPostgres {
		return "$1"
	}
	return "?"
}

// FetchRows selects every row on or after since, ordered by date.
func (l *SQLLoader) FetchRows(ctx context.Context, since *economy.Date) ([]economy.RawRow, error) {
	query := fmt.Sprintf("SELECT * FROM %s", l.table)
	var args []any
	if since != nil {
		query += " WHERE date >= " + l.placeholder()
		args = append(args, since.String())
	}
	query += " ORDER BY date"

	start := time.Now()
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", l.table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []economy.RawRow
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, DecodeRow(recordFromColumns(columns, values), l.shape))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	log.Printf("Warehouse: fetched %d rows from %s in %v", len(out), l.table, time.Since(start).Round(time.Millisecond))
	return out, nil
}

// DateBounds returns MIN(date) and MAX(date). An empty table yields a zero range.
func (l *SQLLoader) DateBounds(ctx context.Context) (economy.DateRange, error) {
	query := fmt.Sprintf("SELECT MIN(date) AS min_date, MAX(date) AS max_date FROM %s", l.table)

	var lo, hi any
	if err := l.db.QueryRowContext(ctx, query).Scan(&lo, &hi); err != nil {
		return economy.DateRange{}, fmt.Errorf("failed to get date bounds: %w", err)
	}
	rec := Record{"min_date": lo, "max_date": hi}
	return economy.DateRange{Start: rec.Date("min_date"), End: rec.Date("max_date")}, nil
}
