package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/peerplay/consumption-dashboard/internal/economy"
)

// DefaultMaxBytesBilled caps a single query at 10 GB.
const DefaultMaxBytesBilled int64 = 10_000_000_000

// BigQueryLoader reads the table with the BigQuery client.
type BigQueryLoader struct {
	client         *bigquery.Client
	table          TableRef
	shape          economy.Shape
	maxBytesBilled int64
}

// TableRef is a fully qualified project.dataset.table name.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// ParseTableRef accepts "project.dataset.table" or "dataset.table"; the
// latter takes the default project.
func ParseTableRef(s, defaultProject string) (TableRef, error) {
	parts := strings.Split(strings.Trim(s, "`"), ".")
	switch len(parts) {
	case 3:
		return TableRef{Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil
	case 2:
		if defaultProject == "" {
			return TableRef{}, fmt.Errorf("table %q has no project and no default project is set", s)
		}
		return TableRef{Project: defaultProject, Dataset: parts[0], Table: parts[1]}, nil
	}
	return TableRef{}, fmt.Errorf("invalid table reference %q", s)
}

func (t TableRef) String() string {
	return fmt.Sprintf("`%s.%s.%s`", t.Project, t.Dataset, t.Table)
}

// NewBigQueryLoader creates a client from inline service-account JSON, a
// credentials file, or application default credentials, in that order.
func NewBigQueryLoader(ctx context.Context, cfg Config) (*BigQueryLoader, error) {
	ref, err := ParseTableRef(cfg.Table, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	project := cfg.ProjectID
	if project == "" {
		project = ref.Project
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		creds, err := NormalizeCredentialsJSON(cfg.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		log.Println("Warehouse: no BigQuery credentials configured, using application default credentials")
	}

	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}

	maxBytes := cfg.MaxBytesBilled
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytesBilled
	}
	return &BigQueryLoader{client: client, table: ref, shape: cfg.Shape, maxBytesBilled: maxBytes}, nil
}

// NormalizeCredentialsJSON undoes the quoting that secret stores tend to
// add around service-account JSON.
func NormalizeCredentialsJSON(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
		return []byte(s), nil
	}
	s = strings.Trim(s, `"'`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	if !json.Valid([]byte(s)) {
		return nil, errors.New("invalid service account JSON")
	}
	return []byte(s), nil
}

// Close closes the client.
func (l *BigQueryLoader) Close() error {
	return l.client.Close()
}

// Ping checks that the table is reachable.
func (l *BigQueryLoader) Ping(ctx context.Context) error {
	_, err := l.client.DatasetInProject(l.table.Project, l.table.Dataset).Table(l.table.Table).Metadata(ctx)
	return err
}

func (l *BigQueryLoader) query(sql string) *bigquery.Query {
	q := l.client.Query(sql)
	q.MaxBytesBilled = l.maxBytesBilled
	return q
}

// FetchRows selects every row on or after since, ordered by date.
func (l *BigQueryLoader) FetchRows(ctx context.Context, since *economy.Date) ([]economy.RawRow, error) {
	sql := fmt.Sprintf("SELECT * FROM %s", l.table)
	if since != nil {
		sql += " WHERE date >= @since"
	}
	sql += " ORDER BY date"

	q := l.query(sql)
	if since != nil {
		q.Parameters = []bigquery.QueryParameter{{Name: "since", Value: *since}}
	}

	start := time.Now()
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", l.table, err)
	}

	var out []economy.RawRow
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		out = append(out, DecodeRow(recordFromValues(row), l.shape))
	}

	log.Printf("Warehouse: fetched %d rows from %s in %v", len(out), l.table, time.Since(start).Round(time.Millisecond))
	return out, nil
}

// DateBounds returns MIN(date) and MAX(date). An empty table yields a zero range.
func (l *BigQueryLoader) DateBounds(ctx context.Context) (economy.DateRange, error) {
	sql := fmt.Sprintf("SELECT MIN(date) AS min_date, MAX(date) AS max_date FROM %s", l.table)
	it, err := l.query(sql).Read(ctx)
	if err != nil {
		return economy.DateRange{}, fmt.Errorf("failed to get date bounds: %w", err)
	}
	var row map[string]bigquery.Value
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return economy.DateRange{}, nil
		}
		return economy.DateRange{}, fmt.Errorf("failed to read date bounds: %w", err)
	}
	rec := recordFromValues(row)
	return economy.DateRange{Start: rec.Date("min_date"), End: rec.Date("max_date")}, nil
}

func recordFromValues(row map[string]bigquery.Value) Record {
	rec := make(Record, len(row))
	for k, v := range row {
		rec[strings.ToLower(k)] = v
	}
	return rec
}
