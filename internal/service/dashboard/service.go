package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/peerplay/consumption-dashboard/internal/charts"
	"github.com/peerplay/consumption-dashboard/internal/economy"
	"github.com/peerplay/consumption-dashboard/internal/metrics"
	"github.com/peerplay/consumption-dashboard/internal/pkg/logger"
)

// Request is one dashboard view: date range, split dimension and the
// sidebar's attribute selections.
type Request struct {
	Range      economy.DateRange
	Dimension  economy.Dimension
	Selections map[economy.Dimension][]string
}

// Result is a report with its figures.
type Result struct {
	Report economy.Report  `json:"report"`
	Charts []charts.Figure `json:"charts"`
}

// DimensionOption is one entry of the dimension picker.
type DimensionOption struct {
	Value economy.Dimension `json:"value"`
	Label string            `json:"label"`
}

// Options feeds the sidebar: slider bounds and multi-select values.
type Options struct {
	Bounds      economy.DateRange              `json:"bounds"`
	Dimensions  []DimensionOption              `json:"dimensions"`
	Filters     map[economy.Dimension][]string `json:"filters"`
	PaidSources []string                       `json:"paid_sources"`
}

// Service implements dashboard business logic. It is safe for concurrent use.
type Service struct {
	rows    RowSource
	catalog *economy.Catalog
	window  int
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a dashboard service. windowDays limits the default
// fetch to recent days; 0 loads everything.
func NewService(rows RowSource, catalog *economy.Catalog, windowDays int, m *metrics.Metrics) *Service {
	if catalog == nil {
		catalog = economy.DefaultCatalog(economy.ShapeWide)
	}
	logger.Info("paid inflow classification", "sources", strings.Join(catalog.PaidSources(), ","))
	return &Service{
		rows:    rows,
		catalog: catalog,
		window:  windowDays,
		metrics: m,
		now:     time.Now,
	}
}

// Dashboard builds the report and every chart for req. On a fetch failure
// it returns an empty result together with an ErrDataUnavailable error.
func (s *Service) Dashboard(ctx context.Context, req Request) (Result, error) {
	opts := economy.Options{Dimension: req.Dimension, Range: req.Range, Catalog: s.catalog}

	events, err := s.events(ctx, req.Range.Start)
	if err != nil {
		empty := economy.EmptyReport(opts)
		return Result{Report: empty, Charts: charts.All(empty)}, err
	}

	start := time.Now()
	filtered := economy.Filter{Selections: req.Selections}.Apply(events)
	report := economy.Build(filtered, opts)
	figs := charts.All(report)
	s.metrics.ObserveBuild(time.Since(start))

	return Result{Report: report, Charts: figs}, nil
}

// Options returns the date bounds and the distinct value of every filterable
// attribute. Bounds come from the table and fall back to the loaded rows.
func (s *Service) Options(ctx context.Context) (Options, error) {
	out := Options{
		Dimensions:  dimensionOptions(),
		Filters:     map[economy.Dimension][]string{},
		PaidSources: s.catalog.PaidSources(),
	}

	events, err := s.events(ctx, economy.Date{})
	if err != nil {
		return out, err
	}
	out.Filters = economy.FilterOptions(events)

	bounds, err := s.rows.DateBounds(ctx)
	if err != nil {
		logger.Warn("date bounds query failed, using loaded rows", "error", err)
	}
	if err != nil || !bounds.Valid() {
		bounds = economy.ObservedRange(events)
	}
	out.Bounds = bounds
	return out, nil
}

// Refresh drops cached rows so the next request reads the warehouse.
func (s *Service) Refresh(ctx context.Context) error {
	inv, ok := s.rows.(Invalidator)
	if !ok {
		return nil
	}
	if err := inv.Invalidate(ctx); err != nil {
		return err
	}
	logger.Info("row cache invalidated")
	return nil
}

// since is the fetch lower bound: the load window, widened to start when
// the request reaches back further.
func (s *Service) since(start economy.Date) *economy.Date {
	if s.window <= 0 {
		return nil
	}
	d := civil.DateOf(s.now()).AddDays(-s.window)
	if start.IsValid() && start.Before(d) {
		d = start
	}
	return &d
}

func (s *Service) events(ctx context.Context, start economy.Date) ([]economy.Event, error) {
	rows, err := s.rows.FetchRows(ctx, s.since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	return economy.Normalize(rows, s.catalog), nil
}

func dimensionOptions() []DimensionOption {
	out := make([]DimensionOption, 0, len(economy.Dimensions)+1)
	out = append(out, DimensionOption{Value: economy.DimensionNone, Label: economy.DimensionNone.Label()})
	for _, d := range economy.Dimensions {
		out = append(out, DimensionOption{Value: d, Label: d.Label()})
	}
	return out
}
