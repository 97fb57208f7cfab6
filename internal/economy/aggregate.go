package economy

import (
	"math"
	"sort"
)

// Options controls how events are grouped.
type Options struct {
	// Dimension splits every table by one attribute. DimensionNone disables the split.
	Dimension Dimension
	// Range restricts the output to an inclusive range. An invalid range
	// falls back to the observed min/max date of the events.
	Range DateRange
	// Catalog decides paid vs free inflow. Nil uses the wide-table default.
	Catalog *Catalog
}

// frame is the resolved view shared by every table of one request.
type frame struct {
	dim     Dimension
	rng     DateRange
	dims    []string
	events  []Event
	catalog *Catalog
}

// newFrame resolves the date range and dimension values once. Dimension
// values are collected from every event so that a value with no data inside
// the range still gets zero rows.
func newFrame(events []Event, opts Options) frame {
	f := frame{dim: opts.Dimension, catalog: opts.Catalog}
	if f.catalog == nil {
		f.catalog = DefaultCatalog(ShapeWide)
	}

	values := make(map[string]struct{})
	var observed DateRange
	for _, e := range events {
		if f.dim != DimensionNone {
			values[e.Attributes.Value(f.dim)] = struct{}{}
		}
		if !observed.Start.IsValid() || e.Date.Before(observed.Start) {
			observed.Start = e.Date
		}
		if !observed.End.IsValid() || e.Date.After(observed.End) {
			observed.End = e.Date
		}
	}

	f.rng = opts.Range
	if !f.rng.Valid() {
		f.rng = observed
	}
	if f.dim == DimensionNone {
		f.dims = []string{""}
	} else {
		f.dims = distinctNatural(values)
	}

	f.events = make([]Event, 0, len(events))
	for _, e := range events {
		if f.rng.Valid() && f.rng.Contains(e.Date) {
			f.events = append(f.events, e)
		}
	}
	return f
}

type dayKey struct {
	date Date
	dim  string
}

type dayTotals struct {
	outflow []float64
	free    []float64
	paid    []float64
}

// DailyAggregates sums outflow and free/paid inflow per date and dimension
// value. Only groups with at least one event are returned; use FillDailyGaps
// for a dense table.
func DailyAggregates(events []Event, opts Options) []DailyAggregateRow {
	return dailyRows(newFrame(events, opts))
}

func dailyRows(f frame) []DailyAggregateRow {
	totals := make(map[dayKey]*dayTotals)
	for _, e := range f.events {
		k := dayKey{date: e.Date, dim: e.Attributes.Value(f.dim)}
		t, ok := totals[k]
		if !ok {
			t = &dayTotals{}
			totals[k] = t
		}
		amount := math.Abs(e.Amount)
		switch e.Direction {
		case Outflow:
			t.outflow = append(t.outflow, amount)
		case Inflow:
			if f.catalog.IsPaid(e.Source) {
				t.paid = append(t.paid, amount)
			} else {
				t.free = append(t.free, amount)
			}
		}
	}

	rows := make([]DailyAggregateRow, 0, len(totals))
	for k, t := range totals {
		outflow, free, paid := sortedSum(t.outflow), sortedSum(t.free), sortedSum(t.paid)
		inflow := free + paid
		rows = append(rows, DailyAggregateRow{
			Date:            k.date,
			DimensionValue:  k.dim,
			TotalOutflow:    negate(outflow),
			TotalFreeInflow: free,
			TotalPaidInflow: paid,
			TotalInflow:     inflow,
			Consumption:     percent(outflow, inflow),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date.Before(rows[j].Date)
		}
		return NaturalLess(rows[i].DimensionValue, rows[j].DimensionValue)
	})
	return rows
}

// percent is part/whole*100, zero when whole is not positive.
func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return finite(part / whole * 100)
}

// negate avoids emitting -0.
func negate(v float64) float64 {
	if v == 0 {
		return 0
	}
	return -v
}
