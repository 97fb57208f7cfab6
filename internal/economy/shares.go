package economy

import (
	"math"
	"sort"
)

type sourceDayKey struct {
	date   Date
	dim    string
	source string
}

type playerDayKey struct {
	date   Date
	dim    string
	player string
}

// SourceShares gives each free source's percentage of the day's free inflow.
// Every source seen in the range gets a row for every (date, dimension value),
// so shares of one (date, dimension value) sum to 100 or, with no free inflow, 0.
func SourceShares(events []Event, opts Options) []SourceShareRow {
	return shareRows(newFrame(events, opts))
}

// SourceRTP gives each free source's inflow as a percentage of the day's
// outflow. Outflow is counted once per player-day.
func SourceRTP(events []Event, opts Options) []RtpRow {
	return rtpRows(newFrame(events, opts))
}

// FreePaidShares derives the free and paid percentages from daily rows.
func FreePaidShares(daily []DailyAggregateRow) []FreePaidShareRow {
	out := make([]FreePaidShareRow, 0, len(daily))
	for _, r := range daily {
		inflow := r.TotalFreeInflow + r.TotalPaidInflow
		out = append(out, FreePaidShareRow{
			Date:           r.Date,
			DimensionValue: r.DimensionValue,
			FreeInflow:     r.TotalFreeInflow,
			PaidInflow:     r.TotalPaidInflow,
			FreeSharePct:   percent(r.TotalFreeInflow, inflow),
			PaidSharePct:   percent(r.TotalPaidInflow, inflow),
		})
	}
	return out
}

func shareRows(f frame) []SourceShareRow {
	amounts, sources := freeInflowBySource(f)
	sparse := make([]SourceShareRow, 0, len(amounts))
	for k, v := range amounts {
		sparse = append(sparse, SourceShareRow{Date: k.date, DimensionValue: k.dim, Source: k.source, FreeInflowAmount: v})
	}
	rows := FillDates(sparse, f.rng, seriesKeys(f.dims, sources), shareKey, zeroShare)

	totals := make(map[dayKey]float64)
	for _, r := range rows {
		totals[dayKey{r.Date, r.DimensionValue}] += r.FreeInflowAmount
	}
	for i := range rows {
		rows[i].SharePct = percent(rows[i].FreeInflowAmount, totals[dayKey{rows[i].Date, rows[i].DimensionValue}])
	}
	return rows
}

func rtpRows(f frame) []RtpRow {
	amounts, sources := freeInflowBySource(f)
	sparse := make([]RtpRow, 0, len(amounts))
	for k, v := range amounts {
		sparse = append(sparse, RtpRow{Date: k.date, DimensionValue: k.dim, Source: k.source, FreeInflowAmount: v})
	}
	rows := FillDates(sparse, f.rng, seriesKeys(f.dims, sources), rtpKey, zeroRTP)

	outflow := playerDayOutflow(f)
	for i := range rows {
		out := outflow[dayKey{rows[i].Date, rows[i].DimensionValue}]
		rows[i].TotalOutflow = out
		rows[i].RtpPct = percent(rows[i].FreeInflowAmount, out)
	}
	return rows
}

// freeInflowBySource sums free inflow per (date, dimension value, source) and
// returns the sources seen: catalog sources first in column order, then any
// others alphabetically.
func freeInflowBySource(f frame) (map[sourceDayKey]float64, []string) {
	parts := make(map[sourceDayKey][]float64)
	seen := make(map[string]bool)
	for _, e := range f.events {
		if e.Direction != Inflow || f.catalog.IsPaid(e.Source) {
			continue
		}
		k := sourceDayKey{e.Date, e.Attributes.Value(f.dim), e.Source}
		parts[k] = append(parts[k], math.Abs(e.Amount))
		seen[e.Source] = true
	}
	amounts := make(map[sourceDayKey]float64, len(parts))
	for k, v := range parts {
		amounts[k] = sortedSum(v)
	}

	sources := make([]string, 0, len(seen))
	for _, name := range f.catalog.FreeInflowSources() {
		if seen[name] {
			sources = append(sources, name)
			delete(seen, name)
		}
	}
	extra := make([]string, 0, len(seen))
	for name := range seen {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return amounts, append(sources, extra...)
}

// playerDayOutflow totals outflow magnitude per (date, dimension value).
// A player-day contributes its reported PlayerDayOutflow once when any of its
// rows carries one, otherwise the magnitude of its summed outflow amounts.
// Pre-summed events contribute their own magnitude.
func playerDayOutflow(f frame) map[dayKey]float64 {
	parts := make(map[dayKey][]float64)
	sums := make(map[playerDayKey][]float64)
	reported := make(map[playerDayKey]float64)

	for _, e := range f.events {
		dim := e.Attributes.Value(f.dim)
		if e.PlayerID == "" {
			if e.Direction == Outflow {
				k := dayKey{e.Date, dim}
				parts[k] = append(parts[k], math.Abs(e.Amount))
			}
			continue
		}
		k := playerDayKey{e.Date, dim, e.PlayerID}
		if e.PlayerDayOutflow != nil {
			// rows of one player-day repeat the same total; take the largest
			v := math.Abs(*e.PlayerDayOutflow)
			if cur, ok := reported[k]; !ok || v > cur {
				reported[k] = v
			}
		}
		if e.Direction == Outflow {
			sums[k] = append(sums[k], e.Amount)
		}
	}

	for k, v := range reported {
		dk := dayKey{k.date, k.dim}
		parts[dk] = append(parts[dk], v)
	}
	for k, v := range sums {
		if _, ok := reported[k]; ok {
			continue
		}
		dk := dayKey{k.date, k.dim}
		parts[dk] = append(parts[dk], math.Abs(sortedSum(v)))
	}

	totals := make(map[dayKey]float64, len(parts))
	for k, v := range parts {
		totals[k] = sortedSum(v)
	}
	return totals
}
