package charts

import (
	"sort"

	"github.com/peerplay/consumption-dashboard/internal/economy"
)

const (
	colorDarkBlue = "darkblue"
	colorOrange   = "orange"
	colorGreen    = "green"
	colorBlue     = "blue"

	shareHover = "<b>%{fullData.name}</b><br>Date: %{x}<br>Share: %{y:.2f}%<br>Credits: %{customdata:,.0f}<extra></extra>"
)

// Set3 and Set1 are the qualitative palettes used for per-source series.
var (
	Set3 = []string{
		"rgb(141,211,199)", "rgb(255,255,179)", "rgb(190,186,218)", "rgb(251,128,114)",
		"rgb(128,177,211)", "rgb(253,180,98)", "rgb(179,222,105)", "rgb(252,205,229)",
		"rgb(217,217,217)", "rgb(188,128,189)", "rgb(204,235,197)", "rgb(255,237,111)",
	}
	Set1 = []string{
		"rgb(228,26,28)", "rgb(55,126,184)", "rgb(77,175,74)", "rgb(152,78,163)",
		"rgb(255,127,0)", "rgb(255,255,51)", "rgb(166,86,40)", "rgb(247,129,191)",
		"rgb(153,153,153)",
	}
)

// ConsumptionTrend is the daily consumption line.
func ConsumptionTrend(r economy.Report) Figure {
	fig := newFigure(ConsumptionTrendChart, "Daily Consumption Trend", r)
	fig.YAxis = Axis{Title: "Consumption %"}
	for i, p := range panelsFor(r) {
		rows := dailyFor(r.Daily, p.value)
		panel := Panel{Title: p.title, Traces: []Trace{}}
		if len(rows) > 0 {
			t := Trace{Type: "scatter", Mode: "lines+markers", Name: "Consumption %", Color: colorDarkBlue, ShowLegend: i == 0}
			for _, row := range rows {
				t.X = append(t.X, row.Date.String())
				t.Y = append(t.Y, row.Consumption)
			}
			panel.Traces = append(panel.Traces, t)
		}
		fig.Panels = append(fig.Panels, panel)
	}
	return fig
}

// CreditsComponents shows grouped bars: outflow below zero, total inflow above.
func CreditsComponents(r economy.Report) Figure {
	fig := newFigure(CreditsComponentsChart, "Credits Components", r)
	fig.BarMode = "group"
	fig.YAxis = Axis{Title: "Credits", ZeroLine: true}
	for i, p := range panelsFor(r) {
		rows := dailyFor(r.Daily, p.value)
		panel := Panel{Title: p.title, Traces: []Trace{}}
		if len(rows) > 0 {
			out := Trace{Type: "bar", Name: "Total Outflow", Color: colorOrange, ShowLegend: i == 0}
			in := Trace{Type: "bar", Name: "Total Inflow", Color: colorDarkBlue, ShowLegend: i == 0}
			for _, row := range rows {
				d := row.Date.String()
				out.X = append(out.X, d)
				out.Y = append(out.Y, row.TotalOutflow)
				in.X = append(in.X, d)
				in.Y = append(in.Y, row.TotalFreeInflow+row.TotalPaidInflow)
			}
			panel.Traces = append(panel.Traces, out, in)
		}
		fig.Panels = append(fig.Panels, panel)
	}
	return fig
}

// FreePaidShare stacks the free and paid percentages of each day's inflow.
func FreePaidShare(r economy.Report) Figure {
	fig := newFigure(FreePaidShareChart, "Daily Free vs Paid Inflow", r)
	fig.BarMode = "stack"
	fig.YAxis = Axis{Title: "Share (%)", Range: []float64{0, 100}}
	for i, p := range panelsFor(r) {
		panel := Panel{Title: p.title, Traces: []Trace{}}
		var rows []economy.FreePaidShareRow
		for _, row := range r.FreePaid {
			if row.DimensionValue == p.value {
				rows = append(rows, row)
			}
		}
		if len(rows) > 0 {
			free := Trace{Type: "bar", Name: "Free Inflow", Color: colorGreen, ShowLegend: i == 0, HoverTemplate: shareHover}
			paid := Trace{Type: "bar", Name: "Paid Inflow", Color: colorBlue, ShowLegend: i == 0, HoverTemplate: shareHover}
			for _, row := range rows {
				d := row.Date.String()
				free.X = append(free.X, d)
				free.Y = append(free.Y, row.FreeSharePct)
				free.CustomData = append(free.CustomData, row.FreeInflow)
				paid.X = append(paid.X, d)
				paid.Y = append(paid.Y, row.PaidSharePct)
				paid.CustomData = append(paid.CustomData, row.PaidInflow)
			}
			panel.Traces = append(panel.Traces, free, paid)
		}
		fig.Panels = append(fig.Panels, panel)
	}
	return fig
}

// FreeShareBySource stacks each free source's share of the day's free inflow.
func FreeShareBySource(r economy.Report) Figure {
	fig := newFigure(FreeShareBySourceChart, "Daily Free Share by Source", r)
	fig.BarMode = "stack"
	fig.YAxis = Axis{Title: "Share (%)"}

	sources := distinctSources(r.SourceShares, func(s economy.SourceShareRow) string { return s.Source })
	for i, p := range panelsFor(r) {
		panel := Panel{Title: p.title, Traces: []Trace{}}
		for j, src := range sources {
			t := Trace{Type: "bar", Name: src, Color: Set3[j%len(Set3)], ShowLegend: i == 0, HoverTemplate: shareHover}
			for _, row := range r.SourceShares {
				if row.Source != src || row.DimensionValue != p.value {
					continue
				}
				t.X = append(t.X, row.Date.String())
				t.Y = append(t.Y, row.SharePct)
				t.CustomData = append(t.CustomData, row.FreeInflowAmount)
			}
			if len(t.X) > 0 {
				panel.Traces = append(panel.Traces, t)
			}
		}
		fig.Panels = append(fig.Panels, panel)
	}
	return fig
}

// RTPBySource draws one RTP line per free source.
func RTPBySource(r economy.Report) Figure {
	fig := newFigure(RTPBySourceChart, "Daily RTP by Source", r)
	fig.YAxis = Axis{Title: "RTP (%)"}

	sources := distinctSources(r.RTP, func(s economy.RtpRow) string { return s.Source })
	for i, p := range panelsFor(r) {
		panel := Panel{Title: p.title, Traces: []Trace{}}
		for j, src := range sources {
			t := Trace{Type: "scatter", Mode: "lines+markers", Name: src, Color: Set1[j%len(Set1)], ShowLegend: i == 0}
			for _, row := range r.RTP {
				if row.Source != src || row.DimensionValue != p.value {
					continue
				}
				t.X = append(t.X, row.Date.String())
				t.Y = append(t.Y, row.RtpPct)
			}
			if len(t.X) > 0 {
				panel.Traces = append(panel.Traces, t)
			}
		}
		fig.Panels = append(fig.Panels, panel)
	}
	return fig
}

func dailyFor(rows []economy.DailyAggregateRow, value string) []economy.DailyAggregateRow {
	var out []economy.DailyAggregateRow
	for _, row := range rows {
		if row.DimensionValue == value {
			out = append(out, row)
		}
	}
	return out
}

// distinctSources returns the sources in alphabetical order, which fixes
// each source's palette color across panels.
func distinctSources[T any](rows []T, source func(T) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		s := source(row)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
