// Package charts turns report tables into figure descriptions a Plotly
// front end can draw directly.
package charts

import (
	"fmt"

	"github.com/peerplay/consumption-dashboard/internal/economy"
)

// Chart names accepted by Build.
const (
	ConsumptionTrendChart  = "consumption-trend"
	CreditsComponentsChart = "credits-components"
	FreePaidShareChart     = "free-paid-share"
	FreeShareBySourceChart = "free-share-by-source"
	RTPBySourceChart       = "rtp-by-source"
)

// Names lists every chart in page order.
var Names = []string{
	ConsumptionTrendChart,
	CreditsComponentsChart,
	FreePaidShareChart,
	FreeShareBySourceChart,
	RTPBySourceChart,
}

const (
	singleHeight = 600
	panelHeight  = 200
)

// Figure is one chart: shared axes and layout, one panel per dimension value.
type Figure struct {
	Name      string  `json:"name"`
	Title     string  `json:"title"`
	Height    int     `json:"height"`
	BarMode   string  `json:"barmode,omitempty"`
	HoverMode string  `json:"hovermode"`
	XAxis     Axis    `json:"xaxis"`
	YAxis     Axis    `json:"yaxis"`
	Panels    []Panel `json:"panels"`
}

// Empty reports whether the figure has nothing to draw.
func (f Figure) Empty() bool {
	for _, p := range f.Panels {
		if len(p.Traces) > 0 {
			return false
		}
	}
	return true
}

// Axis describes one axis. Range is fixed when set.
type Axis struct {
	Title    string    `json:"title"`
	Range    []float64 `json:"range,omitempty"`
	ZeroLine bool      `json:"zeroline,omitempty"`
}

// Panel is one subplot. Title is empty for an undimensioned figure.
type Panel struct {
	Title  string  `json:"title,omitempty"`
	Traces []Trace `json:"traces"`
}

// Trace is one series in plotly terms.
type Trace struct {
	Type          string    `json:"type"`
	Mode          string    `json:"mode,omitempty"`
	Name          string    `json:"name"`
	X             []string  `json:"x"`
	Y             []float64 `json:"y"`
	CustomData    []float64 `json:"customdata,omitempty"`
	Color         string    `json:"color"`
	ShowLegend    bool      `json:"showlegend"`
	HoverTemplate string    `json:"hovertemplate,omitempty"`
}

// Build returns the named chart for r.
func Build(name string, r economy.Report) (Figure, error) {
	switch name {
	case ConsumptionTrendChart:
		return ConsumptionTrend(r), nil
	case CreditsComponentsChart:
		return CreditsComponents(r), nil
	case FreePaidShareChart:
		return FreePaidShare(r), nil
	case FreeShareBySourceChart:
		return FreeShareBySource(r), nil
	case RTPBySourceChart:
		return RTPBySource(r), nil
	}
	return Figure{}, fmt.Errorf("unknown chart %q", name)
}

// All builds every chart in page order.
func All(r economy.Report) []Figure {
	figs := make([]Figure, 0, len(Names))
	for _, name := range Names {
		f, _ := Build(name, r)
		figs = append(figs, f)
	}
	return figs
}

// panelSpec is one subplot slot: its title and the dimension value it shows.
type panelSpec struct {
	title string
	value string
}

func panelsFor(r economy.Report) []panelSpec {
	if r.Dimension == economy.DimensionNone {
		return []panelSpec{{}}
	}
	specs := make([]panelSpec, len(r.DimensionValues))
	for i, v := range r.DimensionValues {
		specs[i] = panelSpec{title: fmt.Sprintf("%s: %s", r.Dimension.Label(), v), value: v}
	}
	return specs
}

func newFigure(name, title string, r economy.Report) Figure {
	height := singleHeight
	if r.Dimension != economy.DimensionNone {
		height = panelHeight * max(len(r.DimensionValues), 1)
	}
	return Figure{
		Name:      name,
		Title:     title,
		Height:    height,
		HoverMode: "x unified",
		XAxis:     Axis{Title: "Date"},
		Panels:    []Panel{},
	}
}
