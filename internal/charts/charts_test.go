package charts

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerplay/consumption-dashboard/internal/economy"
)

func day(d int) civil.Date {
	return civil.Date{Year: 2024, Month: time.January, Day: d}
}

func undimensioned() economy.Report {
	return economy.Report{
		Range: economy.DateRange{Start: day(1), End: day(2)},
		Daily: []economy.DailyAggregateRow{
			{Date: day(1), TotalOutflow: -90, TotalFreeInflow: 100, TotalPaidInflow: 50, TotalInflow: 150, Consumption: 60},
			{Date: day(2)},
		},
		FreePaid: []economy.FreePaidShareRow{
			{Date: day(1), FreeInflow: 100, PaidInflow: 50, FreeSharePct: 66.67, PaidSharePct: 33.33},
			{Date: day(2)},
		},
		SourceShares: []economy.SourceShareRow{
			{Date: day(1), Source: "rewards_race", FreeInflowAmount: 100, SharePct: 100},
			{Date: day(1), Source: "rewards_album", SharePct: 0},
		},
		RTP: []economy.RtpRow{
			{Date: day(1), Source: "rewards_race", FreeInflowAmount: 100, TotalOutflow: 90, RtpPct: 111.11},
			{Date: day(1), Source: "rewards_album", TotalOutflow: 90},
		},
	}
}

func TestConsumptionTrend_SinglePanel(t *testing.T) {
	fig := ConsumptionTrend(undimensioned())

	assert.Equal(t, 600, fig.Height)
	assert.Equal(t, "Daily Consumption Trend", fig.Title)
	require.Len(t, fig.Panels, 1)
	assert.Empty(t, fig.Panels[0].Title)
	require.Len(t, fig.Panels[0].Traces, 1)

	tr := fig.Panels[0].Traces[0]
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, tr.X)
	assert.Equal(t, []float64{60, 0}, tr.Y)
	assert.True(t, tr.ShowLegend)
}

func TestCreditsComponents_OutflowBelowZero(t *testing.T) {
	fig := CreditsComponents(undimensioned())

	assert.Equal(t, "group", fig.BarMode)
	assert.True(t, fig.YAxis.ZeroLine)
	traces := fig.Panels[0].Traces
	require.Len(t, traces, 2)
	assert.Equal(t, "Total Outflow", traces[0].Name)
	assert.Equal(t, -90.0, traces[0].Y[0])
	assert.Equal(t, "Total Inflow", traces[1].Name)
	assert.Equal(t, 150.0, traces[1].Y[0])
}

func TestFreePaidShare_Stacked(t *testing.T) {
	fig := FreePaidShare(undimensioned())

	assert.Equal(t, "stack", fig.BarMode)
	assert.Equal(t, []float64{0, 100}, fig.YAxis.Range)
	traces := fig.Panels[0].Traces
	require.Len(t, traces, 2)
	assert.Equal(t, []float64{100, 0}, traces[0].CustomData)
}

func TestPerSourceChartsUseStablePalette(t *testing.T) {
	shares := FreeShareBySource(undimensioned())
	traces := shares.Panels[0].Traces
	require.Len(t, traces, 2)
	assert.Equal(t, "rewards_album", traces[0].Name)
	assert.Equal(t, Set3[0], traces[0].Color)
	assert.Equal(t, "rewards_race", traces[1].Name)
	assert.Equal(t, Set3[1], traces[1].Color)

	rtp := RTPBySource(undimensioned())
	traces = rtp.Panels[0].Traces
	require.Len(t, traces, 2)
	assert.Equal(t, Set1[1], traces[1].Color)
	assert.Equal(t, []float64{111.11}, traces[1].Y)
}

func TestDimensionedFiguresHaveOnePanelPerValue(t *testing.T) {
	r := economy.Report{
		Dimension:       economy.DimensionPaidEver,
		DimensionValues: []string{"0", "1", "2"},
		Daily: []economy.DailyAggregateRow{
			{Date: day(1), DimensionValue: "0", Consumption: 10},
			{Date: day(1), DimensionValue: "1", Consumption: 20},
			{Date: day(1), DimensionValue: "2", Consumption: 30},
		},
	}

	fig := ConsumptionTrend(r)
	assert.Equal(t, 600, fig.Height)
	require.Len(t, fig.Panels, 3)
	for i, p := range fig.Panels {
		assert.Contains(t, p.Title, r.DimensionValues[i])
		require.Len(t, p.Traces, 1)
		assert.Equal(t, i == 0, p.Traces[0].ShowLegend)
	}
	assert.Equal(t, []float64{20}, fig.Panels[1].Traces[0].Y)

	r.DimensionValues = r.DimensionValues[:1]
	assert.Equal(t, 200, ConsumptionTrend(r).Height)
}

func TestEmptyReport(t *testing.T) {
	figs := All(economy.EmptyReport(economy.Options{}))
	require.Len(t, figs, len(Names))
	for i, f := range figs {
		assert.Equal(t, Names[i], f.Name)
		assert.True(t, f.Empty(), f.Name)
	}
}

func TestBuildUnknownChart(t *testing.T) {
	_, err := Build("pie", undimensioned())
	assert.Error(t, err)
}
