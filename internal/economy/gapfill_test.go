package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillDailyGaps_EmptyInputOverRequestedRange(t *testing.T) {
	rows := FillDailyGaps(nil, span(t, "2024-01-01", "2024-01-03"))
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, day(t, "2024-01-01").AddDays(i), r.Date)
		assert.Equal(t, DailyAggregateRow{Date: r.Date}, r)
	}
}

func TestFillDailyGaps_MissingDimensionValue(t *testing.T) {
	rows := []DailyAggregateRow{{
		Date: day(t, "2024-01-01"), DimensionValue: "A",
		TotalOutflow: -10, TotalFreeInflow: 20, TotalInflow: 20, Consumption: 50,
	}}

	filled := FillDailyGaps(rows, span(t, "2024-01-01", "2024-01-02"), "A", "B")
	require.Len(t, filled, 4)

	type key struct{ date, dim string }
	got := make(map[key]DailyAggregateRow)
	for _, r := range filled {
		got[key{r.Date.String(), r.DimensionValue}] = r
	}
	assert.Equal(t, rows[0], got[key{"2024-01-01", "A"}])
	for _, k := range []key{{"2024-01-01", "B"}, {"2024-01-02", "A"}, {"2024-01-02", "B"}} {
		r, ok := got[k]
		require.True(t, ok, "missing %v", k)
		assert.Zero(t, r.TotalInflow)
		assert.Zero(t, r.TotalOutflow)
		assert.Zero(t, r.Consumption)
	}
}

func TestFillDailyGaps_InvalidRangeUsesObservedBounds(t *testing.T) {
	rows := []DailyAggregateRow{
		{Date: day(t, "2024-01-05"), TotalInflow: 1},
		{Date: day(t, "2024-01-02"), TotalInflow: 2},
	}
	inverted := span(t, "2024-02-01", "2024-01-01")

	filled := FillDailyGaps(rows, inverted)
	require.Len(t, filled, 4)
	assert.Equal(t, day(t, "2024-01-02"), filled[0].Date)
	assert.Equal(t, day(t, "2024-01-05"), filled[3].Date)
	assert.Equal(t, 2.0, filled[0].TotalInflow)
	assert.Equal(t, 1.0, filled[3].TotalInflow)
}

func TestFillDailyGaps_Idempotent(t *testing.T) {
	rows := []DailyAggregateRow{
		{Date: day(t, "2024-01-01"), DimensionValue: "1", TotalInflow: 3},
		{Date: day(t, "2024-01-04"), DimensionValue: "0", TotalInflow: 4},
	}
	rng := span(t, "2024-01-01", "2024-01-05")

	once := FillDailyGaps(rows, rng)
	twice := FillDailyGaps(once, rng)
	assert.Equal(t, once, twice)
	assert.Len(t, once, 10)
}

func TestFillDailyGaps_OneRowPerDayPerValue(t *testing.T) {
	rng := span(t, "2024-03-01", "2024-03-31")
	rows := []DailyAggregateRow{
		{Date: day(t, "2024-03-10"), DimensionValue: "x"},
		{Date: day(t, "2024-03-20"), DimensionValue: "y"},
		{Date: day(t, "2024-03-20"), DimensionValue: "z"},
	}
	filled := FillDailyGaps(rows, rng)

	counts := make(map[string]int)
	for _, r := range filled {
		counts[r.DimensionValue]++
	}
	assert.Equal(t, map[string]int{"x": 31, "y": 31, "z": 31}, counts)
}

func TestFillDates_DropsRowsOutsideRange(t *testing.T) {
	rows := []SourceShareRow{
		{Date: day(t, "2023-12-31"), Source: "rewards_race", FreeInflowAmount: 9},
		{Date: day(t, "2024-01-01"), Source: "rewards_race", FreeInflowAmount: 1},
	}
	filled := FillShareGaps(rows, span(t, "2024-01-01", "2024-01-02"))
	require.Len(t, filled, 2)
	assert.Equal(t, 1.0, filled[0].FreeInflowAmount)
	assert.Equal(t, 0.0, filled[1].FreeInflowAmount)
}

func TestFillDates_NoRowsNoRange(t *testing.T) {
	assert.Empty(t, FillRTPGaps(nil, DateRange{}))
}
