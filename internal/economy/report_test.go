package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_EmptyEventsOverRange(t *testing.T) {
	r := Build(nil, Options{Range: span(t, "2024-01-01", "2024-01-03")})
	assert.Len(t, r.Daily, 3)
	assert.Len(t, r.FreePaid, 3)
	assert.Empty(t, r.SourceShares)
	assert.Empty(t, r.RTP)
	assert.Nil(t, r.DimensionValues)
}

func TestBuild_NoEventsNoRange(t *testing.T) {
	r := Build(nil, Options{Dimension: DimensionPaidEver})
	assert.NotNil(t, r.Daily)
	assert.Empty(t, r.Daily)
	assert.False(t, r.Range.Valid())
}

func TestBuild_DimensionValueWithoutDataInRange(t *testing.T) {
	a := ev(day(t, "2024-01-01"), "rewards_race", Inflow, 10)
	a.Attributes.LastVersionOfDay = "A"
	b := ev(day(t, "2023-12-20"), "rewards_race", Inflow, 10)
	b.Attributes.LastVersionOfDay = "B"

	r := Build([]Event{a, b}, Options{
		Dimension: DimensionLastVersion,
		Range:     span(t, "2024-01-01", "2024-01-02"),
	})
	assert.Equal(t, []string{"A", "B"}, r.DimensionValues)
	require.Len(t, r.Daily, 4)
	assert.Equal(t, "A", r.Daily[0].DimensionValue)
	assert.Equal(t, 10.0, r.Daily[0].TotalFreeInflow)
	for _, row := range r.Daily[1:] {
		assert.Zero(t, row.TotalInflow)
	}
	assert.Len(t, r.SourceShares, 4)
	assert.Len(t, r.RTP, 4)
}

func TestBuild_InvalidRangeFallsBackToObserved(t *testing.T) {
	events := []Event{
		ev(day(t, "2024-02-01"), "rewards_race", Inflow, 1),
		ev(day(t, "2024-02-04"), "generation", Outflow, -1),
	}
	r := Build(events, Options{Range: span(t, "2024-03-01", "2024-02-01")})
	assert.Equal(t, span(t, "2024-02-01", "2024-02-04"), r.Range)
	assert.Len(t, r.Daily, 4)
}

func TestBuild_Idempotent(t *testing.T) {
	d := day(t, "2024-01-01")
	events := []Event{
		ev(d, "rewards_store", Inflow, 100),
		ev(d, "rewards_race", Inflow, 50),
		ev(d.AddDays(2), "generation", Outflow, -90),
	}
	opts := Options{Dimension: DimensionPaidToday}
	assert.Equal(t, Build(events, opts), Build(events, opts))
}

func TestFilter(t *testing.T) {
	d := day(t, "2024-01-01")
	us := ev(d, "rewards_race", Inflow, 1)
	us.Attributes.IsUSPlayer = 1
	us.Attributes.FirstChapterBucket = "0-10"
	other := ev(d.AddDays(1), "rewards_race", Inflow, 1)
	other.Attributes.FirstChapterBucket = "50+"

	f := Filter{Selections: map[Dimension][]string{DimensionUSPlayer: {"1"}}}
	assert.Equal(t, []Event{us}, f.Apply([]Event{us, other}))

	f = Filter{Selections: map[Dimension][]string{DimensionUSPlayer: {}}}
	assert.Len(t, f.Apply([]Event{us, other}), 2)

	f = Filter{Range: DateRange{Start: d.AddDays(1), End: d.AddDays(1)}}
	assert.Equal(t, []Event{other}, f.Apply([]Event{us, other}))

	opts := FilterOptions([]Event{other, us})
	assert.Equal(t, []string{"0-10", "50+"}, opts[DimensionFirstChapter])
	assert.Equal(t, []string{"0", "1"}, opts[DimensionUSPlayer])
	assert.Equal(t, []string{UnknownValue}, opts[DimensionLastBalance])
}

func TestParseDimension(t *testing.T) {
	d, err := ParseDimension("")
	require.NoError(t, err)
	assert.Equal(t, DimensionNone, d)

	d, err = ParseDimension("None")
	require.NoError(t, err)
	assert.Equal(t, DimensionNone, d)

	d, err = ParseDimension("paid_today_flag")
	require.NoError(t, err)
	assert.Equal(t, DimensionPaidToday, d)
	assert.Equal(t, "Paid Today", d.Label())

	_, err = ParseDimension("country")
	assert.Error(t, err)
}
