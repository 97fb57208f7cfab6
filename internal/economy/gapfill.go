package economy

import "sort"

// SeriesKey identifies one series of a tidy table apart from its date.
type SeriesKey struct {
	Dimension string
	Source    string
}

// FillDates returns exactly one row per day of rng for every key, keeping
// existing rows and inserting zero(date, key) for the missing ones. Rows
// outside rng or outside keys are dropped.
//
// An invalid rng falls back to the observed min/max date of rows. A nil keys
// slice is derived from the rows themselves; an empty non-nil slice yields no
// rows. Filling an already filled table is a no-op.
func FillDates[T any](rows []T, rng DateRange, keys []SeriesKey, keyOf func(T) (Date, SeriesKey), zero func(Date, SeriesKey) T) []T {
	if !rng.Valid() {
		rng = observedRange(rows, keyOf)
	}
	if !rng.Valid() {
		return []T{}
	}
	if keys == nil {
		keys = keysOf(rows, keyOf)
	}

	type slot struct {
		date Date
		key  SeriesKey
	}
	index := make(map[slot]T, len(rows))
	for _, r := range rows {
		d, k := keyOf(r)
		index[slot{d, k}] = r
	}

	out := make([]T, 0, rng.Days()*len(keys))
	for d := rng.Start; !d.After(rng.End); d = d.AddDays(1) {
		for _, k := range keys {
			if r, ok := index[slot{d, k}]; ok {
				out = append(out, r)
				continue
			}
			out = append(out, zero(d, k))
		}
	}
	return out
}

// FillDailyGaps fills the daily table over rng. The dimension values to cover
// default to those present in rows, or to the single undimensioned series.
func FillDailyGaps(rows []DailyAggregateRow, rng DateRange, dimensionValues ...string) []DailyAggregateRow {
	keys := dimensionKeys(dimensionValues)
	if len(dimensionValues) == 0 {
		keys = keysOf(rows, dailyKey)
		if len(keys) == 0 {
			keys = []SeriesKey{{}}
		}
	}
	return FillDates(rows, rng, keys, dailyKey, zeroDaily)
}

// FillShareGaps fills a source share table over rng for the series already present.
func FillShareGaps(rows []SourceShareRow, rng DateRange) []SourceShareRow {
	return FillDates(rows, rng, nil, shareKey, zeroShare)
}

// FillRTPGaps fills an RTP table over rng for the series already present.
func FillRTPGaps(rows []RtpRow, rng DateRange) []RtpRow {
	return FillDates(rows, rng, nil, rtpKey, zeroRTP)
}

func dailyKey(r DailyAggregateRow) (Date, SeriesKey) {
	return r.Date, SeriesKey{Dimension: r.DimensionValue}
}

func zeroDaily(d Date, k SeriesKey) DailyAggregateRow {
	return DailyAggregateRow{Date: d, DimensionValue: k.Dimension}
}

func shareKey(r SourceShareRow) (Date, SeriesKey) {
	return r.Date, SeriesKey{Dimension: r.DimensionValue, Source: r.Source}
}

func zeroShare(d Date, k SeriesKey) SourceShareRow {
	return SourceShareRow{Date: d, DimensionValue: k.Dimension, Source: k.Source}
}

func rtpKey(r RtpRow) (Date, SeriesKey) {
	return r.Date, SeriesKey{Dimension: r.DimensionValue, Source: r.Source}
}

func zeroRTP(d Date, k SeriesKey) RtpRow {
	return RtpRow{Date: d, DimensionValue: k.Dimension, Source: k.Source}
}

func dimensionKeys(values []string) []SeriesKey {
	keys := make([]SeriesKey, 0, len(values))
	for _, v := range values {
		keys = append(keys, SeriesKey{Dimension: v})
	}
	return keys
}

// seriesKeys crosses dimension values with sources, dimension-major.
func seriesKeys(dims, sources []string) []SeriesKey {
	keys := make([]SeriesKey, 0, len(dims)*len(sources))
	for _, d := range dims {
		for _, s := range sources {
			keys = append(keys, SeriesKey{Dimension: d, Source: s})
		}
	}
	return keys
}

func observedRange[T any](rows []T, keyOf func(T) (Date, SeriesKey)) DateRange {
	var r DateRange
	for _, row := range rows {
		d, _ := keyOf(row)
		if !d.IsValid() {
			continue
		}
		if !r.Start.IsValid() || d.Before(r.Start) {
			r.Start = d
		}
		if !r.End.IsValid() || d.After(r.End) {
			r.End = d
		}
	}
	return r
}

func keysOf[T any](rows []T, keyOf func(T) (Date, SeriesKey)) []SeriesKey {
	seen := make(map[SeriesKey]struct{})
	keys := make([]SeriesKey, 0)
	for _, r := range rows {
		_, k := keyOf(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].Dimension != keys[j].Dimension {
			return NaturalLess(keys[i].Dimension, keys[j].Dimension)
		}
		return keys[i].Source < keys[j].Source
	})
	return keys
}
