package economy

// Report holds every tidy table of one dashboard request.
type Report struct {
	Range           DateRange           `json:"range"`
	Dimension       Dimension           `json:"dimension,omitempty"`
	DimensionValues []string            `json:"dimension_values,omitempty"`
	Daily           []DailyAggregateRow `json:"daily"`
	FreePaid        []FreePaidShareRow  `json:"free_paid"`
	SourceShares    []SourceShareRow    `json:"source_shares"`
	RTP             []RtpRow            `json:"rtp"`
}

// EmptyReport is a report with no rows, used when data could not be loaded.
func EmptyReport(opts Options) Report {
	return Report{
		Range:        opts.Range,
		Dimension:    opts.Dimension,
		Daily:        []DailyAggregateRow{},
		FreePaid:     []FreePaidShareRow{},
		SourceShares: []SourceShareRow{},
		RTP:          []RtpRow{},
	}
}

// Build runs the whole pipeline over already filtered events. Every table is
// gap-filled over the same range and dimension values.
func Build(events []Event, opts Options) Report {
	f := newFrame(events, opts)
	r := EmptyReport(opts)
	r.Range = f.rng
	if f.dim != DimensionNone {
		r.DimensionValues = f.dims
	}
	if !f.rng.Valid() {
		return r
	}

	r.Daily = FillDates(dailyRows(f), f.rng, dimensionKeys(f.dims), dailyKey, zeroDaily)
	r.FreePaid = FreePaidShares(r.Daily)
	r.SourceShares = shareRows(f)
	r.RTP = rtpRows(f)
	return r
}
