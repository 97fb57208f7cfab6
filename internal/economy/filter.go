package economy

// Filter narrows events before aggregation. An empty selection for a
// dimension means every value passes; an invalid Range means every date passes.
type Filter struct {
	Range      DateRange
	Selections map[Dimension][]string
}

// Match reports whether an event passes the filter.
func (f Filter) Match(e Event) bool {
	if f.Range.Valid() && !f.Range.Contains(e.Date) {
		return false
	}
	for dim, allowed := range f.Selections {
		if dim == DimensionNone || len(allowed) == 0 {
			continue
		}
		if !containsString(allowed, e.Attributes.Value(dim)) {
			return false
		}
	}
	return true
}

// Apply returns the events that pass the filter.
func (f Filter) Apply(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// FilterOptions lists the distinct values of every dimension in natural order.
func FilterOptions(events []Event) map[Dimension][]string {
	seen := make(map[Dimension]map[string]struct{}, len(Dimensions))
	for _, d := range Dimensions {
		seen[d] = make(map[string]struct{})
	}
	for _, e := range events {
		for _, d := range Dimensions {
			seen[d][e.Attributes.Value(d)] = struct{}{}
		}
	}
	out := make(map[Dimension][]string, len(Dimensions))
	for d, values := range seen {
		out[d] = distinctNatural(values)
	}
	return out
}

// ObservedRange is the min/max event date, invalid when events is empty.
func ObservedRange(events []Event) DateRange {
	return observedRange(events, func(e Event) (Date, SeriesKey) { return e.Date, SeriesKey{} })
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
