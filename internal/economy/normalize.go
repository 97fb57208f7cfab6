package economy

import "math"

// Normalize turns raw rows of either shape into events. Missing or zero
// columns produce no event; rows without a valid date are skipped.
func Normalize(rows []RawRow, cat *Catalog) []Event {
	if cat == nil {
		cat = DefaultCatalog(ShapeWide)
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		switch {
		case row.Wide != nil:
			events = appendWide(events, row.Wide, cat)
		case row.Long != nil:
			if ev, ok := normalizeLong(row.Long, cat); ok {
				events = append(events, ev)
			}
		}
	}
	return events
}

func appendWide(dst []Event, w *WideRow, cat *Catalog) []Event {
	if !w.Date.IsValid() {
		return dst
	}
	attrs := w.Attributes.resolved()
	for _, src := range cat.Sources() {
		amount := finite(w.Columns[SumColumn(src)])
		if amount == 0 {
			continue
		}
		dst = append(dst, Event{
			Date:       w.Date,
			Source:     src.Name,
			Direction:  src.Direction,
			Amount:     amount,
			Count:      int64(finite(w.Columns[CountColumn(src)])),
			Attributes: attrs,
		})
	}
	return dst
}

func normalizeLong(l *LongRow, cat *Catalog) (Event, bool) {
	if !l.Date.IsValid() || l.Source == "" {
		return Event{}, false
	}
	dir := l.Direction
	if dir == "" {
		d, ok := cat.Direction(l.Source)
		if !ok {
			return Event{}, false
		}
		dir = d
	}
	ev := Event{
		Date:       l.Date,
		PlayerID:   l.PlayerID,
		Source:     l.Source,
		Direction:  dir,
		Amount:     finite(l.Amount),
		Count:      l.Count,
		Attributes: l.Attributes.resolved(),
	}
	if l.PlayerDayOutflow != nil {
		v := finite(*l.PlayerDayOutflow)
		ev.PlayerDayOutflow = &v
	}
	return ev, true
}

// finite maps NaN and infinities to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
