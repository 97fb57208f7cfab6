package warehouse

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/peerplay/consumption-dashboard/internal/economy"
)

// Record is one result row keyed by lower-case column name. Values are
// whatever the driver produced; the accessors coerce them and fall back
// to zero values instead of failing.
type Record map[string]any

// Column names shared by both table shapes.
const (
	colDate               = "date"
	colPlayers            = "players"
	colPlayerID           = "player_id"
	colSource             = "source"
	colDirection          = "direction"
	colAmount             = "amount"
	colCount              = "count"
	colPlayerDayOutflow   = "player_day_outflow"
	colFirstChapterBucket = "first_chapter_bucket"
	colFirstChapterOfDay  = "first_chapter_of_day"
	colIsUSPlayer         = "is_us_player"
	colLastBalanceBucket  = "last_balance_bucket"
	colLastBalanceOfDay   = "last_balance_of_day"
	colLastVersionOfDay   = "last_version_of_day"
	colPaidEverFlag       = "paid_ever_flag"
	colPaidTodayFlag      = "paid_today_flag"
)

// DecodeRow converts a record into a RawRow of the given shape.
func DecodeRow(rec Record, shape economy.Shape) economy.RawRow {
	if shape == economy.ShapeLong {
		return economy.RawRow{Long: decodeLong(rec)}
	}
	return economy.RawRow{Wide: decodeWide(rec)}
}

func decodeWide(rec Record) *economy.WideRow {
	w := &economy.WideRow{
		Date:       rec.Date(colDate),
		Attributes: rec.attributes(),
		Players:    rec.Int(colPlayers),
		Columns:    make(map[string]float64),
	}
	for k := range rec {
		if strings.HasSuffix(k, "_sum_value") || strings.HasSuffix(k, "_cnt") {
			w.Columns[k] = rec.Float(k)
		}
	}
	return w
}

func decodeLong(rec Record) *economy.LongRow {
	l := &economy.LongRow{
		Date:       rec.Date(colDate),
		PlayerID:   rec.Text(colPlayerID),
		Source:     rec.Text(colSource),
		Amount:     rec.Float(colAmount),
		Count:      rec.Int(colCount),
		Attributes: rec.attributes(),
	}
	if dir, ok := economy.ParseDirection(rec.Text(colDirection)); ok {
		l.Direction = dir
	}
	if rec.present(colPlayerDayOutflow) {
		v := rec.Float(colPlayerDayOutflow)
		l.PlayerDayOutflow = &v
	}
	return l
}

func (r Record) attributes() economy.Attributes {
	a := economy.Attributes{
		FirstChapterBucket: r.Text(colFirstChapterBucket),
		IsUSPlayer:         int(r.Int(colIsUSPlayer)),
		LastBalanceBucket:  r.Text(colLastBalanceBucket),
		LastVersionOfDay:   r.Text(colLastVersionOfDay),
		PaidEverFlag:       int(r.Int(colPaidEverFlag)),
		PaidTodayFlag:      int(r.Int(colPaidTodayFlag)),
	}
	if r.present(colFirstChapterOfDay) {
		v := r.Float(colFirstChapterOfDay)
		a.FirstChapterOfDay = &v
	}
	if r.present(colLastBalanceOfDay) {
		v := r.Float(colLastBalanceOfDay)
		a.LastBalanceOfDay = &v
	}
	return a
}

func (r Record) present(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Float coerces a numeric-ish value, yielding 0 for anything unparseable.
func (r Record) Float(key string) float64 {
	var f float64
	switch v := r[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case bool:
		if v {
			f = 1
		}
	case *big.Rat:
		if v != nil {
			f, _ = v.Float64()
		}
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		f, _ = strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int coerces to an integer, truncating fractions.
func (r Record) Int(key string) int64 {
	return int64(r.Float(key))
}

// Text renders a value as a label. Whole floats print without a fraction.
func (r Record) Text(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case float64, float32, *big.Rat:
		return strconv.FormatFloat(r.Float(key), 'f', -1, 64)
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, bool:
		return strconv.FormatInt(r.Int(key), 10)
	default:
		return ""
	}
}

// Date accepts civil dates, timestamps, and YYYY-MM-DD strings.
func (r Record) Date(key string) economy.Date {
	switch v := r[key].(type) {
	case civil.Date:
		return v
	case time.Time:
		return civil.DateOf(v)
	case civil.DateTime:
		return v.Date
	case string:
		return parseDatePrefix(v)
	case []byte:
		return parseDatePrefix(string(v))
	}
	return economy.Date{}
}

func parseDatePrefix(s string) economy.Date {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return economy.Date{}
	}
	return d
}

// recordFromColumns pairs scanned values with their column names.
func recordFromColumns(columns []string, values []any) Record {
	rec := make(Record, len(columns))
	for i, c := range columns {
		rec[strings.ToLower(c)] = values[i]
	}
	return rec
}
