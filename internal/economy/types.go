package economy

import (
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
)

// Date is a calendar day without a time component.
type Date = civil.Date

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	return civil.ParseDate(strings.TrimSpace(s))
}

// Direction tells whether a source adds currency to players or takes it away.
type Direction string

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

// ParseDirection accepts "inflow"/"outflow" in any case.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Inflow):
		return Inflow, true
	case string(Outflow):
		return Outflow, true
	}
	return "", false
}

// Dimension is the attribute a dashboard request is split by.
type Dimension string

const (
	DimensionNone         Dimension = ""
	DimensionFirstChapter Dimension = "first_chapter_bucket"
	DimensionUSPlayer     Dimension = "is_us_player"
	DimensionLastBalance  Dimension = "last_balance_bucket"
	DimensionLastVersion  Dimension = "last_version_of_day"
	DimensionPaidEver     Dimension = "paid_ever_flag"
	DimensionPaidToday    Dimension = "paid_today_flag"
)

// Dimensions lists every splittable attribute in display order.
var Dimensions = []Dimension{
	DimensionFirstChapter,
	DimensionUSPlayer,
	DimensionLastBalance,
	DimensionLastVersion,
	DimensionPaidEver,
	DimensionPaidToday,
}

var dimensionLabels = map[Dimension]string{
	DimensionNone:         "None",
	DimensionFirstChapter: "First Chapter of Day",
	DimensionUSPlayer:     "Is US Player",
	DimensionLastBalance:  "Last Balance of Day",
	DimensionLastVersion:  "Last Version of Day",
	DimensionPaidEver:     "Paid Ever",
	DimensionPaidToday:    "Paid Today",
}

// ParseDimension maps a request value onto a Dimension. Empty and "none" mean no split.
func ParseDimension(s string) (Dimension, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return DimensionNone, nil
	}
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return DimensionNone, fmt.Errorf("unknown dimension %q", s)
}

// Label is the human readable name shown in the dimension picker.
func (d Dimension) Label() string {
	if l, ok := dimensionLabels[d]; ok {
		return l
	}
	return string(d)
}

// UnknownValue labels player-days whose attribute is missing.
const UnknownValue = "unknown"

// Attributes are the per player-day attributes used for filtering and splitting.
type Attributes struct {
	FirstChapterBucket string   `json:"first_chapter_bucket,omitempty"`
	IsUSPlayer         int      `json:"is_us_player"`
	LastBalanceBucket  string   `json:"last_balance_bucket,omitempty"`
	LastVersionOfDay   string   `json:"last_version_of_day,omitempty"`
	PaidEverFlag       int      `json:"paid_ever_flag"`
	PaidTodayFlag      int      `json:"paid_today_flag"`
	FirstChapterOfDay  *float64 `json:"first_chapter_of_day,omitempty"`
	LastBalanceOfDay   *float64 `json:"last_balance_of_day,omitempty"`
}

// resolved fills missing bucket labels from the raw values.
func (a Attributes) resolved() Attributes {
	if a.FirstChapterBucket == "" && a.FirstChapterOfDay != nil {
		a.FirstChapterBucket = BucketFirstChapter(*a.FirstChapterOfDay)
	}
	if a.LastBalanceBucket == "" && a.LastBalanceOfDay != nil {
		a.LastBalanceBucket = BucketLastBalance(*a.LastBalanceOfDay)
	}
	return a
}

// Value returns the label of the given dimension. DimensionNone yields "".
func (a Attributes) Value(d Dimension) string {
	var v string
	switch d {
	case DimensionNone:
		return ""
	case DimensionFirstChapter:
		v = a.FirstChapterBucket
	case DimensionUSPlayer:
		v = strconv.Itoa(a.IsUSPlayer)
	case DimensionLastBalance:
		v = a.LastBalanceBucket
	case DimensionLastVersion:
		v = a.LastVersionOfDay
	case DimensionPaidEver:
		v = strconv.Itoa(a.PaidEverFlag)
	case DimensionPaidToday:
		v = strconv.Itoa(a.PaidTodayFlag)
	}
	if v == "" {
		return UnknownValue
	}
	return v
}

// WideRow is one pre-aggregated row holding a column pair per source.
type WideRow struct {
	Date       Date               `json:"date"`
	Attributes Attributes         `json:"attributes"`
	Players    int64              `json:"players"`
	Columns    map[string]float64 `json:"columns"`
}

// LongRow is one per-player, per-source row.
type LongRow struct {
	Date             Date       `json:"date"`
	PlayerID         string     `json:"player_id"`
	Source           string     `json:"source"`
	Direction        Direction  `json:"direction,omitempty"`
	Amount           float64    `json:"amount"`
	Count            int64      `json:"count"`
	Attributes       Attributes `json:"attributes"`
	PlayerDayOutflow *float64   `json:"player_day_outflow,omitempty"`
}

// RawRow holds exactly one of the two physical table shapes.
type RawRow struct {
	Wide *WideRow `json:"wide,omitempty"`
	Long *LongRow `json:"long,omitempty"`
}

// Event is a normalized (date, player, source, direction, amount) record.
// An empty PlayerID marks an amount that is already summed across players.
type Event struct {
	Date             Date
	PlayerID         string
	Source           string
	Direction        Direction
	Amount           float64
	Count            int64
	Attributes       Attributes
	PlayerDayOutflow *float64
}

// DateRange is an inclusive range of days.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Valid reports whether both ends are real dates and Start is not after End.
func (r DateRange) Valid() bool {
	return r.Start.IsValid() && r.End.IsValid() && !r.End.Before(r.Start)
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days is the number of days in the range, 0 when invalid.
func (r DateRange) Days() int {
	if !r.Valid() {
		return 0
	}
	return r.End.DaysSince(r.Start) + 1
}

// DailyAggregateRow is one row of the daily totals table.
type DailyAggregateRow struct {
	Date            Date    `json:"date"`
	DimensionValue  string  `json:"dimension_value,omitempty"`
	TotalOutflow    float64 `json:"total_outflow"`
	TotalFreeInflow float64 `json:"total_free_inflow"`
	TotalPaidInflow float64 `json:"total_paid_inflow"`
	TotalInflow     float64 `json:"total_inflow"`
	Consumption     float64 `json:"consumption"`
}

// FreePaidShareRow splits a day's inflow into free and paid percentages.
type FreePaidShareRow struct {
	Date           Date    `json:"date"`
	DimensionValue string  `json:"dimension_value,omitempty"`
	FreeInflow     float64 `json:"free_inflow"`
	PaidInflow     float64 `json:"paid_inflow"`
	FreeSharePct   float64 `json:"free_share_pct"`
	PaidSharePct   float64 `json:"paid_share_pct"`
}

// SourceShareRow is one free source's share of the day's free inflow.
type SourceShareRow struct {
	Date             Date    `json:"date"`
	Source           string  `json:"source"`
	DimensionValue   string  `json:"dimension_value,omitempty"`
	FreeInflowAmount float64 `json:"free_inflow_amount"`
	SharePct         float64 `json:"share_pct"`
}

// RtpRow is the return-to-player of one free source against the day's outflow.
type RtpRow struct {
	Date             Date    `json:"date"`
	Source           string  `json:"source"`
	DimensionValue   string  `json:"dimension_value,omitempty"`
	FreeInflowAmount float64 `json:"free_inflow_amount"`
	TotalOutflow     float64 `json:"total_outflow"`
	RtpPct           float64 `json:"rtp_pct"`
}
