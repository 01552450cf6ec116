package model

import "time"

// Trend direction labels.
const (
	TrendUpward   = "upward"
	TrendDownward = "downward"
	TrendSideways = "sideways"
	TrendUnknown  = "unknown"
)

// TrendResult summarizes a windowed price series.
// HasData=false means the window was empty; callers must treat that as
// "no data", not as a zero-valued trend.
type TrendResult struct {
	Ticker       string
	HasData      bool
	CurrentPrice float64
	StartPrice   float64
	ChangeRate   float64 // percent, signed
	MaxPrice     float64
	MinPrice     float64
	Direction    string
	Volatility   float64 // population stdev / mean, percent
	DataPoints   int
	RangeStart   time.Time
	RangeEnd     time.Time
	Recent       []PricePoint // most recent 20 points, for display
}
