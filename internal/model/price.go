package model

import "time"

// PricePoint is a single fine-grained sample in a ticker's archive.
// Points are appended in ingestion order and never mutated; compaction
// supersedes them with an HourBar.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    *float64  `json:"volume,omitempty"` // 24h accumulated volume, when known
}

// HourBar is one hour of compacted fine-grained samples.
// Invariant: Low <= Open,Close <= High and Count >= 1.
type HourBar struct {
	Timestamp time.Time `json:"timestamp"` // hour-aligned
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Count     int       `json:"count"`
	Volume    *float64  `json:"volume,omitempty"` // average of constituent volumes
}

// DayBar is one calendar day of compacted hourly bars.
type DayBar struct {
	Date  time.Time `json:"date"` // midnight of the calendar day
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Count int       `json:"count"`
}

// DateKey renders the bar's calendar date as stored in the archive.
func (d DayBar) DateKey() string { return d.Date.Format("2006-01-02") }

// TickerArchive holds the three resolution tiers for one ticker.
// Fine-grained points cover the most recent 7 days, hourly bars the 7 days
// before that window closes, daily bars everything older.
type TickerArchive struct {
	Ticker      string       `json:"ticker"`
	Detailed    []PricePoint `json:"detailed"`
	Hourly      []HourBar    `json:"hourly"`
	Daily       []DayBar     `json:"daily"`
	LastUpdated time.Time    `json:"last_updated"`
}

// Candle is one OHLCV row from the market-data collaborator.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
