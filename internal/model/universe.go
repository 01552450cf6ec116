package model

// CoinMetrics is one ticker's 24h market snapshot used by the selection
// pipeline. Recomputed every cycle, never persisted.
type CoinMetrics struct {
	Market           string  `json:"market"`
	TradePrice       float64 `json:"trade_price"`
	HighPrice        float64 `json:"high_price"`
	LowPrice         float64 `json:"low_price"`
	AccTradePrice24h float64 `json:"acc_trade_price_24h"`
	SignedChangeRate float64 `json:"signed_change_rate"` // fraction, +0.03 = +3%
	Volatility       float64 `json:"-"`                  // (high-low)/current, attached by the filter
}

// SelectionDetail carries per-cycle audit information alongside the
// selected ticker set. Informational only; not part of the selection
// contract.
type SelectionDetail struct {
	CycleID       string   `json:"cycle_id"`
	Pinned        []string `json:"pinned"`
	Momentum      []string `json:"momentum"`
	Dip           []string `json:"dip"`
	MomentumAll   []string `json:"momentum_all"`
	DipAll        []string `json:"dip_all"`
	FilteredCount int      `json:"filtered_count"`
	TotalTickers  int      `json:"total_tickers"`
}
