package market

import (
	"CoinSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// Candle interval identifiers accepted by MarketData.OHLCV.
const (
	IntervalDay    = "day"
	IntervalHourly = "minute60"
)

// Snapshot is a ticker's latest trade price and 24h volume.
type Snapshot struct {
	TradePrice float64
	Volume24h  float64
}

// Balance is one currency row from the account collaborator. Amounts are
// decimal strings on the wire and stay decimal here.
type Balance struct {
	Currency string
	Balance  decimal.Decimal
	Locked   decimal.Decimal
}

// MarketData defines the market-data collaborator. Every method may fail
// on network error; callers treat a failure as "no data for this call".
type MarketData interface {
	CurrentPrice(ticker string) (float64, error)
	OHLCV(ticker, interval string, count int) ([]model.Candle, error)
	Snapshot(ticker string) (Snapshot, error)
	AllTickers(quote string) ([]string, error)
	BatchMetrics(tickers []string) ([]model.CoinMetrics, error)
	Name() string
}

// Account defines the account collaborator, used only to derive held
// tickers for pinning.
type Account interface {
	Balances() ([]Balance, error)
}
