package market

import (
	"fmt"
	"time"

	"CoinSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// MockClient returns controllable fixed data for development and testing.
type MockClient struct {
	Price        float64
	Volume       float64
	DailyData    []model.Candle
	HourlyData   []model.Candle
	Tickers      []string
	Metrics      []model.CoinMetrics
	BalanceRows  []Balance
	FailTickers  bool
	FailMetrics  bool
	FailBalances bool
	FailOHLCV    bool

	OHLCVCalls int
}

func (m *MockClient) Name() string { return "mock" }

func (m *MockClient) CurrentPrice(_ string) (float64, error) {
	return m.Price, nil
}

func (m *MockClient) Snapshot(_ string) (Snapshot, error) {
	return Snapshot{TradePrice: m.Price, Volume24h: m.Volume}, nil
}

func (m *MockClient) OHLCV(_, interval string, count int) ([]model.Candle, error) {
	m.OHLCVCalls++
	if m.FailOHLCV {
		return nil, fmt.Errorf("mock: candles unavailable")
	}
	switch interval {
	case IntervalDay:
		if m.DailyData != nil {
			return m.DailyData, nil
		}
		return generateMockCandles(m.Price, count, 24*time.Hour), nil
	case IntervalHourly:
		if m.HourlyData != nil {
			return m.HourlyData, nil
		}
		return generateMockCandles(m.Price, count, time.Hour), nil
	}
	return nil, fmt.Errorf("mock: unsupported interval %q", interval)
}

func (m *MockClient) AllTickers(_ string) ([]string, error) {
	if m.FailTickers {
		return nil, fmt.Errorf("mock: ticker list unavailable")
	}
	return m.Tickers, nil
}

func (m *MockClient) BatchMetrics(_ []string) ([]model.CoinMetrics, error) {
	if m.FailMetrics {
		return nil, fmt.Errorf("mock: metrics unavailable")
	}
	return m.Metrics, nil
}

func (m *MockClient) Balances() ([]Balance, error) {
	if m.FailBalances {
		return nil, fmt.Errorf("mock: balances unavailable")
	}
	return m.BalanceRows, nil
}

// MockHolding builds a Balance row holding the given amount of a currency.
func MockHolding(currency string, amount float64) Balance {
	return Balance{Currency: currency, Balance: decimal.NewFromFloat(amount)}
}

func generateMockCandles(basePrice float64, count int, step time.Duration) []model.Candle {
	candles := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		candles[i] = model.Candle{
			Timestamp: time.Now().Add(-time.Duration(count-i) * step),
			Open:      p * 0.999,
			High:      p * 1.005,
			Low:       p * 0.995,
			Close:     p,
			Volume:    1000,
		}
	}
	return candles
}
