package selector

import (
	"sort"
	"strings"

	"CoinSentinel/internal/model"
)

// Thresholds parameterize the filter/classify/select pipeline.
type Thresholds struct {
	MinTradeValue     float64 // 24h accumulated trade value floor
	MinVolatility     float64 // fraction, 0.01 = 1%
	MaxVolatility     float64
	MomentumThreshold float64 // signed 24h change rate, fraction
	DipMinRate        float64
	DipMaxRate        float64
	DipMinVolatility  float64
	TargetMomentum    int
	TargetDip         int
	CandidatePoolSize int
}

// DefaultThresholds returns the production gate values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTradeValue:     1_000_000_000,
		MinVolatility:     0.01,
		MaxVolatility:     0.25,
		MomentumThreshold: 0.03,
		DipMinRate:        -0.06,
		DipMaxRate:        0.0,
		DipMinVolatility:  0.015,
		TargetMomentum:    6,
		TargetDip:         6,
		CandidatePoolSize: 12,
	}
}

// Volatility is the 24h range relative to the current price.
func Volatility(high, low, tradePrice float64) float64 {
	if tradePrice <= 0 {
		return 0
	}
	return (high - low) / tradePrice
}

// Filter keeps quote-market entries that clear the liquidity floor and
// whose 24h volatility lies within bounds. Survivors carry their computed
// volatility; input order is preserved.
func Filter(metrics []model.CoinMetrics, quote string, th Thresholds) []model.CoinMetrics {
	prefix := quote + "-"
	var filtered []model.CoinMetrics
	for _, m := range metrics {
		if !strings.HasPrefix(m.Market, prefix) {
			continue
		}
		if m.AccTradePrice24h < th.MinTradeValue {
			continue
		}
		vol := Volatility(m.HighPrice, m.LowPrice, m.TradePrice)
		if vol < th.MinVolatility || vol > th.MaxVolatility {
			continue
		}
		m.Volatility = vol
		filtered = append(filtered, m)
	}
	return filtered
}

// Classify splits filtered coins into momentum and dip buckets. The two
// are disjoint: momentum is evaluated first and wins if thresholds are
// ever configured to overlap. Momentum sorts strongest movers first,
// dip sorts most volatile first — downstream truncates both to a fixed
// pool size, so the ordering is load-bearing.
func Classify(filtered []model.CoinMetrics, th Thresholds) (momentum, dip []model.CoinMetrics) {
	for _, m := range filtered {
		if m.SignedChangeRate >= th.MomentumThreshold {
			momentum = append(momentum, m)
		} else if m.SignedChangeRate >= th.DipMinRate && m.SignedChangeRate <= th.DipMaxRate &&
			m.Volatility >= th.DipMinVolatility {
			dip = append(dip, m)
		}
	}

	sort.SliceStable(momentum, func(i, j int) bool {
		return momentum[i].SignedChangeRate > momentum[j].SignedChangeRate
	})
	sort.SliceStable(dip, func(i, j int) bool {
		return dip[i].Volatility > dip[j].Volatility
	})
	return momentum, dip
}
