package calculator

import (
	"errors"
	"math"
)

// ErrInsufficientData marks a "no result" outcome: the series is too short
// for the requested computation. It is not a failure, and callers must
// never coerce it to a numeric value.
var ErrInsufficientData = errors.New("insufficient data")

// ComputeRSI computes RSI over a closed price series, oldest first.
// Gains and losses are averaged over the last `period` consecutive
// changes; a window with no losses yields exactly 100. The result is
// rounded to 2 decimals. Requires at least period+1 prices.
func ComputeRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 0, ErrInsufficientData
	}

	// Average gain/loss over the last `period` changes.
	var avgGain, avgLoss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change // make positive
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	rsi := 100.0 - 100.0/(1.0+rs)
	return round2(rsi), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
