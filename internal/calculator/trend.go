package calculator

import (
	"math"

	"CoinSentinel/internal/model"
)

// recentDisplayCount caps the point tail carried in a TrendResult.
const recentDisplayCount = 20

// ComputeTrend summarizes an ordered price series. An empty series yields
// a result with HasData=false, never an error.
func ComputeTrend(ticker string, points []model.PricePoint) model.TrendResult {
	if len(points) == 0 {
		return model.TrendResult{Ticker: ticker, HasData: false}
	}

	startPrice := points[0].Price
	currentPrice := points[len(points)-1].Price

	changeRate := 0.0
	if startPrice > 0 {
		changeRate = round2((currentPrice - startPrice) / startPrice * 100)
	}

	maxPrice := points[0].Price
	minPrice := points[0].Price
	for _, p := range points {
		if p.Price > maxPrice {
			maxPrice = p.Price
		}
		if p.Price < minPrice {
			minPrice = p.Price
		}
	}

	recent := points
	if len(recent) > recentDisplayCount {
		recent = recent[len(recent)-recentDisplayCount:]
	}

	return model.TrendResult{
		Ticker:       ticker,
		HasData:      true,
		CurrentPrice: currentPrice,
		StartPrice:   startPrice,
		ChangeRate:   changeRate,
		MaxPrice:     maxPrice,
		MinPrice:     minPrice,
		Direction:    direction(points),
		Volatility:   volatility(points),
		DataPoints:   len(points),
		RangeStart:   points[0].Timestamp,
		RangeEnd:     points[len(points)-1].Timestamp,
		Recent:       recent,
	}
}

// direction inspects the last 3 points; fewer than 3 points cannot carry a
// direction.
func direction(points []model.PricePoint) string {
	if len(points) < 3 {
		return model.TrendUnknown
	}
	window := points[len(points)-3:]
	switch {
	case window[2].Price > window[0].Price:
		return model.TrendUpward
	case window[2].Price < window[0].Price:
		return model.TrendDownward
	default:
		return model.TrendSideways
	}
}

// volatility is the population standard deviation of all prices divided by
// their mean, as a percentage. Zero when fewer than 2 points or the mean
// is 0.
func volatility(points []model.PricePoint) float64 {
	if len(points) < 2 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Price
	}
	mean := sum / float64(len(points))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, p := range points {
		d := p.Price - mean
		variance += d * d
	}
	variance /= float64(len(points))
	return round2(math.Sqrt(variance) / mean * 100)
}
