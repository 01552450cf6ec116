package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"CoinSentinel/internal/history"
	"CoinSentinel/internal/model"

	"github.com/dustin/go-humanize"
)

const (
	defaultRSIPeriod = 14
	minDailyRSIDays  = 6
	ribbonHours      = 24
	digestDays       = 15

	// glyphBand is the ±2% band around the day's high/low midpoint that
	// renders as sideways.
	glyphBand = 0.02
)

// legend is the shared header line of a multi-ticker report.
const legend = "## Price Info\n24h: hourly prices | 15d: date price change trend volatility (↑ up ↓ down → flat, vol=volatility)\n"

// Formatter renders ticker history into compact LLM-readable digests.
type Formatter struct {
	store *history.Store
}

func NewFormatter(store *history.Store) *Formatter {
	return &Formatter{store: store}
}

// Report concatenates per-ticker digests under one shared legend line.
// When a ticker has no stored data and autoBackfill is set, the store's
// backfill runs first and formatting proceeds with whatever resulted.
func (f *Formatter) Report(tickers []string, hours int, autoBackfill bool) string {
	digests := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		if autoBackfill && !f.store.Trend(ticker, hours).HasData {
			f.store.Backfill(ticker)
		}
		digests = append(digests, f.TickerDigest(ticker))
	}
	return legend + "\n" + strings.Join(digests, "\n\n")
}

// TickerDigest renders one ticker's block: RSI per tier (tiers without
// enough data are omitted, never shown as zero), latest 24h volume, the
// hourly price ribbon, and the daily digest.
func (f *Formatter) TickerDigest(ticker string) string {
	lines := []string{"### " + ticker}

	if rsi, err := f.store.FineRSI(ticker, defaultRSIPeriod); err == nil {
		lines = append(lines, fmt.Sprintf("RSI(10m): %.2f", rsi))
	}
	if rsi, err := f.store.HourlyRSI(ticker, defaultRSIPeriod); err == nil {
		lines = append(lines, fmt.Sprintf("RSI(1h): %.2f", rsi))
	}
	if rsi, err := f.store.DailyRSI(ticker, defaultRSIPeriod, minDailyRSIDays); err == nil {
		lines = append(lines, fmt.Sprintf("RSI(1d): %.2f", rsi))
	}

	if vol, ok := f.store.LastVolume(ticker); ok {
		lines = append(lines, "Volume(24h): "+scaledVolume(vol))
	}

	arch := f.store.Archive(ticker)
	lines = append(lines, ribbonLine(arch, time.Now()))
	lines = append(lines, digestLine(arch.Daily))

	return strings.Join(lines, "\n")
}

// ribbonLine renders the last 24 hours as one price per hour, newest
// first. Gaps are filled forward from the last known price; a gap before
// any known price is omitted.
func ribbonLine(arch *model.TickerArchive, now time.Time) string {
	cutoff := now.Add(-ribbonHours * time.Hour)

	known := make(map[time.Time]float64)
	for _, b := range arch.Hourly {
		if b.Timestamp.After(cutoff) && b.Close > 0 {
			known[truncHour(b.Timestamp)] = b.Close
		}
	}

	// Supplement hours the hourly tier lacks from hour-grouped
	// fine-grained averages.
	if len(known) < ribbonHours {
		sums := make(map[time.Time]float64)
		counts := make(map[time.Time]int)
		for _, p := range arch.Detailed {
			if !p.Timestamp.After(cutoff) {
				continue
			}
			k := truncHour(p.Timestamp)
			sums[k] += p.Price
			counts[k]++
		}
		for k, sum := range sums {
			if _, exists := known[k]; !exists && counts[k] > 0 {
				avg := sum / float64(counts[k])
				if avg > 0 {
					known[k] = avg
				}
			}
		}
	}

	startHour := truncHour(cutoff)
	endHour := truncHour(now)
	var filled []struct {
		hour  time.Time
		price float64
	}
	lastPrice := 0.0
	for h := startHour; !h.After(endHour); h = h.Add(time.Hour) {
		if p, exists := known[h]; exists {
			lastPrice = p
		} else if lastPrice == 0 {
			continue // no preceding price anywhere in the window
		}
		if !h.After(cutoff) {
			continue
		}
		filled = append(filled, struct {
			hour  time.Time
			price float64
		}{h, lastPrice})
	}

	if len(filled) == 0 {
		return "24h: no data"
	}

	parts := make([]string, 0, len(filled))
	for i := len(filled) - 1; i >= 0; i-- {
		parts = append(parts, filled[i].hour.Format("15:04")+" "+scaled(filled[i].price))
	}
	return "24h: " + strings.Join(parts, " | ")
}

// digestLine renders the most recent 15 days, newest first: close price,
// day-over-day change, a directional glyph from the close's position
// against the day's midpoint, and intraday volatility.
func digestLine(daily []model.DayBar) string {
	if len(daily) == 0 {
		return "15d: no data"
	}

	recent := make([]model.DayBar, len(daily))
	copy(recent, daily)
	sort.Slice(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	if len(recent) > digestDays {
		recent = recent[:digestDays]
	}

	parts := make([]string, 0, len(recent))
	for i, day := range recent {
		if day.Close <= 0 {
			continue
		}

		change := "0.0%"
		if i < len(recent)-1 && recent[i+1].Close > 0 {
			rate := (day.Close - recent[i+1].Close) / recent[i+1].Close * 100
			change = fmt.Sprintf("%+.1f%%", rate)
		}

		glyph := "→"
		vol := 0.0
		if day.High > 0 && day.Low > 0 {
			mid := (day.High + day.Low) / 2
			if day.Close > mid*(1+glyphBand) {
				glyph = "↑"
			} else if day.Close < mid*(1-glyphBand) {
				glyph = "↓"
			}
			vol = (day.High - day.Low) / day.Close * 100
		}

		parts = append(parts, fmt.Sprintf("%s %s %s %s vol%.1f%%",
			day.Date.Format("01-02"), scaled(day.Close), change, glyph, vol))
	}

	if len(parts) == 0 {
		return "15d: no data"
	}
	return "15d: " + strings.Join(parts, " | ")
}

// FormatTrend renders a single-period trend summary, used by cycle logs.
func (f *Formatter) FormatTrend(ticker string, hours int) string {
	trend := f.store.Trend(ticker, hours)
	if !trend.HasData {
		return fmt.Sprintf("%s: no data in the last %dh", ticker, hours)
	}

	label := "7d"
	if hours <= 24 {
		label = "24h"
	} else if hours <= 72 {
		label = "3d"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("**%s** %s\n", trend.Ticker, label))
	b.WriteString(fmt.Sprintf("- current: %s\n", humanize.CommafWithDigits(trend.CurrentPrice, 2)))
	b.WriteString(fmt.Sprintf("- start: %s\n", humanize.CommafWithDigits(trend.StartPrice, 2)))
	b.WriteString(fmt.Sprintf("- change: %+.2f%%\n", trend.ChangeRate))
	b.WriteString(fmt.Sprintf("- high: %s\n", humanize.CommafWithDigits(trend.MaxPrice, 2)))
	b.WriteString(fmt.Sprintf("- low: %s\n", humanize.CommafWithDigits(trend.MinPrice, 2)))
	b.WriteString(fmt.Sprintf("- direction: %s\n", trend.Direction))
	b.WriteString(fmt.Sprintf("- volatility: %.2f%%", trend.Volatility))
	return b.String()
}

// scaled renders a price with K/M suffixes. Sub-thousand prices print as
// whole numbers.
func scaled(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.2fK", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// scaledVolume keeps two decimals at every magnitude.
func scaledVolume(v float64) string {
	if v < 1_000 {
		return fmt.Sprintf("%.2f", v)
	}
	return scaled(v)
}

func truncHour(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, t.Hour(), 0, 0, 0, t.Location())
}
