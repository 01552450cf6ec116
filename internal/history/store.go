package history

import (
	"log"
	"sort"
	"sync"
	"time"

	"CoinSentinel/internal/calculator"
	"CoinSentinel/internal/market"
	"CoinSentinel/internal/model"
	"CoinSentinel/internal/retry"
)

const (
	// fineRetention bounds the fine-grained tier; older points are folded
	// into hour bars. The same span bounds the hourly tier against the
	// daily one.
	fineRetention = 7 * 24 * time.Hour

	// cacheSize covers 24h at 10-minute capture granularity.
	cacheSize = 144

	// dailyTierWindowHours is the window size above which fetches also
	// draw from the daily tier.
	dailyTierWindowHours = 7 * 24

	backfillDailyCount  = 20
	backfillHourlyCount = 72
	backfillSpacing     = 300 * time.Millisecond
)

// Store is the multi-resolution price history for all tracked tickers.
// Old data is compressed into coarser tiers rather than discarded,
// trading resolution for retention.
type Store struct {
	mu      sync.Mutex
	archive Archive
	market  market.MarketData
	retry   retry.Policy
	cache   map[string]*ring
}

// NewStore creates a Store over the given archive and market-data
// collaborator.
func NewStore(archive Archive, md market.MarketData, policy retry.Policy) *Store {
	return &Store{
		archive: archive,
		market:  md,
		retry:   policy,
		cache:   make(map[string]*ring),
	}
}

// asWall strips the location from a timestamp, keeping its wall-clock
// reading. Stored timestamps must all live in one frame so that ordering
// comparisons never mix frames.
func asWall(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.Local)
}

func hourKey(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, t.Hour(), 0, 0, 0, t.Location())
}

func dayKey(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// loadOrEmpty reads a ticker's archive, degrading a failed read to an
// empty history.
func (s *Store) loadOrEmpty(ticker string) *model.TickerArchive {
	arch, err := s.archive.Load(ticker)
	if err != nil {
		log.Printf("[WARN] load archive %s failed, treating as empty: %v", ticker, err)
		return emptyArchive(ticker)
	}
	return arch
}

// Record appends a fine-grained price point, runs compaction, and persists
// the archive. A storage failure is logged and reported via the return
// value; the in-memory cache is updated regardless so the running process
// keeps serving recent prices.
func (s *Store) Record(ticker string, price float64, volume *float64, timestamp time.Time) bool {
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	timestamp = asWall(timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	arch := s.loadOrEmpty(ticker)

	point := model.PricePoint{Timestamp: timestamp, Price: price, Volume: volume}
	arch.Detailed = append(arch.Detailed, point)

	compact(arch, timestamp)

	arch.LastUpdated = timestamp
	ok := true
	if err := s.archive.Save(arch); err != nil {
		log.Printf("[WARN] save archive %s: %v", ticker, err)
		ok = false
	}

	s.cacheFor(ticker).push(point)
	return ok
}

func (s *Store) cacheFor(ticker string) *ring {
	r, found := s.cache[ticker]
	if !found {
		r = newRing(cacheSize)
		s.cache[ticker] = r
	}
	return r
}

// compact folds fine-grained points older than the retention cutoff into
// hour bars, and hour bars older than the cutoff into day bars. Running it
// again on already-compacted data is a no-op: target-tier keys are checked
// before insert.
func compact(arch *model.TickerArchive, now time.Time) {
	cutoff := now.Add(-fineRetention)

	var keep []model.PricePoint
	var old []model.PricePoint
	for _, p := range arch.Detailed {
		if p.Timestamp.After(cutoff) {
			keep = append(keep, p)
		} else {
			old = append(old, p)
		}
	}
	arch.Detailed = keep
	if len(old) > 0 {
		compressToHourly(arch, old)
	}

	var keepBars []model.HourBar
	var oldBars []model.HourBar
	for _, b := range arch.Hourly {
		if b.Timestamp.After(cutoff) {
			keepBars = append(keepBars, b)
		} else {
			oldBars = append(oldBars, b)
		}
	}
	arch.Hourly = keepBars
	if len(oldBars) > 0 {
		compressToDaily(arch, oldBars)
	}
}

// compressToHourly merges fine-grained points into the hourly tier,
// grouped by calendar hour. Open/close follow original ingestion order.
func compressToHourly(arch *model.TickerArchive, points []model.PricePoint) {
	groups := make(map[time.Time][]model.PricePoint)
	for _, p := range points {
		k := hourKey(p.Timestamp)
		groups[k] = append(groups[k], p)
	}

	existing := make(map[time.Time]bool, len(arch.Hourly))
	for _, b := range arch.Hourly {
		existing[b.Timestamp] = true
	}

	for k, group := range groups {
		if existing[k] {
			continue
		}
		bar := model.HourBar{
			Timestamp: k,
			Open:      group[0].Price,
			High:      group[0].Price,
			Low:       group[0].Price,
			Close:     group[len(group)-1].Price,
			Count:     len(group),
		}
		var volSum float64
		var volCount int
		for _, p := range group {
			if p.Price > bar.High {
				bar.High = p.Price
			}
			if p.Price < bar.Low {
				bar.Low = p.Price
			}
			if p.Volume != nil {
				volSum += *p.Volume
				volCount++
			}
		}
		if volCount > 0 {
			avg := volSum / float64(volCount)
			bar.Volume = &avg
		}
		arch.Hourly = append(arch.Hourly, bar)
	}

	sort.Slice(arch.Hourly, func(i, j int) bool {
		return arch.Hourly[i].Timestamp.Before(arch.Hourly[j].Timestamp)
	})
}

// compressToDaily merges hour bars into the daily tier, grouped by
// calendar date.
func compressToDaily(arch *model.TickerArchive, bars []model.HourBar) {
	groups := make(map[time.Time][]model.HourBar)
	for _, b := range bars {
		k := dayKey(b.Timestamp)
		groups[k] = append(groups[k], b)
	}

	existing := make(map[time.Time]bool, len(arch.Daily))
	for _, d := range arch.Daily {
		existing[d.Date] = true
	}

	for k, group := range groups {
		if existing[k] {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
		day := model.DayBar{
			Date:  k,
			Open:  group[0].Open,
			High:  group[0].High,
			Low:   group[0].Low,
			Close: group[len(group)-1].Close,
			Count: len(group),
		}
		for _, b := range group {
			if b.High > day.High {
				day.High = b.High
			}
			if b.Low < day.Low {
				day.Low = b.Low
			}
		}
		arch.Daily = append(arch.Daily, day)
	}

	sort.Slice(arch.Daily, func(i, j int) bool {
		return arch.Daily[i].Date.Before(arch.Daily[j].Date)
	})
}

// FetchWindow returns a unified {timestamp, price} sequence for the last
// `hours` hours: cache entries, fine-grained points, hourly closes, and —
// for windows beyond 7 days — daily closes, sorted ascending. A ticker
// with no history yields an empty slice, which callers treat as "no
// data", not an error.
func (s *Store) FetchWindow(ticker string, hours int) []model.PricePoint {
	cutoff := asWall(time.Now().Add(-time.Duration(hours) * time.Hour))

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.PricePoint
	if r, found := s.cache[ticker]; found {
		result = append(result, r.since(cutoff)...)
	}

	arch := s.loadOrEmpty(ticker)
	for _, p := range arch.Detailed {
		if p.Timestamp.After(cutoff) {
			result = append(result, model.PricePoint{Timestamp: p.Timestamp, Price: p.Price})
		}
	}
	for _, b := range arch.Hourly {
		if b.Timestamp.After(cutoff) {
			result = append(result, model.PricePoint{Timestamp: b.Timestamp, Price: b.Close})
		}
	}
	if hours > dailyTierWindowHours {
		for _, d := range arch.Daily {
			if d.Date.After(cutoff) {
				result = append(result, model.PricePoint{Timestamp: d.Date, Price: d.Close})
			}
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })

	// Cache entries mirror persisted fine-grained points; drop exact
	// repeats so the window holds each sample once.
	deduped := result[:0]
	for i, p := range result {
		if i > 0 && p.Timestamp.Equal(result[i-1].Timestamp) && p.Price == result[i-1].Price {
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// Trend summarizes the last `hours` hours of a ticker's history.
func (s *Store) Trend(ticker string, hours int) model.TrendResult {
	return calculator.ComputeTrend(ticker, s.FetchWindow(ticker, hours))
}

// Archive returns a snapshot of the ticker's full three-tier archive.
func (s *Store) Archive(ticker string) *model.TickerArchive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadOrEmpty(ticker)
}

// FineRSI computes RSI over the fine-grained tier.
func (s *Store) FineRSI(ticker string, period int) (float64, error) {
	arch := s.Archive(ticker)
	if len(arch.Detailed) < period+1 {
		return 0, calculator.ErrInsufficientData
	}
	prices := make([]float64, 0, period+1)
	for _, p := range arch.Detailed[len(arch.Detailed)-period-1:] {
		if p.Price > 0 {
			prices = append(prices, p.Price)
		}
	}
	if len(prices) < period+1 {
		return 0, calculator.ErrInsufficientData
	}
	return calculator.ComputeRSI(prices, period)
}

// HourlyRSI computes RSI over hourly closes.
func (s *Store) HourlyRSI(ticker string, period int) (float64, error) {
	arch := s.Archive(ticker)
	if len(arch.Hourly) < period+1 {
		return 0, calculator.ErrInsufficientData
	}
	prices := make([]float64, 0, period+1)
	for _, b := range arch.Hourly[len(arch.Hourly)-period-1:] {
		if b.Close > 0 {
			prices = append(prices, b.Close)
		}
	}
	if len(prices) < period+1 {
		return 0, calculator.ErrInsufficientData
	}
	return calculator.ComputeRSI(prices, period)
}

// DailyRSI computes RSI over daily closes. When fewer than period+1 days
// exist the period degrades to the available history, down to a floor of
// minDays; the reduced period both selects the window and parameterizes
// the formula.
func (s *Store) DailyRSI(ticker string, period, minDays int) (float64, error) {
	arch := s.Archive(ticker)
	if len(arch.Daily) < minDays {
		return 0, calculator.ErrInsufficientData
	}

	effective := len(arch.Daily) - 1
	if effective > period {
		effective = period
	}
	if effective < minDays-1 {
		return 0, calculator.ErrInsufficientData
	}

	prices := make([]float64, 0, effective+1)
	for _, d := range arch.Daily[len(arch.Daily)-effective-1:] {
		if d.Close > 0 {
			prices = append(prices, d.Close)
		}
	}
	if len(prices) < effective+1 {
		return 0, calculator.ErrInsufficientData
	}
	return calculator.ComputeRSI(prices, effective)
}

// LastVolume reports the most recent known 24h volume, preferring the
// fine-grained tier over the hourly average.
func (s *Store) LastVolume(ticker string) (float64, bool) {
	arch := s.Archive(ticker)
	for i := len(arch.Detailed) - 1; i >= 0; i-- {
		if arch.Detailed[i].Volume != nil {
			return *arch.Detailed[i].Volume, true
		}
	}
	for i := len(arch.Hourly) - 1; i >= 0; i-- {
		if arch.Hourly[i].Volume != nil {
			return *arch.Hourly[i].Volume, true
		}
	}
	return 0, false
}

// Backfill bootstraps a newly tracked ticker from the market-data
// collaborator: ~20 days of daily OHLC and ~72 hours of hourly OHLC,
// merged into the coarse tiers by key. The two halves are independently
// best-effort, spaced to respect external rate limits.
func (s *Store) Backfill(ticker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("[INFO] backfilling %s", ticker)
	arch := s.loadOrEmpty(ticker)

	dailyOK := s.backfillDaily(arch, ticker)
	time.Sleep(backfillSpacing)
	hourlyOK := s.backfillHourly(arch, ticker)

	if !dailyOK && !hourlyOK {
		return false
	}

	arch.LastUpdated = asWall(time.Now())
	if err := s.archive.Save(arch); err != nil {
		log.Printf("[WARN] save backfilled archive %s: %v", ticker, err)
		return false
	}
	return true
}

func (s *Store) backfillDaily(arch *model.TickerArchive, ticker string) bool {
	var candles []model.Candle
	err := s.retry.Do(func() error {
		var ferr error
		candles, ferr = s.market.OHLCV(ticker, market.IntervalDay, backfillDailyCount)
		return ferr
	})
	if err != nil {
		log.Printf("[WARN] backfill daily %s: %v", ticker, err)
		return false
	}

	existing := make(map[string]bool, len(arch.Daily))
	for _, d := range arch.Daily {
		existing[d.DateKey()] = true
	}
	added := 0
	for _, c := range candles {
		day := dayKey(asWall(c.Timestamp))
		if existing[day.Format("2006-01-02")] {
			continue
		}
		arch.Daily = append(arch.Daily, model.DayBar{
			Date:  day,
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
			Count: 1,
		})
		existing[day.Format("2006-01-02")] = true
		added++
	}
	sort.Slice(arch.Daily, func(i, j int) bool { return arch.Daily[i].Date.Before(arch.Daily[j].Date) })
	log.Printf("[INFO] backfill daily %s: %d bars added", ticker, added)
	return true
}

func (s *Store) backfillHourly(arch *model.TickerArchive, ticker string) bool {
	var candles []model.Candle
	err := s.retry.Do(func() error {
		var ferr error
		candles, ferr = s.market.OHLCV(ticker, market.IntervalHourly, backfillHourlyCount)
		return ferr
	})
	if err != nil {
		log.Printf("[WARN] backfill hourly %s: %v", ticker, err)
		return false
	}

	existing := make(map[time.Time]bool, len(arch.Hourly))
	for _, b := range arch.Hourly {
		existing[b.Timestamp] = true
	}
	added := 0
	for _, c := range candles {
		hour := hourKey(asWall(c.Timestamp))
		if existing[hour] {
			continue
		}
		bar := model.HourBar{
			Timestamp: hour,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Count:     1,
		}
		if c.Volume > 0 {
			v := c.Volume
			bar.Volume = &v
		}
		arch.Hourly = append(arch.Hourly, bar)
		existing[hour] = true
		added++
	}
	sort.Slice(arch.Hourly, func(i, j int) bool {
		return arch.Hourly[i].Timestamp.Before(arch.Hourly[j].Timestamp)
	})
	log.Printf("[INFO] backfill hourly %s: %d bars added", ticker, added)
	return true
}
