package history

import (
	"errors"
	"testing"
	"time"

	"CoinSentinel/internal/calculator"
	"CoinSentinel/internal/market"
	"CoinSentinel/internal/model"
	"CoinSentinel/internal/retry"
)

func newTestStore(mock *market.MockClient) (*Store, *MemoryArchive) {
	archive := NewMemoryArchive()
	return NewStore(archive, mock, retry.Policy{MaxAttempts: 1}), archive
}

func fptr(v float64) *float64 { return &v }

func TestRecord_AppendsAndPersists(t *testing.T) {
	store, archive := newTestStore(&market.MockClient{})
	ts := time.Date(2026, 3, 10, 14, 25, 0, 0, time.Local)

	if !store.Record("KRW-BTC", 50000, fptr(1200), ts) {
		t.Fatal("expected Record to succeed")
	}

	arch, err := archive.Load("KRW-BTC")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(arch.Detailed) != 1 {
		t.Fatalf("expected 1 detailed point, got %d", len(arch.Detailed))
	}
	p := arch.Detailed[0]
	if p.Price != 50000 || p.Volume == nil || *p.Volume != 1200 {
		t.Errorf("unexpected point: %+v", p)
	}
	if !arch.LastUpdated.Equal(ts) {
		t.Errorf("LastUpdated not set: %v", arch.LastUpdated)
	}
}

func TestCompressToHourly_GroupsByHour(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	arch := emptyArchive("KRW-ETH")
	points := []model.PricePoint{
		{Timestamp: base, Price: 100, Volume: fptr(10)},
		{Timestamp: base.Add(10 * time.Minute), Price: 120, Volume: fptr(20)},
		{Timestamp: base.Add(20 * time.Minute), Price: 90},
		{Timestamp: base.Add(70 * time.Minute), Price: 95},
	}

	compressToHourly(arch, points)

	if len(arch.Hourly) != 2 {
		t.Fatalf("expected 2 hour bars, got %d", len(arch.Hourly))
	}
	bar := arch.Hourly[0]
	if bar.Open != 100 || bar.Close != 90 {
		t.Errorf("open/close must follow ingestion order: open=%.0f close=%.0f", bar.Open, bar.Close)
	}
	if bar.High != 120 || bar.Low != 90 {
		t.Errorf("expected high=120 low=90, got high=%.0f low=%.0f", bar.High, bar.Low)
	}
	if bar.Count != 3 {
		t.Errorf("expected count=3, got %d", bar.Count)
	}
	if bar.Volume == nil || *bar.Volume != 15 {
		t.Errorf("expected averaged volume 15 over the points that carried one, got %v", bar.Volume)
	}
	if !bar.Timestamp.Equal(hourKey(base)) {
		t.Errorf("bar not hour-aligned: %v", bar.Timestamp)
	}
	if arch.Hourly[1].Count != 1 || arch.Hourly[1].Close != 95 {
		t.Errorf("unexpected second bar: %+v", arch.Hourly[1])
	}
}

func TestCompressToHourly_SkipsExistingKeys(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	arch := emptyArchive("KRW-XRP")
	arch.Hourly = []model.HourBar{{Timestamp: hourKey(base), Open: 500, High: 510, Low: 490, Close: 505, Count: 6}}

	compressToHourly(arch, []model.PricePoint{{Timestamp: base.Add(5 * time.Minute), Price: 9999}})

	if len(arch.Hourly) != 1 {
		t.Fatalf("expected the existing bar to stay alone, got %d bars", len(arch.Hourly))
	}
	if arch.Hourly[0].Close != 505 || arch.Hourly[0].Count != 6 {
		t.Errorf("existing bar was rewritten: %+v", arch.Hourly[0])
	}
}

func TestRecord_CompactsOldPointsThroughTiers(t *testing.T) {
	store, _ := newTestStore(&market.MockClient{})
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	old := base.Add(-8 * 24 * time.Hour)

	store.Record("KRW-ETH", 100, fptr(10), old)
	store.Record("KRW-ETH", 120, fptr(20), old.Add(10*time.Minute))
	store.Record("KRW-ETH", 90, nil, old.Add(20*time.Minute))

	// A fresh sample pushes the cutoff past the old hour. The synthesized
	// hour bar is itself past the cutoff, so it folds straight into the
	// daily tier in the same pass.
	store.Record("KRW-ETH", 95, nil, base)

	arch := store.Archive("KRW-ETH")
	if len(arch.Detailed) != 1 {
		t.Fatalf("expected only the fresh point in the fine tier, got %d", len(arch.Detailed))
	}
	if len(arch.Hourly) != 0 {
		t.Fatalf("expected the stale hour bar to cascade onward, got %d bars", len(arch.Hourly))
	}
	if len(arch.Daily) != 1 {
		t.Fatalf("expected 1 day bar, got %d", len(arch.Daily))
	}

	day := arch.Daily[0]
	if day.Open != 100 || day.Close != 90 || day.High != 120 || day.Low != 90 {
		t.Errorf("OHLC lost in the cascade: %+v", day)
	}
	if !day.Date.Equal(dayKey(asWall(old))) {
		t.Errorf("day bar not date-aligned: %v", day.Date)
	}
}

func TestCompact_Idempotent(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	old := base.Add(-8 * 24 * time.Hour)

	arch := emptyArchive("KRW-XRP")
	arch.Detailed = []model.PricePoint{
		{Timestamp: old, Price: 100},
		{Timestamp: old.Add(10 * time.Minute), Price: 110},
	}

	compact(arch, base)
	daily := len(arch.Daily)
	compact(arch, base)

	if len(arch.Daily) != daily {
		t.Fatalf("second compaction changed the daily tier: %d -> %d", daily, len(arch.Daily))
	}
	seen := make(map[string]bool)
	for _, d := range arch.Daily {
		if seen[d.DateKey()] {
			t.Fatalf("duplicate day key %s", d.DateKey())
		}
		seen[d.DateKey()] = true
	}
}

func TestCompact_FoldsHourBarsIntoDayBars(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	day := dayKey(base.Add(-8 * 24 * time.Hour))

	arch := emptyArchive("KRW-SOL")
	// Deliberately out of order; daily open/close must follow clock order.
	arch.Hourly = []model.HourBar{
		{Timestamp: day.Add(3 * time.Hour), Open: 210, High: 215, Low: 205, Close: 212, Count: 6},
		{Timestamp: day.Add(1 * time.Hour), Open: 200, High: 220, Low: 195, Close: 208, Count: 6},
		{Timestamp: day.Add(2 * time.Hour), Open: 208, High: 211, Low: 190, Close: 210, Count: 6},
	}

	compact(arch, base)

	if len(arch.Hourly) != 0 {
		t.Fatalf("expected hour bars to be compacted away, got %d", len(arch.Hourly))
	}
	if len(arch.Daily) != 1 {
		t.Fatalf("expected 1 day bar, got %d", len(arch.Daily))
	}
	d := arch.Daily[0]
	if d.Open != 200 || d.Close != 212 {
		t.Errorf("expected open=200 close=212, got open=%.0f close=%.0f", d.Open, d.Close)
	}
	if d.High != 220 || d.Low != 190 {
		t.Errorf("expected high=220 low=190, got high=%.0f low=%.0f", d.High, d.Low)
	}
	if d.Count != 3 {
		t.Errorf("expected 3 merged bars, got %d", d.Count)
	}
	lo, hi := d.Open, d.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	if d.Low > lo || d.High < hi {
		t.Errorf("bar violates low<=open,close<=high: %+v", d)
	}
}

func TestFetchWindow_MergesTiersWithoutDuplicates(t *testing.T) {
	store, archive := newTestStore(&market.MockClient{})
	now := time.Now()

	arch := emptyArchive("KRW-BTC")
	arch.Hourly = []model.HourBar{{
		Timestamp: hourKey(asWall(now.Add(-2 * time.Hour))),
		Open:      198, High: 205, Low: 196, Close: 200, Count: 6,
	}}
	arch.Daily = []model.DayBar{{
		Date: dayKey(asWall(now.Add(-72 * time.Hour))),
		Open: 180, High: 185, Low: 178, Close: 182, Count: 24,
	}}
	if err := archive.Save(arch); err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	// Recorded point lands in both the cache and the fine tier.
	store.Record("KRW-BTC", 100, nil, now.Add(-30*time.Minute))

	window := store.FetchWindow("KRW-BTC", 24)
	if len(window) != 2 {
		t.Fatalf("expected 2 points (hour close + fine point, deduped), got %d", len(window))
	}
	if window[0].Price != 200 || window[1].Price != 100 {
		t.Errorf("expected ascending [200 100], got [%.0f %.0f]", window[0].Price, window[1].Price)
	}

	// Daily closes only join windows beyond the hourly span.
	wide := store.FetchWindow("KRW-BTC", 192)
	if len(wide) != 3 {
		t.Fatalf("expected 3 points with the daily tier, got %d", len(wide))
	}
	if wide[0].Price != 182 {
		t.Errorf("expected daily close first, got %.0f", wide[0].Price)
	}
}

func TestFetchWindow_UnknownTicker(t *testing.T) {
	store, _ := newTestStore(&market.MockClient{})
	if got := store.FetchWindow("KRW-NOPE", 24); len(got) != 0 {
		t.Fatalf("expected empty window, got %d points", len(got))
	}
	if store.Trend("KRW-NOPE", 24).HasData {
		t.Error("expected HasData=false for unknown ticker")
	}
}

func TestTierRSI_InsufficientData(t *testing.T) {
	store, _ := newTestStore(&market.MockClient{})
	store.Record("KRW-BTC", 100, nil, time.Now())

	if _, err := store.FineRSI("KRW-BTC", 14); !errors.Is(err, calculator.ErrInsufficientData) {
		t.Errorf("fine: expected ErrInsufficientData, got %v", err)
	}
	if _, err := store.HourlyRSI("KRW-BTC", 14); !errors.Is(err, calculator.ErrInsufficientData) {
		t.Errorf("hourly: expected ErrInsufficientData, got %v", err)
	}
}

func TestDailyRSI_PeriodDegrades(t *testing.T) {
	store, archive := newTestStore(&market.MockClient{})

	seed := func(ticker string, days int) {
		arch := emptyArchive(ticker)
		day := dayKey(asWall(time.Now().Add(-time.Duration(days) * 24 * time.Hour)))
		for i := 0; i < days; i++ {
			c := 100 + float64(i)
			arch.Daily = append(arch.Daily, model.DayBar{
				Date: day.Add(time.Duration(i) * 24 * time.Hour),
				Open: c, High: c + 1, Low: c - 1, Close: c, Count: 24,
			})
		}
		if err := archive.Save(arch); err != nil {
			t.Fatalf("seed archive: %v", err)
		}
	}

	// 7 days < period+1: the window shrinks instead of erroring, and a
	// strictly rising series still reads 100.
	seed("KRW-ETH", 7)
	rsi, err := store.DailyRSI("KRW-ETH", 14, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rsi != 100.0 {
		t.Errorf("expected 100 for a rising series, got %.2f", rsi)
	}

	// Below the floor there is no result at all.
	seed("KRW-ADA", 5)
	if _, err := store.DailyRSI("KRW-ADA", 14, 6); !errors.Is(err, calculator.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData below the floor, got %v", err)
	}
}

func TestLastVolume(t *testing.T) {
	store, archive := newTestStore(&market.MockClient{})

	arch := emptyArchive("KRW-BTC")
	arch.Hourly = []model.HourBar{{Timestamp: hourKey(asWall(time.Now())), Close: 100, Volume: fptr(500), Count: 1}}
	arch.Detailed = []model.PricePoint{
		{Timestamp: asWall(time.Now()), Price: 100, Volume: fptr(900)},
		{Timestamp: asWall(time.Now()), Price: 101},
	}
	if err := archive.Save(arch); err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	vol, ok := store.LastVolume("KRW-BTC")
	if !ok || vol != 900 {
		t.Errorf("expected latest fine-tier volume 900, got %.0f (ok=%v)", vol, ok)
	}

	if _, ok := store.LastVolume("KRW-NOPE"); ok {
		t.Error("expected no volume for unknown ticker")
	}
}

func TestBackfill_MergesByKey(t *testing.T) {
	now := asWall(time.Now())
	d1 := dayKey(now.Add(-48 * time.Hour))
	d2 := dayKey(now.Add(-24 * time.Hour))

	mock := &market.MockClient{
		DailyData: []model.Candle{
			{Timestamp: d1, Open: 100, High: 110, Low: 95, Close: 105, Volume: 10},
			{Timestamp: d2, Open: 105, High: 115, Low: 100, Close: 110, Volume: 12},
		},
		HourlyData: []model.Candle{
			{Timestamp: now.Add(-3 * time.Hour), Open: 108, High: 112, Low: 107, Close: 111, Volume: 3},
			{Timestamp: now.Add(-2 * time.Hour), Open: 111, High: 113, Low: 109, Close: 112, Volume: 4},
		},
	}
	store, archive := newTestStore(mock)

	// Pre-existing day bar for d1 must survive untouched.
	seeded := emptyArchive("KRW-SOL")
	seeded.Daily = []model.DayBar{{Date: d1, Open: 1, High: 1, Low: 1, Close: 999, Count: 24}}
	if err := archive.Save(seeded); err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	if !store.Backfill("KRW-SOL") {
		t.Fatal("expected backfill to succeed")
	}
	if mock.OHLCVCalls != 2 {
		t.Errorf("expected one daily and one hourly fetch, got %d calls", mock.OHLCVCalls)
	}

	arch := store.Archive("KRW-SOL")
	if len(arch.Daily) != 2 {
		t.Fatalf("expected 2 day bars after merge, got %d", len(arch.Daily))
	}
	if arch.Daily[0].Close != 999 {
		t.Errorf("seeded bar for an existing date was overwritten: %+v", arch.Daily[0])
	}
	if len(arch.Hourly) != 2 {
		t.Fatalf("expected 2 hour bars, got %d", len(arch.Hourly))
	}
	if arch.Hourly[0].Timestamp.After(arch.Hourly[1].Timestamp) {
		t.Error("hour bars must be sorted ascending")
	}
}

func TestBackfill_AllSourcesFail(t *testing.T) {
	store, _ := newTestStore(&market.MockClient{FailOHLCV: true})
	if store.Backfill("KRW-BTC") {
		t.Fatal("expected backfill to report failure")
	}
	arch := store.Archive("KRW-BTC")
	if len(arch.Daily) != 0 || len(arch.Hourly) != 0 {
		t.Error("failed backfill must not write tiers")
	}
}
