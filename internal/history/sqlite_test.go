package history

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"CoinSentinel/internal/model"
)

func newTestArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	a, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSQLiteArchive_RoundTrip(t *testing.T) {
	a := newTestArchive(t)
	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)

	in := &model.TickerArchive{
		Ticker:      "KRW-BTC",
		Detailed:    []model.PricePoint{{Timestamp: ts, Price: 50000}},
		Hourly:      []model.HourBar{{Timestamp: hourKey(ts.Add(-24 * time.Hour)), Open: 1, High: 2, Low: 1, Close: 2, Count: 6}},
		Daily:       []model.DayBar{{Date: dayKey(ts.Add(-10 * 24 * time.Hour)), Open: 1, High: 2, Low: 1, Close: 2, Count: 24}},
		LastUpdated: ts,
	}
	if err := a.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := a.Load("KRW-BTC")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Detailed) != 1 || len(out.Hourly) != 1 || len(out.Daily) != 1 {
		t.Fatalf("tier sizes wrong: %d/%d/%d", len(out.Detailed), len(out.Hourly), len(out.Daily))
	}
	if out.Detailed[0].Price != 50000 {
		t.Errorf("price lost in round trip: %.0f", out.Detailed[0].Price)
	}
	if !out.Detailed[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp drifted: %v vs %v", out.Detailed[0].Timestamp, ts)
	}
	if out.LastUpdated.Unix() != ts.Unix() {
		t.Errorf("last_updated drifted: %v", out.LastUpdated)
	}
}

func TestSQLiteArchive_LoadMissingTicker(t *testing.T) {
	a := newTestArchive(t)
	out, err := a.Load("KRW-NOPE")
	if err != nil {
		t.Fatalf("missing ticker must not error: %v", err)
	}
	if out.Ticker != "KRW-NOPE" || len(out.Detailed) != 0 {
		t.Errorf("expected fresh empty archive, got %+v", out)
	}
}

func TestSQLiteArchive_UpsertsByTicker(t *testing.T) {
	a := newTestArchive(t)
	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)

	first := &model.TickerArchive{Ticker: "KRW-ETH", Detailed: []model.PricePoint{{Timestamp: ts, Price: 1}}, LastUpdated: ts}
	second := &model.TickerArchive{Ticker: "KRW-ETH", Detailed: []model.PricePoint{{Timestamp: ts, Price: 1}, {Timestamp: ts.Add(time.Minute), Price: 2}}, LastUpdated: ts.Add(time.Minute)}
	if err := a.Save(first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := a.Save(second); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := a.Load("KRW-ETH")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Detailed) != 2 {
		t.Fatalf("expected the second save to replace the row, got %d points", len(out.Detailed))
	}
}

func TestSQLiteArchive_Tickers(t *testing.T) {
	a := newTestArchive(t)
	ts := time.Now()
	for _, tk := range []string{"KRW-ETH", "KRW-BTC"} {
		if err := a.Save(&model.TickerArchive{Ticker: tk, LastUpdated: ts}); err != nil {
			t.Fatalf("save %s: %v", tk, err)
		}
	}

	got, err := a.Tickers()
	if err != nil {
		t.Fatalf("tickers: %v", err)
	}
	if len(got) != 2 || got[0] != "KRW-BTC" || got[1] != "KRW-ETH" {
		t.Fatalf("expected sorted ticker list, got %v", got)
	}
}

func TestSQLiteArchive_MigratesLegacyPayload(t *testing.T) {
	a := newTestArchive(t)
	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)

	legacy := archivePayload{
		Version: 1,
		History: []model.PricePoint{{Timestamp: ts, Price: 777}},
	}
	raw, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("marshal legacy payload: %v", err)
	}
	if _, err := a.db.Exec(
		`INSERT INTO ticker_archives (ticker, payload, last_updated) VALUES (?, ?, ?)`,
		"KRW-OLD", string(raw), ts.Unix(),
	); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	out, err := a.Load("KRW-OLD")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Detailed) != 1 || out.Detailed[0].Price != 777 {
		t.Fatalf("legacy history not normalized into the fine tier: %+v", out.Detailed)
	}
	if len(out.Hourly) != 0 || len(out.Daily) != 0 {
		t.Error("legacy payloads carry no coarse tiers")
	}
}

func TestSQLiteArchive_MalformedPayload(t *testing.T) {
	a := newTestArchive(t)
	if _, err := a.db.Exec(
		`INSERT INTO ticker_archives (ticker, payload, last_updated) VALUES (?, ?, ?)`,
		"KRW-BAD", "{not json", time.Now().Unix(),
	); err != nil {
		t.Fatalf("insert bad row: %v", err)
	}

	out, err := a.Load("KRW-BAD")
	if err != nil {
		t.Fatalf("malformed payload must degrade, not fail: %v", err)
	}
	if len(out.Detailed) != 0 {
		t.Errorf("expected empty archive, got %d points", len(out.Detailed))
	}
}
