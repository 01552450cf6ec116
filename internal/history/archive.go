package history

import (
	"sort"
	"sync"

	"CoinSentinel/internal/model"
)

// Archive persists one durable record per ticker holding the three tiers
// plus a last-updated timestamp. Implementations return an empty archive
// for tickers with no history.
type Archive interface {
	Load(ticker string) (*model.TickerArchive, error)
	Save(arch *model.TickerArchive) error
	Tickers() ([]string, error)
	Close() error
}

func emptyArchive(ticker string) *model.TickerArchive {
	return &model.TickerArchive{Ticker: ticker}
}

// MemoryArchive is an in-memory Archive used in tests and as a degraded
// fallback when the database cannot be opened.
type MemoryArchive struct {
	mu       sync.Mutex
	archives map[string]*model.TickerArchive
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{archives: make(map[string]*model.TickerArchive)}
}

func (m *MemoryArchive) Load(ticker string) (*model.TickerArchive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	arch, ok := m.archives[ticker]
	if !ok {
		return emptyArchive(ticker), nil
	}
	return cloneArchive(arch), nil
}

func (m *MemoryArchive) Save(arch *model.TickerArchive) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[arch.Ticker] = cloneArchive(arch)
	return nil
}

func (m *MemoryArchive) Tickers() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tickers := make([]string, 0, len(m.archives))
	for t := range m.archives {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers, nil
}

func (m *MemoryArchive) Close() error { return nil }

// cloneArchive keeps callers from aliasing stored tier slices.
func cloneArchive(arch *model.TickerArchive) *model.TickerArchive {
	out := &model.TickerArchive{
		Ticker:      arch.Ticker,
		Detailed:    make([]model.PricePoint, len(arch.Detailed)),
		Hourly:      make([]model.HourBar, len(arch.Hourly)),
		Daily:       make([]model.DayBar, len(arch.Daily)),
		LastUpdated: arch.LastUpdated,
	}
	copy(out.Detailed, arch.Detailed)
	copy(out.Hourly, arch.Hourly)
	copy(out.Daily, arch.Daily)
	return out
}
