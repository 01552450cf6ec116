package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"CoinSentinel/internal/history"
	"CoinSentinel/internal/market"
	"CoinSentinel/internal/report"
	"CoinSentinel/internal/retry"
	"CoinSentinel/internal/selector"

	"github.com/robfig/cron/v3"
)

// defaultCaptureRetryDelay is how long the capture cycle waits before
// rechecking an in-progress selection cycle.
const defaultCaptureRetryDelay = 5 * time.Second

// Scheduler runs the capture and selection cycles on cron timers. The two
// cycles both write ticker archives; the capture cycle defers to an
// in-progress selection cycle via a busy flag rather than blocking.
type Scheduler struct {
	Cron      *cron.Cron
	Store     *history.Store
	Selector  *selector.Selector
	Market    market.MarketData
	Formatter *report.Formatter
	Retry     retry.Policy
	Ctx       context.Context

	mu        sync.Mutex
	tracked   []string
	selecting atomic.Bool

	captureRetryDelay time.Duration
}

// NewScheduler creates a Scheduler tracking the given initial ticker set.
func NewScheduler(ctx context.Context, store *history.Store, sel *selector.Selector, md market.MarketData, fm *report.Formatter, policy retry.Policy, initial []string) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Store:     store,
		Selector:  sel,
		Market:    md,
		Formatter: fm,
		Retry:     policy,
		Ctx:       ctx,
		tracked:   initial,

		captureRetryDelay: defaultCaptureRetryDelay,
	}
}

// RegisterAll registers the capture and selection tasks.
func (s *Scheduler) RegisterAll(captureCron, selectionCron string) error {
	if _, err := s.Cron.AddFunc(captureCron, s.captureTask); err != nil {
		return fmt.Errorf("register capture task: %w", err)
	}
	if _, err := s.Cron.AddFunc(selectionCron, s.selectionTask); err != nil {
		return fmt.Errorf("register selection task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// Tracked returns the current tracked-ticker set.
func (s *Scheduler) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tracked))
	copy(out, s.tracked)
	return out
}

// RunSelectionNow executes the selection cycle immediately (manual
// trigger / RUN_ON_START).
func (s *Scheduler) RunSelectionNow() {
	s.selectionTask()
}

// captureTask records one price/volume sample per tracked ticker. If the
// selection cycle is in progress it retries once after a short delay,
// then skips this iteration.
func (s *Scheduler) captureTask() {
	if s.selecting.Load() {
		log.Println("[INFO] capture: selection in progress, retrying shortly")
		time.Sleep(s.captureRetryDelay)
		if s.selecting.Load() {
			log.Println("[WARN] capture: selection still in progress, skipping iteration")
			return
		}
	}

	for _, ticker := range s.Tracked() {
		select {
		case <-s.Ctx.Done():
			return
		default:
		}

		var snap market.Snapshot
		err := s.Retry.Do(func() error {
			var ferr error
			snap, ferr = s.Market.Snapshot(ticker)
			return ferr
		})
		if err != nil {
			log.Printf("[WARN] capture %s: %v", ticker, err)
			continue
		}

		vol := snap.Volume24h
		if !s.Store.Record(ticker, snap.TradePrice, &vol, time.Now()) {
			log.Printf("[WARN] capture %s: record failed", ticker)
		}
	}
}

// selectionTask refreshes the coin universe, backfills newly added
// tickers, and swaps the tracked set.
func (s *Scheduler) selectionTask() {
	s.selecting.Store(true)
	defer s.selecting.Store(false)

	log.Println("[INFO] running coin selection cycle")
	previous := s.Tracked()
	final, detail := s.Selector.UpdateUniverse()

	added, removed := diff(previous, final)
	log.Printf("[INFO] selection %s: %d selected, %d added, %d removed",
		detail.CycleID, len(final), len(added), len(removed))

	for _, ticker := range added {
		if !s.Store.Backfill(ticker) {
			log.Printf("[WARN] backfill %s failed, will fill from live captures", ticker)
		}
	}

	s.mu.Lock()
	s.tracked = final
	s.mu.Unlock()

	if s.Formatter != nil {
		for _, ticker := range added {
			log.Printf("[INFO] %s", s.Formatter.FormatTrend(ticker, 24))
		}
		log.Printf("[INFO] universe digest:\n%s", s.Formatter.Report(final, 24, false))
	}
}

// diff reports tickers entering and leaving the tracked set.
func diff(previous, current []string) (added, removed []string) {
	prev := make(map[string]bool, len(previous))
	for _, t := range previous {
		prev[t] = true
	}
	curr := make(map[string]bool, len(current))
	for _, t := range current {
		curr[t] = true
	}
	for _, t := range current {
		if !prev[t] {
			added = append(added, t)
		}
	}
	for _, t := range previous {
		if !curr[t] {
			removed = append(removed, t)
		}
	}
	return added, removed
}
