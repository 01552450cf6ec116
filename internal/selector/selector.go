package selector

import (
	"log"
	"math/rand"
	"sort"

	"CoinSentinel/internal/market"
	"CoinSentinel/internal/model"
	"CoinSentinel/internal/retry"

	"github.com/google/uuid"
)

// Selector produces the tracked-ticker universe: pinned majors and held
// coins plus randomly sampled momentum/dip candidates.
type Selector struct {
	market     market.MarketData
	account    market.Account // nil when no account is configured
	retry      retry.Policy
	thresholds Thresholds
	quote      string
	majorsFile string
}

func NewSelector(md market.MarketData, acct market.Account, policy retry.Policy, th Thresholds, quote, majorsFile string) *Selector {
	return &Selector{
		market:     md,
		account:    acct,
		retry:      policy,
		thresholds: th,
		quote:      quote,
		majorsFile: majorsFile,
	}
}

// HeldTickers derives the currently held markets from the live account.
// Any failure degrades to an empty list.
func (s *Selector) HeldTickers() []string {
	if s.account == nil {
		return nil
	}
	balances, err := s.account.Balances()
	if err != nil {
		log.Printf("[WARN] fetch balances: %v", err)
		return nil
	}
	var held []string
	for _, b := range balances {
		if b.Currency == s.quote || !b.Balance.IsPositive() {
			continue
		}
		held = append(held, s.quote+"-"+b.Currency)
	}
	return held
}

// UpdateUniverse runs the full selection cycle and returns the new
// tracked set with its audit detail. When the market-wide ticker list or
// the metrics snapshot cannot be fetched, it returns the pinned set alone
// rather than failing the cycle.
func (s *Selector) UpdateUniverse() ([]string, model.SelectionDetail) {
	detail := model.SelectionDetail{CycleID: uuid.NewString()}

	majors := LoadMajors(s.majorsFile)
	held := s.HeldTickers()
	pinned := uniqueSorted(append(append([]string{}, majors...), held...))
	detail.Pinned = pinned
	log.Printf("[INFO] selection %s: %d pinned (%d majors, %d held)",
		detail.CycleID, len(pinned), len(majors), len(held))

	var allTickers []string
	err := s.retry.Do(func() error {
		var ferr error
		allTickers, ferr = s.market.AllTickers(s.quote)
		return ferr
	})
	if err != nil || len(allTickers) == 0 {
		log.Printf("[WARN] selection %s: ticker list unavailable, keeping pinned only: %v", detail.CycleID, err)
		return pinned, detail
	}
	detail.TotalTickers = len(allTickers)

	var metrics []model.CoinMetrics
	err = s.retry.Do(func() error {
		var ferr error
		metrics, ferr = s.market.BatchMetrics(allTickers)
		return ferr
	})
	if err != nil || len(metrics) == 0 {
		log.Printf("[WARN] selection %s: metrics unavailable, keeping pinned only: %v", detail.CycleID, err)
		return pinned, detail
	}

	filtered := Filter(metrics, s.quote, s.thresholds)

	// Pinned markets bypass screening entirely; drop them before
	// classification so they cannot occupy candidate slots.
	pinnedSet := toSet(pinned)
	screened := filtered[:0]
	for _, m := range filtered {
		if !pinnedSet[m.Market] {
			screened = append(screened, m)
		}
	}
	detail.FilteredCount = len(screened)
	log.Printf("[INFO] selection %s: %d/%d passed filters", detail.CycleID, len(screened), len(metrics))

	momentum, dip := Classify(screened, s.thresholds)
	detail.MomentumAll = markets(momentum)
	detail.DipAll = markets(dip)
	detail.Momentum = truncate(detail.MomentumAll, s.thresholds.TargetMomentum)
	detail.Dip = truncate(detail.DipAll, s.thresholds.TargetDip)

	final := Select(pinned, momentum, dip, s.thresholds)
	log.Printf("[INFO] selection %s: %d tickers selected (momentum pool %d, dip pool %d)",
		detail.CycleID, len(final), len(momentum), len(dip))
	return final, detail
}

// Select combines the pinned set with sampled momentum and dip
// candidates. Pinned tickers are always fully included; each bucket
// contributes up to its target count drawn uniformly at random from the
// top of its sorted candidate pool. The result is deduplicated and sorted
// lexicographically.
func Select(pinned []string, momentum, dip []model.CoinMetrics, th Thresholds) []string {
	pinnedSet := toSet(pinned)
	selected := make(map[string]bool, len(pinned))
	for _, t := range pinned {
		selected[t] = true
	}

	for _, t := range samplePool(momentum, pinnedSet, th.CandidatePoolSize, th.TargetMomentum) {
		selected[t] = true
	}
	for _, t := range samplePool(dip, pinnedSet, th.CandidatePoolSize, th.TargetDip) {
		selected[t] = true
	}

	final := make([]string, 0, len(selected))
	for t := range selected {
		final = append(final, t)
	}
	sort.Strings(final)
	return final
}

// samplePool takes the top poolSize candidates not already pinned, then
// draws target of them without replacement. Pools at or under the target
// are taken whole. The draw is intentionally unseeded: sampling varies
// across cycles for diversity.
func samplePool(sorted []model.CoinMetrics, pinned map[string]bool, poolSize, target int) []string {
	var pool []string
	for _, m := range sorted {
		if pinned[m.Market] {
			continue
		}
		pool = append(pool, m.Market)
		if len(pool) >= poolSize {
			break
		}
	}
	if len(pool) <= target {
		return pool
	}

	picked := make([]string, 0, target)
	for _, i := range rand.Perm(len(pool))[:target] {
		picked = append(picked, pool[i])
	}
	return picked
}

func uniqueSorted(items []string) []string {
	set := toSet(items)
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

func markets(metrics []model.CoinMetrics) []string {
	out := make([]string, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, m.Market)
	}
	return out
}

func truncate(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
