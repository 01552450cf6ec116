package history

import (
	"time"

	"CoinSentinel/internal/model"
)

// ring is a bounded ring buffer of recent price points. It mirrors the
// fine-grained tier for low-latency window queries; it is best-effort and
// never the source of truth.
type ring struct {
	buf   []model.PricePoint
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.PricePoint, capacity)}
}

// push appends a point, evicting the oldest entry on overflow.
func (r *ring) push(p model.PricePoint) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

// since returns points newer than cutoff, in insertion order.
func (r *ring) since(cutoff time.Time) []model.PricePoint {
	out := make([]model.PricePoint, 0, r.n)
	for i := 0; i < r.n; i++ {
		p := r.buf[(r.start+i)%len(r.buf)]
		if p.Timestamp.After(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

func (r *ring) len() int { return r.n }
