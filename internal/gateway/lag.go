package gateway

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LagSummary is a percentile summary in milliseconds.
type LagSummary struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
}

// LagTracker keeps the most recent tick-to-emit delays in a ring and
// summarises them on demand.
type LagTracker struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  bool
}

// NewLagTracker keeps the last size samples (default 4096).
func NewLagTracker(size int) *LagTracker {
	if size <= 0 {
		size = 4096
	}
	return &LagTracker{samples: make([]float64, size)}
}

// Observe records the delay between a snapshot's tick time and now.
func (t *LagTracker) Observe(tickAt, emitted time.Time) {
	t.Record(float64(emitted.Sub(tickAt)) / float64(time.Millisecond))
}

// Record adds a sample in milliseconds.
func (t *LagTracker) Record(ms float64) {
	t.mu.Lock()
	t.samples[t.next] = ms
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.filled = true
	}
	t.mu.Unlock()
}

// Summary returns the current percentiles. Zero when empty.
func (t *LagTracker) Summary() LagSummary {
	t.mu.Lock()
	n := t.next
	if t.filled {
		n = len(t.samples)
	}
	sorted := append([]float64(nil), t.samples[:n]...)
	t.mu.Unlock()

	if n == 0 {
		return LagSummary{}
	}
	sort.Float64s(sorted)
	return LagSummary{
		Count: n,
		P50:   quantile(sorted, 0.50),
		P95:   quantile(sorted, 0.95),
		P99:   quantile(sorted, 0.99),
	}
}

// quantile interpolates linearly between the two closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
