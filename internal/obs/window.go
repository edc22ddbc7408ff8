package obs

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const defaultWindowSize = 4096

// LatencyWindow keeps the last N samples for percentile queries.
type LatencyWindow struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewLatencyWindow allocates a ring of the given size.
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &LatencyWindow{samples: make([]float64, size)}
}

// Observe records one sample in microseconds.
func (w *LatencyWindow) Observe(us float64) {
	w.mu.Lock()
	w.samples[w.next] = us
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
	w.mu.Unlock()
}

// Percentiles returns p50, p95 and p99 over the retained samples using nearest rank.
func (w *LatencyWindow) Percentiles() (p50, p95, p99 float64) {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	sorted := make([]float64, n)
	copy(sorted, w.samples[:n])
	w.mu.Unlock()

	if n == 0 {
		return 0, 0, 0
	}
	slices.Sort(sorted)
	return rank(sorted, 0.50), rank(sorted, 0.95), rank(sorted, 0.99)
}

func rank(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// RateMeter converts a running count into a per-second rate between calls to Rate.
type RateMeter struct {
	count uint64

	mu        sync.Mutex
	lastCount uint64
	lastAt    time.Time
}

func NewRateMeter(now time.Time) *RateMeter {
	return &RateMeter{lastAt: now}
}

func (r *RateMeter) Mark(n uint64) {
	atomic.AddUint64(&r.count, n)
}

// Rate returns events per second since the previous call.
func (r *RateMeter) Rate(now time.Time) float64 {
	count := atomic.LoadUint64(&r.count)

	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := now.Sub(r.lastAt).Seconds()
	delta := count - r.lastCount
	r.lastCount = count
	r.lastAt = now
	if elapsed <= 0 {
		return 0
	}
	return float64(delta) / elapsed
}
