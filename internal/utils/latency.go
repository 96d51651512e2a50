package utils

import (
	"math"
	"slices"
	"sync"
	"time"
)

// LatencyStats summarises a latency window in milliseconds.
type LatencyStats struct {
	Samples int     `json:"samples"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// LatencyWindow keeps the last size durations in a ring.
type LatencyWindow struct {
	mu   sync.Mutex
	ring []time.Duration
	next int
	full bool
}

// NewLatencyWindow creates a window of size samples; size <= 0 uses 512.
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 512
	}
	return &LatencyWindow{ring: make([]time.Duration, size)}
}

// Observe records d, overwriting the oldest sample once the window is full.
func (w *LatencyWindow) Observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring[w.next] = d
	w.next = (w.next + 1) % len(w.ring)
	if w.next == 0 {
		w.full = true
	}
}

// Snapshot returns nearest-rank percentiles over the current window.
func (w *LatencyWindow) Snapshot() LatencyStats {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.ring)
	}
	sorted := slices.Clone(w.ring[:n])
	w.mu.Unlock()

	if n == 0 {
		return LatencyStats{}
	}
	slices.Sort(sorted)
	return LatencyStats{
		Samples: n,
		P50Ms:   millis(nearestRank(sorted, 50)),
		P95Ms:   millis(nearestRank(sorted, 95)),
		MaxMs:   millis(sorted[n-1]),
	}
}

func nearestRank(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p * float64(len(sorted)) / 100))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
