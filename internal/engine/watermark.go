package engine

import (
	"math"
	"sync/atomic"
)

// Watermark tracks the timestamp of the latest processed batch.
//
// Batches must arrive in non-decreasing timestamp order: windows are
// evaluated against the newest batch, so an older batch could revive
// results that were already evicted.
//
// Thread-safety: Watermark is safe for concurrent use (atomic operations),
// though only the Run loop advances it.
type Watermark struct {
	ts atomic.Int64
}

// NewWatermark creates a watermark that accepts any first timestamp.
func NewWatermark() *Watermark {
	w := &Watermark{}
	w.ts.Store(math.MinInt64)
	return w
}

// Advance moves the watermark to ts. It reports false, leaving the
// watermark unchanged, if ts is below the current value. Equal timestamps
// are accepted.
func (w *Watermark) Advance(ts int64) bool {
	for {
		cur := w.ts.Load()
		if ts < cur {
			return false
		}
		if w.ts.CompareAndSwap(cur, ts) {
			return true
		}
	}
}

// Current returns the latest accepted timestamp, or math.MinInt64 before
// the first batch.
func (w *Watermark) Current() int64 {
	return w.ts.Load()
}
