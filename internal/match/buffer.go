package match

import "container/heap"

// Buffer holds partial results ordered by earliest bound timestamp, so the
// oldest entry can be evicted in O(log n). It rejects results equal in
// content to one it already holds.
type Buffer struct {
	heap  resultHeap
	index map[uint64][]*MatchResult
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{index: make(map[uint64][]*MatchResult)}
}

// Len returns the number of held results.
func (b *Buffer) Len() int { return len(b.heap) }

// Push inserts r and reports whether it was inserted. A result equal to one
// already held is dropped.
func (b *Buffer) Push(r *MatchResult) bool {
	if b.Has(r) {
		return false
	}
	b.index[r.Hash()] = append(b.index[r.Hash()], r)
	heap.Push(&b.heap, r)
	return true
}

// Has reports whether a result equal to r is held.
func (b *Buffer) Has(r *MatchResult) bool {
	for _, other := range b.index[r.Hash()] {
		if other.Equal(r) {
			return true
		}
	}
	return false
}

// Peek returns the result with the smallest earliest time, or nil.
func (b *Buffer) Peek() *MatchResult {
	if len(b.heap) == 0 {
		return nil
	}
	return b.heap[0]
}

// Pop removes and returns the result with the smallest earliest time, or nil.
func (b *Buffer) Pop() *MatchResult {
	if len(b.heap) == 0 {
		return nil
	}
	r := heap.Pop(&b.heap).(*MatchResult)
	b.unindex(r)
	return r
}

// EvictBefore removes every result whose earliest time is before t and
// returns how many were removed.
func (b *Buffer) EvictBefore(t int64) int {
	n := 0
	for len(b.heap) > 0 && b.heap[0].EarliestTime() < t {
		b.Pop()
		n++
	}
	return n
}

// Each calls fn for every held result in no particular order. fn must not
// modify the buffer.
func (b *Buffer) Each(fn func(*MatchResult)) {
	for _, r := range b.heap {
		fn(r)
	}
}

func (b *Buffer) unindex(r *MatchResult) {
	bucket := b.index[r.Hash()]
	for i, other := range bucket {
		if other == r {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(b.index, r.Hash())
		return
	}
	b.index[r.Hash()] = bucket
}

type resultHeap []*MatchResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].EarliestTime() < h[j].EarliestTime() }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) {
	*h = append(*h, x.(*MatchResult))
}

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return r
}
