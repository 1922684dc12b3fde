package input

import "container/heap"

// eventHeap orders events by timestamp, then by insertion order so that
// equal timestamps keep the order they were read in.
type eventHeap struct {
	items []heapItem
	next  uint64
}

type heapItem struct {
	event EventEdge
	seq   uint64
}

func (h *eventHeap) Len() int { return len(h.items) }

func (h *eventHeap) Less(i, j int) bool {
	if h.items[i].event.Timestamp != h.items[j].event.Timestamp {
		return h.items[i].event.Timestamp < h.items[j].event.Timestamp
	}
	return h.items[i].seq < h.items[j].seq
}

func (h *eventHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *eventHeap) Push(x any) {
	h.items = append(h.items, x.(heapItem))
}

func (h *eventHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = heapItem{}
	h.items = old[:n-1]
	return item
}

// Sorter reorders events that arrive roughly sorted (rows sorted by start
// time, but end times arbitrarily later) into timestamp order.
type Sorter struct {
	h eventHeap
}

// NewSorter creates an empty Sorter.
func NewSorter() *Sorter {
	return &Sorter{}
}

// Push buffers an event.
func (s *Sorter) Push(e EventEdge) {
	heap.Push(&s.h, heapItem{event: e, seq: s.h.next})
	s.h.next++
}

// PopUntil removes and returns, in order, every buffered event with a
// timestamp not after t.
func (s *Sorter) PopUntil(t int64) []EventEdge {
	var out []EventEdge
	for s.h.Len() > 0 && s.h.items[0].event.Timestamp <= t {
		out = append(out, heap.Pop(&s.h).(heapItem).event)
	}
	return out
}

// Drain removes and returns every buffered event in order.
func (s *Sorter) Drain() []EventEdge {
	out := make([]EventEdge, 0, s.h.Len())
	for s.h.Len() > 0 {
		out = append(out, heap.Pop(&s.h).(heapItem).event)
	}
	return out
}

// Len returns the number of buffered events.
func (s *Sorter) Len() int {
	return s.h.Len()
}
