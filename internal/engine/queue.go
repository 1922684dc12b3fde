package engine

import (
	"context"
	"sync"

	"github.com/littleponywork/IPMES/internal/input"
)

// DefaultQueueCapacity is the number of batches a reader may run ahead of
// the Run loop.
const DefaultQueueCapacity = 64

// batchQueue is a thread-safe bounded FIFO queue of event batches.
//
// Enqueue blocks while the queue is full, so an external reader is held
// back to the pace of the matcher instead of buffering the whole stream.
// Two channels carry wakeups: signal for the consumer (a batch arrived) and
// space for producers (a batch left). Both close with the queue.
type batchQueue struct {
	mu       sync.Mutex
	batches  [][]input.EventEdge
	capacity int
	closed   bool
	signal   chan struct{} // Signals batch availability (buffered, size 1)
	space    chan struct{} // Signals free capacity (buffered, size 1)
}

// newBatchQueue creates an empty queue holding at most capacity batches.
// A capacity below 1 is treated as 1.
func newBatchQueue(capacity int) *batchQueue {
	capacity = max(capacity, 1)
	return &batchQueue{
		batches:  make([][]input.EventEdge, 0, capacity),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
	}
}

// Enqueue adds a batch to the back of the queue, waiting for room while the
// queue is full.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed or ctx is done before the batch fits.
func (q *batchQueue) Enqueue(ctx context.Context, b []input.EventEdge) bool {
	for {
		if q.tryEnqueue(b) {
			return true
		}
		if q.Closed() {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-q.space:
		}
	}
}

func (q *batchQueue) tryEnqueue(b []input.EventEdge) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.batches) >= q.capacity {
		return false
	}

	q.batches = append(q.batches, b)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	// Pass a coalesced wakeup on to the next blocked producer.
	if len(q.batches) < q.capacity {
		select {
		case q.space <- struct{}{}:
		default:
		}
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (nil, false) if the queue is empty.
func (q *batchQueue) TryDequeue() ([]input.EventEdge, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return nil, false
	}

	b := q.batches[0]

	// Nil out the slot so the backing array does not pin the batch.
	q.batches[0] = nil

	if len(q.batches) == 1 {
		q.batches = q.batches[:0]
	} else {
		q.batches = q.batches[1:]
	}

	// space is closed once the queue is closed.
	if !q.closed {
		select {
		case q.space <- struct{}{}:
		default:
		}
	}

	return b, true
}

// Wait returns a channel that signals when batches may be available.
// The channel is closed once the queue is closed.
func (q *batchQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *batchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Cap returns the maximum number of queued batches.
func (q *batchQueue) Cap() int { return q.capacity }

// Closed reports whether Close has been called. A stale signal left by an
// already dequeued batch must not end the Run loop.
func (q *batchQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more batches will be enqueued.
// Wakes the consumer and any producer blocked on a full queue.
func (q *batchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
	close(q.space)
}
