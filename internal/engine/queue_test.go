package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/littleponywork/IPMES/internal/input"
	"github.com/littleponywork/IPMES/internal/testutil"
)

func batchAt(ts int64, ids ...int64) []input.EventEdge {
	b := make([]input.EventEdge, 0, len(ids))
	for _, id := range ids {
		b = append(b, testutil.Event(ts, "sig", id, 0, 1))
	}
	return b
}

func TestBatchQueue_EnqueueDequeue(t *testing.T) {
	q := newBatchQueue(DefaultQueueCapacity)
	ctx := context.Background()

	ok := q.Enqueue(ctx, batchAt(5, 1, 2))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[0].Timestamp)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestBatchQueue_FIFO(t *testing.T) {
	q := newBatchQueue(DefaultQueueCapacity)
	ctx := context.Background()

	for ts := int64(1); ts <= 3; ts++ {
		q.Enqueue(ctx, batchAt(ts, ts))
	}

	for want := int64(1); want <= 3; want++ {
		b, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, b[0].Timestamp)
	}
}

func TestBatchQueue_TryDequeue_Empty(t *testing.T) {
	q := newBatchQueue(DefaultQueueCapacity)

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestBatchQueue_Wait_SignalsOnEnqueue(t *testing.T) {
	q := newBatchQueue(DefaultQueueCapacity)
	ctx := context.Background()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(ctx, batchAt(1, 1))
	}()

	select {
	case <-q.Wait():
		_, ok := q.TryDequeue()
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("wait did not signal")
	}
}

func TestBatchQueue_Close(t *testing.T) {
	q := newBatchQueue(DefaultQueueCapacity)
	ctx := context.Background()
	assert.False(t, q.Closed())

	q.Close()
	q.Close() // second close is a no-op

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(ctx, batchAt(1, 1)), "enqueue after close should return false")

	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("closed queue must wake waiters")
	}
}

func TestBatchQueue_Len(t *testing.T) {
	q := newBatchQueue(DefaultQueueCapacity)
	ctx := context.Background()

	assert.Equal(t, 0, q.Len())
	q.Enqueue(ctx, batchAt(1, 1))
	q.Enqueue(ctx, batchAt(2, 2))
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
	q.TryDequeue()
	assert.Equal(t, 0, q.Len())
}

func TestBatchQueue_ThreadSafe(t *testing.T) {
	const producers = 10
	const batchesPerProducer = 100

	q := newBatchQueue(producers * batchesPerProducer)
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < batchesPerProducer; i++ {
				q.Enqueue(ctx, batchAt(int64(i), int64(producerID*1000+i)))
			}
		}(p)
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*batchesPerProducer, received)
}

func TestBatchQueue_CapacityFloor(t *testing.T) {
	assert.Equal(t, 1, newBatchQueue(0).Cap())
	assert.Equal(t, 3, newBatchQueue(3).Cap())
}

func TestBatchQueue_FullQueueHoldsProducerBack(t *testing.T) {
	q := newBatchQueue(2)
	ctx := context.Background()

	require.True(t, q.Enqueue(ctx, batchAt(1, 1)))
	require.True(t, q.Enqueue(ctx, batchAt(2, 2)))

	enqueued := make(chan bool, 1)
	go func() { enqueued <- q.Enqueue(ctx, batchAt(3, 3)) }()

	select {
	case <-enqueued:
		t.Fatal("enqueue on a full queue must wait")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, q.Len())

	b, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, int64(1), b[0].Timestamp)

	select {
	case ok := <-enqueued:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("producer not released after dequeue")
	}
	assert.Equal(t, 2, q.Len())
}

func TestBatchQueue_BlockedEnqueue_ContextCancelled(t *testing.T) {
	q := newBatchQueue(1)
	require.True(t, q.Enqueue(context.Background(), batchAt(1, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	enqueued := make(chan bool, 1)
	go func() { enqueued <- q.Enqueue(ctx, batchAt(2, 2)) }()

	cancel()
	select {
	case ok := <-enqueued:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue ignored context cancellation")
	}
	assert.Equal(t, 1, q.Len())
}

func TestBatchQueue_BlockedEnqueue_Close(t *testing.T) {
	q := newBatchQueue(1)
	ctx := context.Background()
	require.True(t, q.Enqueue(ctx, batchAt(1, 1)))

	enqueued := make(chan bool, 1)
	go func() { enqueued <- q.Enqueue(ctx, batchAt(2, 2)) }()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case ok := <-enqueued:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not release the blocked producer")
	}

	// Already queued batches still drain after close.
	_, ok := q.TryDequeue()
	assert.True(t, ok)
}

func TestBatchQueue_BoundedUnderLoad(t *testing.T) {
	const capacity = 4
	const total = 500

	q := newBatchQueue(capacity)
	ctx := context.Background()

	go func() {
		for i := 0; i < total; i++ {
			q.Enqueue(ctx, batchAt(int64(i), int64(i)))
		}
		q.Close()
	}()

	received := 0
	for {
		if b, ok := q.TryDequeue(); ok {
			assert.Equal(t, int64(received), b[0].Timestamp)
			received++
			assert.LessOrEqual(t, q.Len(), capacity)
			continue
		}
		if _, open := <-q.Wait(); !open && q.Len() == 0 {
			break
		}
	}
	assert.Equal(t, total, received)
}
