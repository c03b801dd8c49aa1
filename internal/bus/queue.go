package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"
)

// Item is the unit passed through a lane.
type Item struct {
	Event    schema.Event
	Source   uint16
	RecvNano int64
}

// Queue is a bounded, non-blocking FIFO feeding a single consumer.
type Queue struct {
	ch     chan Item
	mu     sync.RWMutex
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Item, capacity)}
}

// TryPublish enqueues an item without blocking.
func (q *Queue) TryPublish(item Item) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrDispatcherClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return exception.ErrLaneQueueFull
	}
}

// Close stops the queue from accepting new items. Items already queued are still delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Run consumes items in order until the context is done or the queue is closed and drained.
func (q *Queue) Run(ctx context.Context, handler func(Item)) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-q.ch:
			if !ok {
				return
			}
			handler(item)
		}
	}
}
