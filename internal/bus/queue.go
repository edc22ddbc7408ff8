package bus

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

// Queue is a bounded, non-blocking queue between a producer such as a venue
// stream and the engine loop.
type Queue[T any] struct {
	ch     chan T
	mu     sync.RWMutex
	closed bool
	onDrop func()
}

// NewQueue allocates a queue with the given capacity. onDrop, when set, is
// called every time TryPublish rejects an item because the queue is full.
func NewQueue[T any](capacity int, onDrop func()) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity), onDrop: onDrop}
}

// TryPublish enqueues an item without blocking.
func (q *Queue[T]) TryPublish(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		if q.onDrop != nil {
			q.onDrop()
		}
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new items. Buffered items can still be received.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// C exposes the receive side of the queue.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Recv blocks for the next item. ok is false once the context is done or the
// queue is closed and drained.
func (q *Queue[T]) Recv(ctx context.Context) (T, bool) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, false
	case item, ok := <-q.ch:
		return item, ok
	}
}

// Run consumes items until the context is done or the queue is closed.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		item, ok := q.Recv(ctx)
		if !ok {
			return
		}
		handler(item)
	}
}
