package queue

import (
	"context"
	stderrors "errors"
	"sync"
)

// ErrClosed is returned by Push and Pop once the queue has been closed and,
// for Pop, drained.
var ErrClosed = stderrors.New("queue closed")

// Queue is an unbounded FIFO. Push never blocks; Pop blocks until an item is
// available, the context is done or the queue is closed and empty.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	// ready is signalled (non-blocking) whenever an item is pushed or the
	// queue is closed. Waiters re-check state under mu.
	ready chan struct{}

	pushes  int64
	pops    int64
	metrics *queueMetrics
}

// New creates an empty queue.
func New[T any](options ...Option) (*Queue[T], error) {
	opts := applyOptions(options...)

	q := &Queue[T]{
		ready: make(chan struct{}, 1),
	}

	if opts.metricsReg != nil {
		m, err := newQueueMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, err
		}
		q.metrics = m
	}

	return q, nil
}

// Push appends item to the tail of the queue.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.pushes++
	size := len(q.items) - q.head
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.recordPush(size)
	}
	q.signal()
	return nil
}

// Pop removes and returns the head of the queue, blocking while it is empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			item := q.items[q.head]
			q.items[q.head] = zero
			q.head++
			q.pops++
			q.compact()
			size := len(q.items) - q.head
			more := size > 0
			q.mu.Unlock()

			if q.metrics != nil {
				q.metrics.recordPop(size)
			}
			if more {
				q.signal()
			}
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			q.signal()
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// TryPop returns the head of the queue without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	q.mu.Lock()
	if q.head >= len(q.items) {
		q.mu.Unlock()
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	q.pops++
	q.compact()
	size := len(q.items) - q.head
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.recordPop(size)
	}
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Stats returns the total number of pushes and pops since creation.
func (q *Queue[T]) Stats() (pushes, pops int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushes, q.pops
}

// Close stops further pushes. Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// compact drops the consumed prefix once it dominates the backing slice.
// Caller holds mu.
func (q *Queue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head >= 1024 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}
