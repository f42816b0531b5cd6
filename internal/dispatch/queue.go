// Package dispatch hands events from radio callback goroutines to a single
// consumer goroutine without ever blocking the producer.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Queue is a bounded channel-like buffer with overwrite-oldest semantics.
//
// Producers never block: if the buffer is full, the oldest element is
// discarded and counted in Metrics.Overwritten. A single consumer reads via
// C, Receive or Run.
//
//	q := dispatch.NewQueue[string](3)
//	for i := 0; i < 10; i++ {
//	    q.Send(strconv.Itoa(i))
//	}
//	// only "7", "8" and "9" remain
//
// Send after Close is dropped silently, so late radio callbacks racing a
// shutdown are harmless.
type Queue[T any] struct {
	ch      chan T
	mu      sync.Mutex // serializes producers against Close and drop-oldest
	closed  atomic.Bool
	metrics Metrics
}

// NewQueue creates a Queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("dispatch: capacity must be > 0")
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. Reads through C are not counted as Processed.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Send inserts v, discarding the oldest element if the buffer is full.
// It reports whether an element was discarded.
func (q *Queue[T]) Send(v T) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed.Load() {
		atomic.AddInt64(&q.metrics.Rejected, 1)
		return false
	}

	for {
		select {
		case q.ch <- v:
			atomic.AddInt64(&q.metrics.Written, 1)
			return dropped
		default:
		}
		select {
		case <-q.ch:
			atomic.AddInt64(&q.metrics.Overwritten, 1)
			dropped = true
		default:
		}
	}
}

// Receive blocks until a value is available or the queue is closed.
func (q *Queue[T]) Receive() (v T, ok bool) {
	v, ok = <-q.ch
	if ok {
		atomic.AddInt64(&q.metrics.Processed, 1)
	}
	return
}

// TryReceive returns (zero, false) if nothing is buffered.
func (q *Queue[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-q.ch:
		if ok {
			atomic.AddInt64(&q.metrics.Processed, 1)
		}
		return
	default:
		var zero T
		return zero, false
	}
}

// Run calls fn for every element on the calling goroutine until ctx is done
// or the queue is closed and drained.
func (q *Queue[T]) Run(ctx context.Context, fn func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-q.ch:
			if !ok {
				return
			}
			atomic.AddInt64(&q.metrics.Processed, 1)
			fn(v)
		}
	}
}

// Len returns the number of buffered elements.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Close closes the queue. Buffered elements can still be received.
// Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

// Metrics returns a snapshot of the counters.
func (q *Queue[T]) Metrics() Metrics {
	return Metrics{
		Processed:   atomic.LoadInt64(&q.metrics.Processed),
		Written:     atomic.LoadInt64(&q.metrics.Written),
		Overwritten: atomic.LoadInt64(&q.metrics.Overwritten),
		Rejected:    atomic.LoadInt64(&q.metrics.Rejected),
	}
}

// Metrics are lock-free counters for a Queue.
type Metrics struct {
	Processed   int64
	Written     int64
	Overwritten int64
	Rejected    int64 // sends after Close
}
