package worker

import (
	"context"
	"errors"
)

// ErrQueueFull is returned when an enqueue would exceed the queue capacity.
var ErrQueueFull = errors.New("work queue is full")

// Outcome tags what a Dequeue call produced.
type Outcome int

const (
	// OutcomeItem means a work item was returned.
	OutcomeItem Outcome = iota
	// OutcomeSentinel means the worker must exit: no more work in this batch.
	OutcomeSentinel
	// OutcomeCancelled means cancellation was signaled before work arrived.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeItem:
		return "item"
	case OutcomeSentinel:
		return "sentinel"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type entry[T any] struct {
	sentinel bool
	index    int
	item     T
}

// Queue is a bounded FIFO shared by the workers of one batch. It is safe for
// concurrent use.
type Queue[T any] struct {
	ch chan entry[T]
}

// NewQueue creates a queue that can hold capacity entries, sentinels
// included.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{ch: make(chan entry[T], capacity)}
}

// Enqueue adds an item without blocking.
func (q *Queue[T]) Enqueue(index int, item T) error {
	return q.put(entry[T]{index: index, item: item})
}

// EnqueueSentinels adds n termination markers, one per worker.
func (q *Queue[T]) EnqueueSentinels(n int) error {
	for i := 0; i < n; i++ {
		if err := q.put(entry[T]{sentinel: true, index: -1}); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue[T]) put(e entry[T]) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until an entry is available or ctx is done. It never blocks
// past cancellation.
func (q *Queue[T]) Dequeue(ctx context.Context) (int, T, Outcome) {
	var zero T

	// cancellation wins over queued work
	if ctx.Err() != nil {
		return -1, zero, OutcomeCancelled
	}

	select {
	case <-ctx.Done():
		return -1, zero, OutcomeCancelled
	case e := <-q.ch:
		if e.sentinel {
			return -1, zero, OutcomeSentinel
		}
		return e.index, e.item, OutcomeItem
	}
}
