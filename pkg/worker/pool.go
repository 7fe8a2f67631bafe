package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrFatalInput marks an operation failure meaning the work source can no
// longer be read. It triggers an immediate abort of the run.
var ErrFatalInput = errors.New("work source failed")

// ErrInFlight is recorded on items whose operation had started but not
// reported back when an immediate abort returned. Their remote outcome is
// unknown.
var ErrInFlight = errors.New("operation in flight at immediate abort")

// FatalInput wraps err so the pool treats it as ErrFatalInput.
func FatalInput(err error) error {
	return fmt.Errorf("%w: %w", ErrFatalInput, err)
}

// Status is the final state of one item.
type Status int

const (
	StatusNotAttempted Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "not-attempted"
	}
}

// Operation is invoked once per item by a worker.
type Operation[T any] func(ctx context.Context, item T) error

// Result represents the outcome of one item.
type Result[T any] struct {
	Item   T
	Status Status
	Error  error
}

// RunStats describes what the workers of one run observed.
type RunStats struct {
	Workers           int
	Dequeued          int64
	SentinelsConsumed int64
}

type completion struct {
	index int
	err   error
}

// Pool runs a fixed number of workers over one batch at a time.
type Pool[T any] struct {
	concurrency int
	ctrl        *Controller
}

func NewPool[T any](concurrency int, ctrl *Controller) *Pool[T] {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool[T]{
		concurrency: concurrency,
		ctrl:        ctrl,
	}
}

// Run fills a fresh queue with items plus one sentinel per worker, starts the
// workers and waits until every worker has exited. The returned results are
// aligned with items.
//
// On immediate abort Run returns without waiting for in-flight operations.
// Those items are reported as StatusNotAttempted with ErrInFlight, even though
// the operation may still complete afterwards.
func (p *Pool[T]) Run(items []T, op Operation[T]) ([]Result[T], RunStats) {
	results := make([]Result[T], len(items))
	for i, item := range items {
		results[i] = Result[T]{Item: item, Status: StatusNotAttempted}
	}
	stats := RunStats{Workers: p.concurrency}

	if len(items) == 0 || p.ctrl.Aborted() {
		stats.Workers = 0
		return results, stats
	}

	queue := NewQueue[T](len(items) + p.concurrency)
	for i, item := range items {
		// capacity is exact, so this cannot fail
		_ = queue.Enqueue(i, item)
	}
	_ = queue.EnqueueSentinels(p.concurrency)

	// buffered so late workers never block after an immediate abort
	completions := make(chan completion, len(items))
	var dequeued, sentinels atomic.Int64
	started := make([]atomic.Bool, len(items))

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(queue, op, completions, started, &dequeued, &sentinels)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-p.ctrl.Killed():
	}

drain:
	for {
		select {
		case c := <-completions:
			p.record(results, c)
		default:
			break drain
		}
	}

	for i := range results {
		if results[i].Status == StatusNotAttempted && results[i].Error == nil && started[i].Load() {
			results[i].Error = ErrInFlight
		}
	}

	stats.Dequeued = dequeued.Load()
	stats.SentinelsConsumed = sentinels.Load()
	return results, stats
}

func (p *Pool[T]) work(queue *Queue[T], op Operation[T], completions chan<- completion, started []atomic.Bool, dequeued, sentinels *atomic.Int64) {
	for {
		index, item, outcome := queue.Dequeue(p.ctrl.StopContext())
		switch outcome {
		case OutcomeSentinel:
			sentinels.Add(1)
			return
		case OutcomeCancelled:
			return
		}
		dequeued.Add(1)
		started[index].Store(true)

		err := op(p.ctrl.Context(), item)
		if errors.Is(err, ErrFatalInput) {
			p.ctrl.Kill()
		}
		completions <- completion{index: index, err: err}
	}
}

func (p *Pool[T]) record(results []Result[T], c completion) {
	r := &results[c.index]
	switch {
	case c.err == nil:
		r.Status = StatusSucceeded
	case p.ctrl.Mode() == AbortImmediate && errors.Is(c.err, context.Canceled) && !errors.Is(c.err, ErrFatalInput):
		// cut short by the abort, not by the remote side
		r.Status = StatusNotAttempted
		r.Error = c.err
	default:
		r.Status = StatusFailed
		r.Error = c.err
	}
}
