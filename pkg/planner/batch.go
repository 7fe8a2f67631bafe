package planner

const (
	// MaxConcurrency is the hard upper bound on workers for one run.
	MaxConcurrency = 150

	// ItemsPerWorker sizes batches so every worker gets a share of each batch.
	ItemsPerWorker = 64
)

// Concurrency clamps requested into [1, MaxConcurrency] and never exceeds
// itemCount. It returns 0 when there is nothing to do.
func Concurrency(requested, itemCount int) int {
	if itemCount <= 0 {
		return 0
	}

	c := requested
	if c < 1 {
		c = 1
	}
	if c > MaxConcurrency {
		c = MaxConcurrency
	}
	if c > itemCount {
		c = itemCount
	}
	return c
}

// BatchSize returns the number of items handed to one worker pool run.
func BatchSize(concurrency int) int {
	if concurrency < 1 {
		concurrency = 1
	}
	return concurrency * ItemsPerWorker
}

// Batcher hands out consecutive slices of items. It is consumed once.
type Batcher[T any] struct {
	items []T
	size  int
	next  int
}

func NewBatcher[T any](items []T, size int) *Batcher[T] {
	if size < 1 {
		size = 1
	}
	return &Batcher[T]{items: items, size: size}
}

// Count is the total number of batches, including ones already returned.
func (b *Batcher[T]) Count() int {
	return (len(b.items) + b.size - 1) / b.size
}

// Next returns the next batch, or false when all items have been handed out.
func (b *Batcher[T]) Next() ([]T, bool) {
	if b.next >= len(b.items) {
		return nil, false
	}

	end := b.next + b.size
	if end > len(b.items) {
		end = len(b.items)
	}

	batch := b.items[b.next:end:end]
	b.next = end
	return batch, true
}
