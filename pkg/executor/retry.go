package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/yuya-takeyama/bulklift/pkg/objstore"
	"github.com/yuya-takeyama/bulklift/pkg/worker"
)

const (
	defaultBaseDelay = 100 * time.Millisecond
	defaultMaxDelay  = 30 * time.Second
)

// RetryPolicy bounds how often one item operation is attempted.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy makes attempts tries with exponential backoff.
func DefaultRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		Attempts:  attempts,
		BaseDelay: defaultBaseDelay,
		MaxDelay:  defaultMaxDelay,
	}
}

// do runs fn until it succeeds, returns a permanent error or attempts run
// out. onRetry is called before each sleep.
func (p RetryPolicy) do(ctx context.Context, fn func() error, onRetry func(attempt int, err error)) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}
		if !isRetryable(err) {
			return attempt, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(p.calculateDelay(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return attempts, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

func isRetryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, worker.ErrFatalInput):
		return false
	case objstore.IsNotFound(err):
		return false
	}
	return true
}

// calculateDelay doubles BaseDelay per attempt and spreads the result by
// ±25%, never exceeding MaxDelay.
func (p RetryPolicy) calculateDelay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	// saturated delays stay above maxDelay after jitter
	ceiling := maxDelay
	if maxDelay < math.MaxInt64/2 {
		ceiling = maxDelay + maxDelay/2
	}
	delay := retryablehttp.DefaultBackoff(p.BaseDelay, ceiling, attempt, nil)
	delay = retryablehttp.LinearJitterBackoff(delay-delay/4, delay+delay/4, 0, nil)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
