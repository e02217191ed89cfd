// internal/wait/wait.go
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the polling cadence used when a caller passes a non-positive interval.
const DefaultInterval = 100 * time.Millisecond

// ErrTimeout is returned when a predicate never became true within its budget.
var ErrTimeout = errors.New("wait: timed out")

// Predicate reports whether the awaited condition holds. The context it receives
// carries the overall deadline of the wait.
type Predicate func(ctx context.Context) (bool, error)

// Poll evaluates fn every interval until it returns true, the timeout elapses, or ctx is done.
//
// The deadline is wall-clock from the moment Poll is called, so time spent inside the
// predicate counts against the budget. A predicate error aborts the wait immediately.
func Poll(ctx context.Context, interval, timeout time.Duration, fn Predicate) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := time.Now().Add(timeout)

	// The predicate context ends slightly after the deadline so an in-flight driver call
	// that overruns reports ErrTimeout instead of a raw context error.
	pctx, cancel := context.WithDeadline(ctx, deadline.Add(interval))
	defer cancel()

	for {
		ok, err := fn(pctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !time.Now().Before(deadline) && errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w after %v", ErrTimeout, timeout)
			}
			return fmt.Errorf("wait: predicate failed: %w", err)
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}

		timer := time.NewTimer(min(interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Until is Poll with the default interval.
func Until(ctx context.Context, timeout time.Duration, fn Predicate) error {
	return Poll(ctx, DefaultInterval, timeout, fn)
}
