// internal/wait/wait_test.go
package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoll_ImmediateSuccess(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()
	err := Poll(context.Background(), 50*time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls.Add(1)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPoll_SucceedsAfterRetries(t *testing.T) {
	var calls atomic.Int32
	err := Poll(context.Background(), 10*time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return calls.Add(1) >= 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPoll_RespectsInterval(t *testing.T) {
	var stamps []time.Time
	_ = Poll(context.Background(), 40*time.Millisecond, 200*time.Millisecond, func(context.Context) (bool, error) {
		stamps = append(stamps, time.Now())
		return len(stamps) == 4, nil
	})
	require.Len(t, stamps, 4)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 35*time.Millisecond, "retry %d came too early", i)
	}
}

func TestPoll_TimeoutWindow(t *testing.T) {
	const (
		interval = 100 * time.Millisecond
		timeout  = 200 * time.Millisecond
	)
	start := time.Now()
	err := Poll(context.Background(), interval, timeout, func(context.Context) (bool, error) {
		return false, nil
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, timeout)
	// Scheduler slack on busy CI machines.
	assert.LessOrEqual(t, elapsed, timeout+interval+25*time.Millisecond)
}

func TestPoll_PredicateLatencyCountsAgainstBudget(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()
	err := Poll(context.Background(), 10*time.Millisecond, 100*time.Millisecond, func(context.Context) (bool, error) {
		calls.Add(1)
		time.Sleep(60 * time.Millisecond)
		return false, nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(2), calls.Load())
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestPoll_PredicateErrorAbortsImmediately(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	err := Poll(context.Background(), 10*time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls.Add(1)
		return false, boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoll_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := Poll(ctx, 10*time.Millisecond, 5*time.Second, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoll_PredicateContextCarriesDeadline(t *testing.T) {
	err := Poll(context.Background(), 10*time.Millisecond, 100*time.Millisecond, func(ctx context.Context) (bool, error) {
		_, ok := ctx.Deadline()
		return ok, nil
	})
	assert.NoError(t, err)
}

func TestPoll_BlockedPredicateReportsTimeout(t *testing.T) {
	err := Poll(context.Background(), 20*time.Millisecond, 50*time.Millisecond, func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUntil_DefaultInterval(t *testing.T) {
	var calls atomic.Int32
	err := Until(context.Background(), 250*time.Millisecond, func(context.Context) (bool, error) {
		calls.Add(1)
		return false, nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	// 0ms, 100ms, 200ms and the clamped final probe at 250ms.
	assert.InDelta(t, 4, calls.Load(), 1)
}
