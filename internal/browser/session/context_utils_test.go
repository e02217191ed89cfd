// internal/browser/session/context_utils_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

const testKey ctxKey = "k"

func TestCombineContext(t *testing.T) {
	t.Run("ValuesFromPrimary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), testKey, "v")
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "v", combined.Value(testKey))
		assert.NoError(t, combined.Err())
	})

	t.Run("PrimaryCancel", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("SecondaryCancel", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		cancelSecondary()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("PrimaryDeadlineKept", func(t *testing.T) {
		deadline := time.Now().Add(50 * time.Millisecond)
		primary, cancelPrimary := context.WithDeadline(context.Background(), deadline)
		defer cancelPrimary()

		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, deadline, got, time.Millisecond)
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.DeadlineExceeded)
	})

	// A secondary deadline surfaces as Canceled; RunActions maps it back.
	t.Run("SecondaryDeadlineIsCanceled", func(t *testing.T) {
		secondary, cancelSecondary := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancelSecondary()

		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		<-combined.Done()
		assert.ErrorIs(t, secondary.Err(), context.DeadlineExceeded)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("OwnCancel", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	t.Run("KeepsValues", func(t *testing.T) {
		parent := context.WithValue(context.Background(), testKey, "v")
		assert.Equal(t, "v", Detach(parent).Value(testKey))
	})

	t.Run("IgnoresParentCancel", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		detached := Detach(parent)
		cancel()

		assert.NoError(t, detached.Err())
		assert.Nil(t, detached.Done())
	})

	t.Run("DropsDeadline", func(t *testing.T) {
		parent, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		detached := Detach(parent)
		<-parent.Done()

		_, ok := detached.Deadline()
		assert.False(t, ok)
		assert.NoError(t, detached.Err())
	})

	t.Run("ChildTimeoutApplies", func(t *testing.T) {
		parent, cancelParent := context.WithCancel(context.Background())
		child, cancel := context.WithTimeout(Detach(parent), 30*time.Millisecond)
		defer cancel()
		cancelParent()

		<-child.Done()
		assert.ErrorIs(t, child.Err(), context.DeadlineExceeded)
	})
}
