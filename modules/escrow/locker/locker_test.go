package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLock(t *testing.T) {
	t.Run("serializes_same_key", func(t *testing.T) {
		m := NewMemory()
		var (
			wg      sync.WaitGroup
			running atomic.Int32
			maxSeen atomic.Int32
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := m.Lock(context.Background(), "deal")
				require.NoError(t, err)
				defer unlock()
				n := running.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen.Load())
		assert.Empty(t, m.slots)
	})

	t.Run("different_keys_do_not_block", func(t *testing.T) {
		m := NewMemory()
		unlockA, err := m.Lock(context.Background(), "a")
		require.NoError(t, err)
		defer unlockA()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unlockB, err := m.Lock(ctx, "b")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("context_canceled_while_waiting", func(t *testing.T) {
		m := NewMemory()
		unlock, err := m.Lock(context.Background(), "deal")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = m.Lock(ctx, "deal")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock()
		assert.Empty(t, m.slots)
	})
}

func TestLockSlots(t *testing.T) {
	testCases := []struct {
		name     string
		maxConns int32
		expected int64
	}{
		{name: "default_pool", maxConns: 16, expected: 8},
		{name: "odd_pool_leaves_spare_connection", maxConns: 5, expected: 2},
		{name: "single_connection_pool", maxConns: 1, expected: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			slots := lockSlots(tc.maxConns)
			assert.Equal(t, tc.expected, slots)
			if tc.maxConns > 1 {
				assert.Less(t, slots, int64(tc.maxConns), "a lock holder must always find a second connection")
			}
		})
	}
}
