package fifo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutex_LockUnlock(t *testing.T) {
	t.Parallel()

	var m Mutex

	err := m.Lock(context.Background())

	require.NoError(t, err)

	m.Unlock()
}

func TestMutex_UnlockUnlocked_Panics(t *testing.T) {
	t.Parallel()

	var m Mutex

	assert.Panics(t, func() { m.Unlock() })
}

func TestMutex_FIFOOrder(t *testing.T) {
	t.Parallel()

	var m Mutex

	ctx := context.Background()

	require.NoError(t, m.Lock(ctx))

	const waiters = 8

	order := make([]int, 0, waiters)

	var orderMu sync.Mutex

	started := make(chan struct{}, waiters)
	done := make(chan struct{}, waiters)

	for i := range waiters {
		go func(id int) {
			started <- struct{}{}

			assert.NoError(t, m.Lock(ctx))

			orderMu.Lock()
			order = append(order, id)
			orderMu.Unlock()

			m.Unlock()

			done <- struct{}{}
		}(i)

		// Wait for the goroutine to start, then give it time to enqueue so
		// arrival order matches goroutine index.
		<-started
		time.Sleep(10 * time.Millisecond)
	}

	m.Unlock()

	for range waiters {
		<-done
	}

	for i := range waiters {
		assert.Equal(t, i, order[i], "waiter %d served out of order", i)
	}
}

func TestMutex_CancelWhileWaiting(t *testing.T) {
	t.Parallel()

	var m Mutex

	require.NoError(t, m.Lock(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		errCh <- m.Lock(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-errCh

	require.ErrorIs(t, err, context.Canceled)

	// The canceled waiter must not block the lock for others.
	m.Unlock()

	require.NoError(t, m.Lock(context.Background()))

	m.Unlock()
}

func TestMutex_WithLock_ReleasesOnError(t *testing.T) {
	t.Parallel()

	var m Mutex

	ctx := context.Background()

	err := m.WithLock(ctx, func() error {
		return assert.AnError
	})

	require.ErrorIs(t, err, assert.AnError)

	// Lock must be free again.
	require.NoError(t, m.Lock(ctx))

	m.Unlock()
}

func TestMutex_ConcurrentCounter(t *testing.T) {
	t.Parallel()

	var m Mutex

	const goroutines = 50

	counter := 0

	var wg sync.WaitGroup

	for range goroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := m.WithLock(context.Background(), func() error {
				counter++

				return nil
			})

			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Equal(t, goroutines, counter)
}
