// Package fifo provides a strict first-in-first-out mutual exclusion lock.
//
// Unlike sync.Mutex, which makes no ordering promise under contention, this
// lock admits waiters in the exact order they called Lock. The rollback
// engine and the provenance store rely on that ordering so queued mutations
// against the same repository complete in submission order.
package fifo

import (
	"context"
	"sync"
)

// Mutex is a FIFO mutual exclusion lock. The zero value is unlocked and
// ready to use. A Mutex must not be copied after first use.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{}
}

// Lock acquires the lock, blocking until every earlier caller has released
// it. It returns the context's error if ctx is canceled while waiting; in
// that case the caller does not hold the lock.
func (m *Mutex) Lock(ctx context.Context) error {
	m.mu.Lock()

	if !m.locked {
		m.locked = true
		m.mu.Unlock()

		return nil
	}

	ready := make(chan struct{})
	m.waiters = append(m.waiters, ready)
	m.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		m.abandon(ready)

		return ctx.Err()
	}
}

// Unlock releases the lock and hands it to the oldest waiter, if any.
// Unlocking an unlocked Mutex is a programming error and panics.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locked {
		panic("fifo: unlock of unlocked mutex")
	}

	if len(m.waiters) == 0 {
		m.locked = false

		return
	}

	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	close(next)
}

// abandon removes a canceled waiter from the queue. If the waiter was
// granted the lock concurrently with cancellation, the grant is passed on
// so the lock is never lost.
func (m *Mutex) abandon(ready chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.waiters {
		if w == ready {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)

			return
		}
	}

	// Not in the queue: Unlock already granted us the lock. Release it.
	if len(m.waiters) == 0 {
		m.locked = false

		return
	}

	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	close(next)
}

// WithLock runs fn while holding the lock. The lock is released
// unconditionally, whether fn succeeds or fails.
func (m *Mutex) WithLock(ctx context.Context, fn func() error) error {
	err := m.Lock(ctx)
	if err != nil {
		return err
	}
	defer m.Unlock()

	return fn()
}
