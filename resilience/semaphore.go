package resilience

import (
	"context"
	"sync"
	"time"
)

// Semaphore is a FIFO-fair counting semaphore. Unlike a bare channel
// semaphore, waiters are kept in an explicit queue so the first caller
// blocked is always the first satisfied, and a timed-out waiter is unlinked
// from the queue rather than left to consume a later permit.
type Semaphore struct {
	name string

	mu      sync.Mutex
	permits int
	max     int
	waiters []*semWaiter
}

type semWaiter struct {
	ch      chan struct{} // closed on grant
	granted bool          // guarded by the semaphore mutex
}

// NewSemaphore creates a semaphore with the given number of permits.
// Permits below 1 are raised to 1.
func NewSemaphore(name string, permits int) *Semaphore {
	if permits < 1 {
		permits = 1
	}
	return &Semaphore{
		name:    name,
		permits: permits,
		max:     permits,
	}
}

// Name returns the semaphore's name.
func (s *Semaphore) Name() string { return s.name }

// Acquire consumes one permit, waiting up to timeout when none is free.
// A timeout <= 0 means wait only on ctx.
func (s *Semaphore) Acquire(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.permits > 0 && len(s.waiters) == 0 {
		s.permits--
		s.mu.Unlock()
		return nil
	}

	w := &semWaiter{ch: make(chan struct{})}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		timeoutCh = timer.C
		defer timer.Stop()
	}

	select {
	case <-w.ch:
		return nil

	case <-timeoutCh:
		if s.settleLate(w) {
			return nil
		}
		return ErrSemaphoreTimeout

	case <-ctx.Done():
		if s.settleLate(w) {
			// Caller is gone; give the permit back.
			s.Release()
		}
		return ctx.Err()
	}
}

// TryAcquire consumes a permit without waiting. It reports whether a permit
// was acquired.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permits > 0 && len(s.waiters) == 0 {
		s.permits--
		return true
	}
	return false
}

// Release returns one permit, waking the oldest waiter if one is queued.
// Releasing beyond capacity is a no-op.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiters) > 0 {
		// Permit passes directly to the oldest waiter.
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		w.granted = true
		close(w.ch)
		return
	}
	if s.permits < s.max {
		s.permits++
	}
}

// settleLate resolves the race between a timeout (or cancellation) and a
// concurrent grant. It reports whether the waiter already holds a permit;
// otherwise the waiter is unlinked from the queue.
func (s *Semaphore) settleLate(w *semWaiter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.granted {
		return true
	}
	for i, queued := range s.waiters {
		if queued == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			break
		}
	}
	return false
}

// Available returns the number of free permits.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permits
}

// Waiting returns the number of queued acquirers.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// Capacity returns the total number of permits.
func (s *Semaphore) Capacity() int {
	return s.max
}
