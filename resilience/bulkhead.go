package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/bulwark/observe"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// Name identifies the service this bulkhead isolates.
	Name string

	// MaxConcurrent is the maximum number of tasks running at once.
	// Default: 10
	MaxConcurrent int

	// MaxQueueSize is the maximum number of tasks waiting for a slot.
	// Default: 0 (no queue, reject immediately when full)
	MaxQueueSize int

	// QueueTimeout is how long a queued task waits for a slot before being
	// rejected with ErrQueueTimeout.
	// Default: 30 seconds
	QueueTimeout time.Duration
}

func (c BulkheadConfig) withDefaults() BulkheadConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.MaxQueueSize < 0 {
		c.MaxQueueSize = 0
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = 30 * time.Second
	}
	return c
}

// Merge layers non-zero fields of the patch over the receiver, returning a
// new config. Neither input is mutated.
func (c BulkheadConfig) Merge(patch BulkheadPatch) BulkheadConfig {
	out := c
	if patch.MaxConcurrent != nil {
		out.MaxConcurrent = *patch.MaxConcurrent
	}
	if patch.MaxQueueSize != nil {
		out.MaxQueueSize = *patch.MaxQueueSize
	}
	if patch.QueueTimeout != nil {
		out.QueueTimeout = *patch.QueueTimeout
	}
	return out
}

// BulkheadPatch is a partial BulkheadConfig used for reconfiguration.
type BulkheadPatch struct {
	MaxConcurrent *int
	MaxQueueSize  *int
	QueueTimeout  *time.Duration
}

// Bulkhead limits concurrent work for one logical service: tasks run
// immediately while slots are free, wait in a bounded FIFO queue when they
// are not, and are rejected outright once the queue is full. One service's
// overload therefore cannot starve another's bulkhead.
type Bulkhead struct {
	config BulkheadConfig

	mu       sync.Mutex
	active   int
	queue    []*bhWaiter
	draining bool
	drainCh  chan struct{}

	completed       int64
	failed          int64
	rejectedFull    int64
	rejectedTimeout int64

	instruments *observe.BulkheadInstruments
}

type bhWaiter struct {
	ch      chan error // settled exactly once with nil (granted) or an error
	granted bool       // guarded by the bulkhead mutex
}

// BulkheadOption configures a Bulkhead.
type BulkheadOption func(*Bulkhead)

// WithBulkheadInstruments sets the bulkhead's telemetry instruments.
func WithBulkheadInstruments(ins *observe.BulkheadInstruments) BulkheadOption {
	return func(b *Bulkhead) {
		b.instruments = ins
	}
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig, opts ...BulkheadOption) *Bulkhead {
	b := &Bulkhead{config: config.withDefaults()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the configured service name.
func (b *Bulkhead) Name() string { return b.config.Name }

// Config returns the bulkhead configuration.
func (b *Bulkhead) Config() BulkheadConfig { return b.config }

// Execute runs task under the bulkhead's concurrency limit. When all slots
// are busy the task waits in FIFO order up to QueueTimeout, provided the
// queue has room; otherwise it is rejected immediately with ErrBulkheadFull.
func (b *Bulkhead) Execute(ctx context.Context, task func(context.Context) error) error {
	if err := b.admit(ctx); err != nil {
		return err
	}
	return b.run(ctx, task)
}

// admit claims an execution slot, queueing when necessary.
func (b *Bulkhead) admit(ctx context.Context) error {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return ErrDraining
	}

	if b.active < b.config.MaxConcurrent {
		b.active++
		b.mu.Unlock()
		return nil
	}

	if len(b.queue) >= b.config.MaxQueueSize {
		b.rejectedFull++
		b.mu.Unlock()
		b.instruments.TaskRejected(ctx, b.config.Name, "full")
		return ErrBulkheadFull
	}

	w := &bhWaiter{ch: make(chan error, 1)}
	b.queue = append(b.queue, w)
	timeout := b.config.QueueTimeout
	b.mu.Unlock()

	b.instruments.TaskQueued(ctx, b.config.Name)
	defer b.instruments.TaskDequeued(ctx, b.config.Name)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-w.ch:
		return err

	case <-timer.C:
		if b.settleLate(w) {
			return nil
		}
		b.mu.Lock()
		b.rejectedTimeout++
		b.mu.Unlock()
		b.instruments.TaskRejected(ctx, b.config.Name, "timeout")
		return ErrQueueTimeout

	case <-ctx.Done():
		if b.settleLate(w) {
			// Slot was granted as the caller gave up; pass it on.
			b.releaseSlot(ctx)
		}
		return ctx.Err()
	}
}

// run executes the task, then hands the freed slot to the oldest queued
// waiter. The slot is released via defer so a panicking task cannot leak it.
func (b *Bulkhead) run(ctx context.Context, task func(context.Context) error) error {
	b.instruments.TaskStarted(ctx, b.config.Name)
	defer func() {
		b.instruments.TaskFinished(ctx, b.config.Name)
		b.releaseSlot(ctx)
	}()

	err := task(ctx)

	b.mu.Lock()
	if err != nil {
		b.failed++
	} else {
		b.completed++
	}
	b.mu.Unlock()
	return err
}

// releaseSlot frees one slot, waking the oldest waiter if present. The slot
// transfers directly: active stays constant on hand-off.
func (b *Bulkhead) releaseSlot(ctx context.Context) {
	b.mu.Lock()
	if len(b.queue) > 0 {
		w := b.queue[0]
		b.queue = b.queue[1:]
		w.granted = true
		w.ch <- nil
		b.mu.Unlock()
		return
	}
	if b.active > 0 {
		// Guard against going negative after a Reset raced in-flight work.
		b.active--
	}
	if b.draining && b.active == 0 && b.drainCh != nil {
		close(b.drainCh)
		b.drainCh = nil
	}
	b.mu.Unlock()
}

// settleLate resolves the race between a queue timeout (or cancellation) and
// a concurrent grant. It reports whether the waiter holds a slot; otherwise
// the waiter is unlinked from the queue.
func (b *Bulkhead) settleLate(w *bhWaiter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w.granted {
		return true
	}
	for i, queued := range b.queue {
		if queued == w {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			break
		}
	}
	return false
}

// Drain stops accepting new tasks and waits for in-flight and queued work to
// finish, or for ctx to expire.
func (b *Bulkhead) Drain(ctx context.Context) error {
	b.mu.Lock()
	b.draining = true
	if b.active == 0 && len(b.queue) == 0 {
		b.mu.Unlock()
		return nil
	}
	if b.drainCh == nil {
		b.drainCh = make(chan struct{})
	}
	ch := b.drainCh
	b.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears the queue and counters so a stuck bulkhead can recover.
// Queued waiters are rejected with ErrBulkheadFull.
func (b *Bulkhead) Reset() {
	b.mu.Lock()
	for _, w := range b.queue {
		w.granted = false
		w.ch <- ErrBulkheadFull
	}
	b.queue = nil
	b.active = 0
	b.draining = false
	if b.drainCh != nil {
		close(b.drainCh)
		b.drainCh = nil
	}
	b.completed = 0
	b.failed = 0
	b.rejectedFull = 0
	b.rejectedTimeout = 0
	b.mu.Unlock()
}

// BulkheadStats is a snapshot of bulkhead counters.
type BulkheadStats struct {
	Name            string
	ActiveCount     int
	QueuedCount     int
	MaxConcurrent   int
	MaxQueueSize    int
	Completed       int64
	Failed          int64
	RejectedFull    int64
	RejectedTimeout int64
	Draining        bool
}

// Stats returns current bulkhead statistics.
func (b *Bulkhead) Stats() BulkheadStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadStats{
		Name:            b.config.Name,
		ActiveCount:     b.active,
		QueuedCount:     len(b.queue),
		MaxConcurrent:   b.config.MaxConcurrent,
		MaxQueueSize:    b.config.MaxQueueSize,
		Completed:       b.completed,
		Failed:          b.failed,
		RejectedFull:    b.rejectedFull,
		RejectedTimeout: b.rejectedTimeout,
		Draining:        b.draining,
	}
}

// Saturated reports whether the bulkhead is at full concurrency with work
// backed up in the queue.
func (b *Bulkhead) Saturated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active >= b.config.MaxConcurrent && len(b.queue) > 0
}

// Do runs a task that returns a value through the bulkhead.
func Do[T any](ctx context.Context, b *Bulkhead, task func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := task(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
