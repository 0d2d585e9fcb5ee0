package pool

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/bulwark/observe"
)

// Factory creates, validates, and destroys one concrete resource type.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: all methods must honor cancellation/deadlines.
// - Errors: Validate reports health only; it must not panic.
type Factory[T any] interface {
	// Create builds a new resource.
	Create(ctx context.Context) (T, error)

	// Validate reports whether an existing resource is still usable.
	Validate(ctx context.Context, value T) bool

	// Destroy releases a resource. Errors are logged by the pool, not
	// propagated to acquirers.
	Destroy(ctx context.Context, value T) error
}

// Resource is a pooled resource with its bookkeeping metadata. Acquire
// returns a snapshot copy; the pool keeps the authoritative record.
type Resource[T any] struct {
	// ID uniquely identifies this resource within its pool.
	ID string

	// Value is the factory-created resource.
	Value T

	// Provider is the owning pool's name.
	Provider string

	CreatedAt  time.Time
	LastUsedAt time.Time
	InUse      bool
	UsageCount int64
}

// Config configures a Pool. The zero value is usable; defaults are applied
// by New. A Config is never mutated after it is applied; Resize installs a
// replacement.
type Config struct {
	// MinSize is the floor the pool self-heals toward.
	// Default: 0
	MinSize int

	// MaxSize is the maximum number of resources, in use or idle.
	// Default: 10
	MaxSize int

	// AcquireTimeout bounds how long Acquire waits for a free resource once
	// the pool is at MaxSize.
	// Default: 30 seconds
	AcquireTimeout time.Duration

	// IdleTimeout is how long a resource may sit unused before eviction.
	// Default: 10 minutes
	IdleTimeout time.Duration

	// EvictionInterval is how often idle resources are scanned.
	// Default: 0 (eviction loop disabled)
	EvictionInterval time.Duration

	// CreateRetries is the number of additional create attempts after a
	// factory failure, with exponential backoff between attempts.
	// Default: 2
	CreateRetries int

	// ValidateOnAcquire runs Factory.Validate before handing out a resource
	// that was not freshly created.
	ValidateOnAcquire bool
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 10
	}
	if c.MinSize < 0 {
		c.MinSize = 0
	}
	if c.MinSize > c.MaxSize {
		c.MinSize = c.MaxSize
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.EvictionInterval < 0 {
		c.EvictionInterval = 0
	}
	if c.CreateRetries < 0 {
		c.CreateRetries = 2
	}
	return c
}

// Stats is a snapshot of pool counters and gauges.
// Invariant: Size == Available + InUse at every observable point.
type Stats struct {
	TotalCreated      uint64
	TotalDestroyed    uint64
	TotalAcquisitions uint64
	TotalReleases     uint64

	Size      int
	Available int
	InUse     int
	PeakSize  int

	// AverageWaitTime is a running average over successful acquisitions,
	// updated as avg += (wait - avg) / TotalAcquisitions after the
	// acquisition counter has been incremented.
	AverageWaitTime time.Duration
}

type waitResult struct {
	id  string
	err error
}

type waiter struct {
	ch        chan waitResult // buffered, settled exactly once
	satisfied bool            // guarded by the pool mutex
}

// Pool is a generic resource lifecycle manager: acquire/release with a FIFO
// waiting queue, idle eviction, min/max sizing, and a self-healing floor.
type Pool[T any] struct {
	name        string
	factory     Factory[T]
	logger      observe.Logger
	instruments *observe.PoolInstruments
	clock       Clock

	mu        sync.Mutex
	cfg       Config
	resources map[string]*Resource[T]
	waiters   []*waiter
	pending   int // creations in flight, counted toward size
	closed    bool

	totalCreated      uint64
	totalDestroyed    uint64
	totalAcquisitions uint64
	totalReleases     uint64
	peakSize          int
	avgWait           time.Duration

	stopEvict chan struct{}
	evictDone chan struct{}
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithLogger sets the pool's logger.
func WithLogger[T any](l observe.Logger) Option[T] {
	return func(p *Pool[T]) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the pool's clock. Intended for tests.
func WithClock[T any](c Clock) Option[T] {
	return func(p *Pool[T]) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithInstruments sets the pool's telemetry instruments.
func WithInstruments[T any](ins *observe.PoolInstruments) Option[T] {
	return func(p *Pool[T]) {
		p.instruments = ins
	}
}

// New creates a pool and eagerly warms it to MinSize. Warm-up failures are
// logged, not returned; the floor is self-healing and later acquisitions
// retry creation.
func New[T any](name string, factory Factory[T], cfg Config, opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{
		name:      name,
		factory:   factory,
		logger:    observe.NopLogger(),
		clock:     RealClock(),
		cfg:       cfg.withDefaults(),
		resources: make(map[string]*Resource[T]),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.warmUp()

	if p.cfg.EvictionInterval > 0 {
		p.stopEvict = make(chan struct{})
		p.evictDone = make(chan struct{})
		go p.evictLoop()
	}

	return p
}

// Name returns the pool's name.
func (p *Pool[T]) Name() string { return p.name }

// warmUp creates MinSize resources in parallel.
func (p *Pool[T]) warmUp() {
	min := p.cfg.MinSize
	if min <= 0 {
		return
	}

	var g errgroup.Group
	for i := 0; i < min; i++ {
		g.Go(func() error {
			value, err := p.createWithRetries(context.Background())
			if err != nil {
				return err
			}
			p.addIdle(value)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn(context.Background(), "pool warm-up incomplete",
			observe.F("pool", p.name), observe.F("error", err.Error()))
	}
}

// Acquire leases a resource: an idle one if available (validated when
// configured), a fresh one while below MaxSize, or the caller joins a FIFO
// queue until a release or the acquire timeout.
func (p *Pool[T]) Acquire(ctx context.Context) (Resource[T], error) {
	start := p.clock.Now()
	res, err := p.acquire(ctx, start)
	p.instruments.RecordAcquire(ctx, p.name, p.clock.Now().Sub(start), err)
	return res, err
}

func (p *Pool[T]) acquire(ctx context.Context, start time.Time) (Resource[T], error) {
	var zero Resource[T]

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return zero, ErrPoolClosed
		}
		cfg := p.cfg

		// Idle resource: reserve it before releasing the lock so two
		// acquirers can never pass the capacity check for the same id.
		if r := p.idleLocked(); r != nil {
			r.InUse = true
			id, value := r.ID, r.Value
			p.mu.Unlock()

			if cfg.ValidateOnAcquire && !p.factory.Validate(ctx, value) {
				p.logger.Warn(ctx, "resource failed validation, destroying",
					observe.F("pool", p.name), observe.F("resource_id", id))
				p.removeAndDestroy(ctx, id)
				continue
			}
			return p.finishAcquire(id, start)
		}

		// Below capacity: reserve a creation slot.
		if p.sizeLocked() < cfg.MaxSize {
			p.pending++
			p.mu.Unlock()

			value, err := p.createWithRetries(ctx)

			p.mu.Lock()
			p.pending--
			if err != nil {
				p.mu.Unlock()
				return zero, err
			}
			if p.closed {
				p.mu.Unlock()
				p.destroyValue(ctx, value)
				return zero, ErrPoolClosed
			}
			r := p.registerLocked(value, true)
			p.mu.Unlock()

			p.instruments.RecordCreated(ctx, p.name)
			return p.finishAcquire(r.ID, start)
		}

		// At capacity: join the FIFO queue.
		w := &waiter{ch: make(chan waitResult, 1)}
		p.waiters = append(p.waiters, w)
		p.mu.Unlock()

		timer := p.clock.NewTimer(cfg.AcquireTimeout)
		select {
		case res := <-w.ch:
			timer.Stop()
			if res.err != nil {
				return zero, res.err
			}
			return p.finishAcquire(res.id, start)

		case <-timer.C():
			if id, ok := p.settleLateWaiter(w); ok {
				// A hand-off raced the timer; the hand-off wins.
				return p.finishAcquire(id, start)
			}
			return zero, ErrAcquireTimeout

		case <-ctx.Done():
			timer.Stop()
			if id, ok := p.settleLateWaiter(w); ok {
				// Caller is gone; return the resource to the pool.
				_ = p.Release(id)
			}
			return zero, ctx.Err()
		}
	}
}

// Release marks a resource free and hands it to the oldest waiter if one is
// queued, re-validating exactly as Acquire does.
func (p *Pool[T]) Release(id string) error {
	ctx := context.Background()

	p.mu.Lock()
	r, ok := p.resources[id]
	if !ok {
		p.mu.Unlock()
		return ErrNotFound
	}
	if !r.InUse {
		p.mu.Unlock()
		return nil
	}
	r.LastUsedAt = p.clock.Now()
	p.totalReleases++

	if len(p.waiters) == 0 {
		r.InUse = false
		p.mu.Unlock()
		return nil
	}

	// A waiter is queued: the resource stays reserved while the hand-off
	// validation runs, so a newly arriving acquirer can neither take it ahead
	// of the queue nor be left holding it if validation fails.
	cfg := p.cfg
	value := r.Value
	p.mu.Unlock()

	if cfg.ValidateOnAcquire && !p.factory.Validate(ctx, value) {
		p.logger.Warn(ctx, "resource failed validation on hand-off, destroying",
			observe.F("pool", p.name), observe.F("resource_id", id))
		p.removeAndDestroy(ctx, id)
		return nil
	}

	// Pop and settle in one critical section so a waiter can never be left
	// half-granted. If every waiter gave up during validation, the resource
	// finally becomes idle.
	p.mu.Lock()
	if r2, ok := p.resources[id]; ok {
		if w := p.popWaiterLocked(); w != nil {
			w.satisfied = true
			w.ch <- waitResult{id: id}
		} else {
			r2.InUse = false
		}
	}
	p.mu.Unlock()
	return nil
}

// Destroy removes a resource from the pool and destroys it via the factory.
// If the pool drops below MinSize, a replacement is created asynchronously;
// replacement failures are logged, never propagated.
func (p *Pool[T]) Destroy(ctx context.Context, id string) error {
	return p.removeAndDestroy(ctx, id)
}

// Clear rejects every queued waiter, destroys every resource, and closes the
// pool. Used only for full shutdown.
func (p *Pool[T]) Clear(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true

	for _, w := range p.waiters {
		w.satisfied = true
		w.ch <- waitResult{err: ErrPoolClosed}
	}
	p.waiters = nil

	victims := make([]*Resource[T], 0, len(p.resources))
	for _, r := range p.resources {
		victims = append(victims, r)
	}
	p.resources = make(map[string]*Resource[T])
	p.totalDestroyed += uint64(len(victims))

	if p.stopEvict != nil {
		close(p.stopEvict)
	}
	p.mu.Unlock()

	for _, r := range victims {
		p.destroyValue(ctx, r.Value)
		p.instruments.RecordDestroyed(ctx, p.name)
	}

	if p.evictDone != nil {
		<-p.evictDone
	}

	p.logger.Info(ctx, "pool cleared",
		observe.F("pool", p.name), observe.F("destroyed", len(victims)))
	return nil
}

// Resize installs a new min/max pair and synchronously creates resources up
// to the new floor. It never exceeds the new maximum.
func (p *Pool[T]) Resize(ctx context.Context, minSize, maxSize int) error {
	if minSize < 0 || maxSize <= 0 || minSize > maxSize {
		return ErrInvalidSize
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.cfg.MinSize = minSize
	p.cfg.MaxSize = maxSize
	p.mu.Unlock()

	p.logger.Info(ctx, "pool resized",
		observe.F("pool", p.name), observe.F("min", minSize), observe.F("max", maxSize))
	return p.replenish(ctx)
}

// Stats returns a snapshot of the pool's counters and gauges. Resources
// being created count as in use: they are already claimed.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	inUse := p.pending
	for _, r := range p.resources {
		if r.InUse {
			inUse++
		}
	}
	size := p.sizeLocked()

	return Stats{
		TotalCreated:      p.totalCreated,
		TotalDestroyed:    p.totalDestroyed,
		TotalAcquisitions: p.totalAcquisitions,
		TotalReleases:     p.totalReleases,
		Size:              size,
		Available:         size - inUse,
		InUse:             inUse,
		PeakSize:          p.peakSize,
		AverageWaitTime:   p.avgWait,
	}
}

// Waiting returns the number of queued acquirers.
func (p *Pool[T]) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Closed reports whether the pool has been cleared.
func (p *Pool[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Config returns the pool's current configuration.
func (p *Pool[T]) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// sizeLocked returns the pool size including creations in flight.
func (p *Pool[T]) sizeLocked() int {
	return len(p.resources) + p.pending
}

// idleLocked returns a free resource, most recently used first.
func (p *Pool[T]) idleLocked() *Resource[T] {
	var best *Resource[T]
	for _, r := range p.resources {
		if r.InUse {
			continue
		}
		if best == nil || r.LastUsedAt.After(best.LastUsedAt) {
			best = r
		}
	}
	return best
}

// registerLocked adds a freshly created resource to the pool's bookkeeping.
func (p *Pool[T]) registerLocked(value T, inUse bool) *Resource[T] {
	now := p.clock.Now()
	r := &Resource[T]{
		ID:         uuid.NewString(),
		Value:      value,
		Provider:   p.name,
		CreatedAt:  now,
		LastUsedAt: now,
		InUse:      inUse,
	}
	p.resources[r.ID] = r
	p.totalCreated++
	if s := p.sizeLocked(); s > p.peakSize {
		p.peakSize = s
	}
	return r
}

// finishAcquire stamps usage metadata and wait-time stats, returning a
// snapshot of the resource.
func (p *Pool[T]) finishAcquire(id string, start time.Time) (Resource[T], error) {
	var zero Resource[T]

	p.mu.Lock()
	r, ok := p.resources[id]
	if !ok {
		// Cleared between grant and pickup.
		p.mu.Unlock()
		return zero, ErrPoolClosed
	}
	now := p.clock.Now()
	r.LastUsedAt = now
	r.UsageCount++
	p.totalAcquisitions++
	wait := now.Sub(start)
	p.avgWait += (wait - p.avgWait) / time.Duration(p.totalAcquisitions)
	snapshot := *r
	p.mu.Unlock()

	return snapshot, nil
}

// settleLateWaiter resolves the race between a timeout (or cancellation) and
// a concurrent hand-off. It reports whether the waiter was already granted a
// resource; otherwise the waiter is unlinked from the queue.
func (p *Pool[T]) settleLateWaiter(w *waiter) (string, bool) {
	p.mu.Lock()
	if w.satisfied {
		p.mu.Unlock()
		res := <-w.ch
		if res.err != nil {
			return "", false
		}
		return res.id, true
	}
	for i, queued := range p.waiters {
		if queued == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	return "", false
}

func (p *Pool[T]) popWaiterLocked() *waiter {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	return w
}

// createWithRetries calls the factory with exponential backoff between
// attempts, up to CreateRetries additional attempts.
func (p *Pool[T]) createWithRetries(ctx context.Context) (T, error) {
	p.mu.Lock()
	retries := p.cfg.CreateRetries
	p.mu.Unlock()

	var value T
	attempts := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second

	op := func() error {
		attempts++
		v, err := p.factory.Create(ctx)
		if err != nil {
			return err
		}
		value = v
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx))
	if err != nil {
		return value, &CreateError{Attempts: attempts, Err: err}
	}
	return value, nil
}

// addIdle registers a created resource as free, granting it directly to the
// oldest waiter when one is queued.
func (p *Pool[T]) addIdle(value T) {
	ctx := context.Background()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroyValue(ctx, value)
		return
	}
	r := p.registerLocked(value, false)
	if w := p.popWaiterLocked(); w != nil {
		r.InUse = true
		w.satisfied = true
		w.ch <- waitResult{id: r.ID}
	}
	p.mu.Unlock()

	p.instruments.RecordCreated(ctx, p.name)
}

// removeAndDestroy removes a resource and destroys it, kicking off
// asynchronous self-healing when the pool falls below its floor or waiters
// are left stranded below capacity.
func (p *Pool[T]) removeAndDestroy(ctx context.Context, id string) error {
	p.mu.Lock()
	r, ok := p.resources[id]
	if !ok {
		p.mu.Unlock()
		return ErrNotFound
	}
	delete(p.resources, id)
	p.totalDestroyed++
	value := r.Value
	needHeal := p.sizeLocked() < p.cfg.MinSize ||
		(len(p.waiters) > 0 && p.sizeLocked() < p.cfg.MaxSize)
	p.mu.Unlock()

	p.destroyValue(ctx, value)
	p.instruments.RecordDestroyed(ctx, p.name)

	if needHeal {
		go func() {
			if err := p.replenish(context.Background()); err != nil {
				p.logger.Warn(context.Background(), "pool self-heal failed",
					observe.F("pool", p.name), observe.F("error", err.Error()))
			}
		}()
	}
	return nil
}

func (p *Pool[T]) destroyValue(ctx context.Context, value T) {
	if err := p.factory.Destroy(ctx, value); err != nil {
		p.logger.Warn(ctx, "resource destroy failed",
			observe.F("pool", p.name), observe.F("error", err.Error()))
	}
}

// replenish creates resources until the pool is back at its floor and, while
// below capacity, no waiters are stranded. Newly created resources go to the
// oldest waiter first.
func (p *Pool[T]) replenish(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil
		}
		size := p.sizeLocked()
		need := size < p.cfg.MinSize ||
			(len(p.waiters) > 0 && size < p.cfg.MaxSize)
		if !need {
			p.mu.Unlock()
			return nil
		}
		p.pending++
		p.mu.Unlock()

		value, err := p.createWithRetries(ctx)

		p.mu.Lock()
		p.pending--
		p.mu.Unlock()

		if err != nil {
			return err
		}
		p.addIdle(value)
	}
}

// evictLoop periodically destroys resources idle past IdleTimeout, never
// dropping the pool below MinSize.
func (p *Pool[T]) evictLoop() {
	defer close(p.evictDone)

	ticker := p.clock.NewTicker(p.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopEvict:
			return
		case <-ticker.C():
			p.evictIdle()
		}
	}
}

func (p *Pool[T]) evictIdle() {
	ctx := context.Background()
	now := p.clock.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	cfg := p.cfg
	var victims []*Resource[T]
	for _, r := range p.resources {
		if r.InUse {
			continue
		}
		if now.Sub(r.LastUsedAt) <= cfg.IdleTimeout {
			continue
		}
		if p.sizeLocked()-len(victims) <= cfg.MinSize {
			break
		}
		victims = append(victims, r)
	}
	for _, r := range victims {
		delete(p.resources, r.ID)
		p.totalDestroyed++
	}
	p.mu.Unlock()

	for _, r := range victims {
		p.destroyValue(ctx, r.Value)
		p.instruments.RecordDestroyed(ctx, p.name)
	}

	if len(victims) > 0 {
		p.logger.Info(ctx, "evicted idle resources",
			observe.F("pool", p.name), observe.F("evicted", len(victims)))
	}
}
