package aipool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/bulwark/observe"
	"github.com/jonwraymond/bulwark/pool"
	"github.com/jonwraymond/bulwark/resilience"
)

// Config configures a ClientPool.
type Config struct {
	// Providers lists the providers to build pools for.
	// Default: claude, openai, deepseek
	Providers []string

	// Pool applies to each per-provider pool.
	Pool pool.Config
}

// DefaultConfig returns the standard client pool configuration: one warm
// client per provider, at most five, ten-second acquisition timeout, and
// idle clients evicted after ten minutes.
func DefaultConfig() Config {
	return Config{
		Providers: []string{ProviderClaude, ProviderOpenAI, ProviderDeepSeek},
		Pool: pool.Config{
			MinSize:           1,
			MaxSize:           5,
			AcquireTimeout:    10 * time.Second,
			IdleTimeout:       10 * time.Minute,
			EvictionInterval:  2 * time.Minute,
			CreateRetries:     2,
			ValidateOnAcquire: true,
		},
	}
}

// Lease is an acquired client. The connection ID identifies the lease for
// Release and Discard; callers never see pool internals.
type Lease struct {
	Provider     string
	ConnectionID string
	Client       Client
	Acquired     time.Time
}

type connRef struct {
	provider   string
	resourceID string
}

// ClientPool maintains one resource pool per AI provider, with a circuit
// breaker in front of each so a failing provider is shed quickly instead of
// tying up acquirers.
type ClientPool struct {
	logger      observe.Logger
	instruments *observe.PoolInstruments
	clock       pool.Clock

	mu       sync.Mutex
	pools    map[string]*pool.Pool[Client]
	breakers map[string]*resilience.CircuitBreaker
	conns    map[string]connRef
}

// Option configures a ClientPool.
type Option func(*ClientPool)

// WithLogger sets the client pool's logger.
func WithLogger(l observe.Logger) Option {
	return func(cp *ClientPool) {
		if l != nil {
			cp.logger = l
		}
	}
}

// WithInstruments sets the telemetry instruments shared by the per-provider
// pools.
func WithInstruments(ins *observe.PoolInstruments) Option {
	return func(cp *ClientPool) {
		cp.instruments = ins
	}
}

// WithClock sets the clock used by the per-provider pools. Intended for
// tests.
func WithClock(c pool.Clock) Option {
	return func(cp *ClientPool) {
		if c != nil {
			cp.clock = c
		}
	}
}

// providerFactory adapts a ClientFactory to one provider's pool.
type providerFactory struct {
	provider string
	factory  ClientFactory
}

func (f *providerFactory) Create(ctx context.Context) (Client, error) {
	return f.factory.NewClient(ctx, f.provider)
}

func (f *providerFactory) Validate(ctx context.Context, c Client) bool {
	return c.Ping(ctx) == nil
}

func (f *providerFactory) Destroy(_ context.Context, c Client) error {
	return c.Close()
}

// New creates a client pool with one resource pool and circuit breaker per
// configured provider.
func New(factory ClientFactory, cfg Config, opts ...Option) *ClientPool {
	if len(cfg.Providers) == 0 {
		cfg.Providers = []string{ProviderClaude, ProviderOpenAI, ProviderDeepSeek}
	}

	cp := &ClientPool{
		logger:   observe.NopLogger(),
		clock:    pool.RealClock(),
		pools:    make(map[string]*pool.Pool[Client], len(cfg.Providers)),
		breakers: make(map[string]*resilience.CircuitBreaker, len(cfg.Providers)),
		conns:    make(map[string]connRef),
	}
	for _, opt := range opts {
		opt(cp)
	}

	for _, provider := range cfg.Providers {
		cp.pools[provider] = pool.New(provider, &providerFactory{
			provider: provider,
			factory:  factory,
		}, cfg.Pool,
			pool.WithLogger[Client](cp.logger),
			pool.WithInstruments[Client](cp.instruments),
			pool.WithClock[Client](cp.clock),
		)

		cp.breakers[provider] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: provider,
			// Pool exhaustion is backpressure, not a provider fault.
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, pool.ErrAcquireTimeout)
			},
			OnStateChange: func(name string, from, to resilience.State) {
				cp.logger.Warn(context.Background(), "provider circuit state changed",
					observe.F("provider", name),
					observe.F("from", from.String()),
					observe.F("to", to.String()))
			},
		})
	}
	return cp
}

// AcquireClient leases a client for the provider, going through the
// provider's circuit breaker. The returned lease must be ended with
// ReleaseClient or Discard.
func (cp *ClientPool) AcquireClient(ctx context.Context, provider string) (*Lease, error) {
	p, cb, err := cp.provider(provider)
	if err != nil {
		return nil, err
	}

	var res pool.Resource[Client]
	err = cb.Execute(ctx, func(ctx context.Context) error {
		var aerr error
		res, aerr = p.Acquire(ctx)
		return aerr
	})
	if err != nil {
		return nil, err
	}

	lease := &Lease{
		Provider:     provider,
		ConnectionID: uuid.NewString(),
		Client:       res.Value,
		Acquired:     cp.clock.Now(),
	}

	cp.mu.Lock()
	cp.conns[lease.ConnectionID] = connRef{provider: provider, resourceID: res.ID}
	cp.mu.Unlock()

	return lease, nil
}

// ReleaseClient returns a leased client to its pool.
func (cp *ClientPool) ReleaseClient(connectionID string) error {
	p, ref, err := cp.takeConn(connectionID)
	if err != nil {
		return err
	}
	return p.Release(ref.resourceID)
}

// Discard ends a lease by destroying the client instead of returning it.
// Use it when the client is known broken; the pool replaces it if that
// drops the pool below its minimum size.
func (cp *ClientPool) Discard(ctx context.Context, connectionID string) error {
	p, ref, err := cp.takeConn(connectionID)
	if err != nil {
		return err
	}
	return p.Destroy(ctx, ref.resourceID)
}

func (cp *ClientPool) takeConn(connectionID string) (*pool.Pool[Client], connRef, error) {
	cp.mu.Lock()
	ref, ok := cp.conns[connectionID]
	if ok {
		delete(cp.conns, connectionID)
	}
	cp.mu.Unlock()
	if !ok {
		return nil, connRef{}, fmt.Errorf("%w: %s", ErrUnknownConnection, connectionID)
	}

	cp.mu.Lock()
	p := cp.pools[ref.provider]
	cp.mu.Unlock()
	if p == nil {
		return nil, connRef{}, fmt.Errorf("%w: %s", ErrUnknownProvider, ref.provider)
	}
	return p, ref, nil
}

func (cp *ClientPool) provider(name string) (*pool.Pool[Client], *resilience.CircuitBreaker, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	p, ok := cp.pools[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, cp.breakers[name], nil
}

// Breaker returns the circuit breaker for a provider.
func (cp *ClientPool) Breaker(provider string) (*resilience.CircuitBreaker, bool) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cb, ok := cp.breakers[provider]
	return cb, ok
}

// Providers returns the configured provider names in sorted order.
func (cp *ClientPool) Providers() []string {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	names := make([]string, 0, len(cp.pools))
	for name := range cp.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PoolStats returns statistics for one provider's pool.
func (cp *ClientPool) PoolStats(provider string) (pool.Stats, error) {
	p, _, err := cp.provider(provider)
	if err != nil {
		return pool.Stats{}, err
	}
	return p.Stats(), nil
}

// AllStats returns statistics for every provider pool, keyed by provider.
func (cp *ClientPool) AllStats() map[string]pool.Stats {
	cp.mu.Lock()
	pools := make(map[string]*pool.Pool[Client], len(cp.pools))
	for name, p := range cp.pools {
		pools[name] = p
	}
	cp.mu.Unlock()

	stats := make(map[string]pool.Stats, len(pools))
	for name, p := range pools {
		stats[name] = p.Stats()
	}
	return stats
}

// Outstanding returns the number of active leases.
func (cp *ClientPool) Outstanding() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.conns)
}

// ResizePool changes the size bounds of one provider's pool, growing it
// synchronously to the new minimum.
func (cp *ClientPool) ResizePool(ctx context.Context, provider string, minSize, maxSize int) error {
	p, _, err := cp.provider(provider)
	if err != nil {
		return err
	}
	return p.Resize(ctx, minSize, maxSize)
}

// ClearPools shuts down every provider pool, destroying all clients and
// failing any queued acquirers. Outstanding leases become invalid.
func (cp *ClientPool) ClearPools(ctx context.Context) error {
	cp.mu.Lock()
	pools := make([]*pool.Pool[Client], 0, len(cp.pools))
	for _, p := range cp.pools {
		pools = append(pools, p)
	}
	cp.conns = make(map[string]connRef)
	cp.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range pools {
		g.Go(func() error {
			return p.Clear(ctx)
		})
	}
	return g.Wait()
}
