package admission

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/bulwark/observe"
	"github.com/jonwraymond/bulwark/resilience"
)

// Manager owns a bulkhead per logical service and a table of global
// semaphores for shared resource classes. Admitting a task through Execute
// first claims the task's resource classes, then runs it under the service's
// bulkhead, so both per-service concurrency and machine-wide pressure are
// bounded.
type Manager struct {
	opts        Options
	logger      observe.Logger
	instruments *observe.BulkheadInstruments

	mu         sync.Mutex
	bulkheads  map[string]*resilience.Bulkhead
	semaphores map[string]*resilience.Semaphore
	limiters   map[string]*resilience.RateLimiter
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger observe.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithInstruments sets the telemetry instruments shared by all bulkheads the
// manager creates.
func WithInstruments(ins *observe.BulkheadInstruments) ManagerOption {
	return func(m *Manager) {
		m.instruments = ins
	}
}

// NewManager creates a manager with the given options.
func NewManager(opts Options, mopts ...ManagerOption) *Manager {
	m := &Manager{
		opts:      opts.withDefaults(),
		logger:    observe.NopLogger(),
		bulkheads: make(map[string]*resilience.Bulkhead),
	}
	for _, opt := range mopts {
		opt(m)
	}

	m.semaphores = make(map[string]*resilience.Semaphore, len(m.opts.Semaphores))
	for name, permits := range m.opts.Semaphores {
		m.semaphores[name] = resilience.NewSemaphore(name, permits)
	}

	m.limiters = make(map[string]*resilience.RateLimiter, len(m.opts.RateLimits))
	for service, cfg := range m.opts.RateLimits {
		m.limiters[service] = resilience.NewRateLimiter(cfg)
	}
	return m
}

// Bulkhead returns the bulkhead for the named service, creating it on first
// use from the manager defaults merged with any per-service override.
func (m *Manager) Bulkhead(service string) *resilience.Bulkhead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bulkheadLocked(service)
}

func (m *Manager) bulkheadLocked(service string) *resilience.Bulkhead {
	if b, ok := m.bulkheads[service]; ok {
		return b
	}

	cfg := m.opts.Defaults
	cfg.Name = service
	if sc, ok := m.opts.Services[service]; ok {
		cfg = cfg.Merge(sc.patch())
	}

	b := resilience.NewBulkhead(cfg, resilience.WithBulkheadInstruments(m.instruments))
	m.bulkheads[service] = b
	return b
}

// Semaphore returns the global semaphore for a resource class.
func (m *Manager) Semaphore(name string) (*resilience.Semaphore, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.semaphores[name]
	return s, ok
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	semaphores []string
	timeout    time.Duration
}

// WithSemaphores declares the shared resource classes the task consumes.
// The manager acquires them before running the task and releases them after.
// Acquisition follows sorted name order, not declaration order, so tasks
// claiming overlapping sets cannot deadlock.
func WithSemaphores(names ...string) ExecOption {
	return func(o *execOptions) {
		o.semaphores = append(o.semaphores, names...)
	}
}

// WithTimeout bounds the task's total execution time.
func WithTimeout(d time.Duration) ExecOption {
	return func(o *execOptions) {
		o.timeout = d
	}
}

// Execute admits and runs a task for the named service. A configured
// per-service rate limit is applied first, then the declared resource
// classes are acquired in sorted name order, regardless of how they were
// declared, and released in reverse order on every path, success or
// failure.
//
// When the enableBulkhead flag is off, the task runs directly and no
// counters move.
func (m *Manager) Execute(ctx context.Context, service string, task func(context.Context) error, opts ...ExecOption) error {
	var eo execOptions
	for _, opt := range opts {
		opt(&eo)
	}

	run := task
	if eo.timeout > 0 {
		run = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, eo.timeout)
			defer cancel()
			return task(ctx)
		}
	}

	if !m.opts.Flags.Enabled(FlagEnableBulkhead) {
		return run(ctx)
	}

	if rl, ok := m.limiters[service]; ok {
		return rl.Execute(ctx, func(ctx context.Context) error {
			return m.admit(ctx, service, run, eo.semaphores)
		})
	}
	return m.admit(ctx, service, run, eo.semaphores)
}

// admit claims the task's resource classes, then runs it under the service
// bulkhead.
func (m *Manager) admit(ctx context.Context, service string, run func(context.Context) error, semaphores []string) error {
	release, err := m.acquireSemaphores(ctx, service, semaphores)
	if err != nil {
		return err
	}
	defer release()

	return m.Bulkhead(service).Execute(ctx, run)
}

// acquireSemaphores claims the named resource classes in sorted order so two
// tasks claiming overlapping sets cannot deadlock. The returned function
// releases them in reverse order.
func (m *Manager) acquireSemaphores(ctx context.Context, service string, names []string) (func(), error) {
	if len(names) == 0 {
		return func() {}, nil
	}

	ordered := make([]string, len(names))
	copy(ordered, names)
	sort.Strings(ordered)

	acquired := make([]*resilience.Semaphore, 0, len(ordered))
	releaseAll := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Release()
		}
	}

	for _, name := range ordered {
		sem, ok := m.Semaphore(name)
		if !ok {
			releaseAll()
			return nil, &UnknownResourceError{Resource: name}
		}
		if err := sem.Acquire(ctx, m.opts.SemaphoreTimeout); err != nil {
			releaseAll()
			m.logger.Warn(ctx, "resource acquisition failed",
				observe.F("service", service),
				observe.F("resource", name),
				observe.F("error", err.Error()))
			return nil, err
		}
		acquired = append(acquired, sem)
	}
	return releaseAll, nil
}

// ExecuteCPUIntensive runs a task that holds the CPU resource class.
func (m *Manager) ExecuteCPUIntensive(ctx context.Context, service string, task func(context.Context) error) error {
	return m.Execute(ctx, service, task, WithSemaphores(ResourceCPU))
}

// ExecuteMemoryIntensive runs a task that holds the memory resource class.
func (m *Manager) ExecuteMemoryIntensive(ctx context.Context, service string, task func(context.Context) error) error {
	return m.Execute(ctx, service, task, WithSemaphores(ResourceMemory))
}

// ExecuteAITask runs a task that counts against the global AI request cap.
func (m *Manager) ExecuteAITask(ctx context.Context, service string, task func(context.Context) error) error {
	return m.Execute(ctx, service, task, WithSemaphores(ResourceAITotal))
}

// Do runs a task that returns a value through the manager.
func Do[T any](ctx context.Context, m *Manager, service string, task func(context.Context) (T, error), opts ...ExecOption) (T, error) {
	var out T
	err := m.Execute(ctx, service, func(ctx context.Context) error {
		v, err := task(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts...)
	return out, err
}

// UpdateConfig replaces the named service's bulkhead with one built from the
// new override. The old bulkhead is swapped out immediately so new work uses
// the new limits, then drained in the background.
func (m *Manager) UpdateConfig(service string, sc ServiceConfig) {
	cfg := m.opts.Defaults
	cfg.Name = service
	cfg = cfg.Merge(sc.patch())

	m.mu.Lock()
	if m.opts.Services == nil {
		m.opts.Services = make(map[string]ServiceConfig)
	}
	m.opts.Services[service] = sc

	old := m.bulkheads[service]
	m.bulkheads[service] = resilience.NewBulkhead(cfg, resilience.WithBulkheadInstruments(m.instruments))
	m.mu.Unlock()

	if old == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), drainGrace)
		defer cancel()
		if err := old.Drain(ctx); err != nil {
			m.logger.Warn(ctx, "retired bulkhead did not drain",
				observe.F("service", service),
				observe.F("error", err.Error()))
		}
	}()
}

// drainGrace bounds how long a retired bulkhead may take to finish its
// in-flight work after a config swap.
const drainGrace = 30 * time.Second

// DrainAll stops intake on every bulkhead and waits for in-flight work, or
// for ctx to expire.
func (m *Manager) DrainAll(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*resilience.Bulkhead, 0, len(m.bulkheads))
	for _, b := range m.bulkheads {
		all = append(all, b)
	}
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, b := range all {
		g.Go(func() error {
			return b.Drain(ctx)
		})
	}
	return g.Wait()
}

// ResetAll clears the queue and counters of every bulkhead.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	all := make([]*resilience.Bulkhead, 0, len(m.bulkheads))
	for _, b := range m.bulkheads {
		all = append(all, b)
	}
	m.mu.Unlock()

	for _, b := range all {
		b.Reset()
	}
}

// SemaphoreStats is a snapshot of one global semaphore.
type SemaphoreStats struct {
	Name      string
	Available int
	Waiting   int
	Capacity  int
}

// AllStats returns a snapshot of every bulkhead and semaphore the manager
// owns.
func (m *Manager) AllStats() ([]resilience.BulkheadStats, []SemaphoreStats) {
	m.mu.Lock()
	bulkheads := make([]*resilience.Bulkhead, 0, len(m.bulkheads))
	for _, b := range m.bulkheads {
		bulkheads = append(bulkheads, b)
	}
	sems := make([]*resilience.Semaphore, 0, len(m.semaphores))
	for _, s := range m.semaphores {
		sems = append(sems, s)
	}
	m.mu.Unlock()

	bstats := make([]resilience.BulkheadStats, 0, len(bulkheads))
	for _, b := range bulkheads {
		bstats = append(bstats, b.Stats())
	}
	sort.Slice(bstats, func(i, j int) bool { return bstats[i].Name < bstats[j].Name })

	sstats := make([]SemaphoreStats, 0, len(sems))
	for _, s := range sems {
		sstats = append(sstats, SemaphoreStats{
			Name:      s.Name(),
			Available: s.Available(),
			Waiting:   s.Waiting(),
			Capacity:  s.Capacity(),
		})
	}
	sort.Slice(sstats, func(i, j int) bool { return sstats[i].Name < sstats[j].Name })

	return bstats, sstats
}

// HealthSummary describes the manager's saturation state.
type HealthSummary struct {
	Healthy            bool
	SaturatedServices  []string
	ExhaustedResources []string
}

// Health reports which services are saturated (full concurrency with a
// backlog) and which resource classes have no free permits while callers
// wait.
func (m *Manager) Health() HealthSummary {
	m.mu.Lock()
	bulkheads := make([]*resilience.Bulkhead, 0, len(m.bulkheads))
	for _, b := range m.bulkheads {
		bulkheads = append(bulkheads, b)
	}
	sems := make([]*resilience.Semaphore, 0, len(m.semaphores))
	for _, s := range m.semaphores {
		sems = append(sems, s)
	}
	m.mu.Unlock()

	summary := HealthSummary{Healthy: true}
	for _, b := range bulkheads {
		if b.Saturated() {
			summary.SaturatedServices = append(summary.SaturatedServices, b.Name())
		}
	}
	for _, s := range sems {
		if s.Available() == 0 && s.Waiting() > 0 {
			summary.ExhaustedResources = append(summary.ExhaustedResources, s.Name())
		}
	}
	sort.Strings(summary.SaturatedServices)
	sort.Strings(summary.ExhaustedResources)
	summary.Healthy = len(summary.SaturatedServices) == 0 && len(summary.ExhaustedResources) == 0
	return summary
}
