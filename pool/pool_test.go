package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeConn struct {
	id int32
}

// testFactory is a Factory[*fakeConn] with controllable failure modes.
type testFactory struct {
	created   atomic.Int32
	destroyed atomic.Int32

	failCreates atomic.Int32 // remaining creates that fail
	failChecks  atomic.Int32 // remaining validations that fail
	createDelay time.Duration
}

func (f *testFactory) Create(ctx context.Context) (*fakeConn, error) {
	if f.createDelay > 0 {
		select {
		case <-time.After(f.createDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failCreates.Add(-1) >= 0 {
		return nil, errors.New("connection refused")
	}
	return &fakeConn{id: f.created.Add(1)}, nil
}

func (f *testFactory) Validate(ctx context.Context, c *fakeConn) bool {
	return f.failChecks.Add(-1) < 0
}

func (f *testFactory) Destroy(ctx context.Context, c *fakeConn) error {
	f.destroyed.Add(1)
	return nil
}

// fakeClock controls Now while delegating timers to the real clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTimer(d time.Duration) Timer   { return RealClock().NewTimer(d) }
func (c *fakeClock) NewTicker(d time.Duration) Ticker { return RealClock().NewTicker(d) }

func newTestPool(t *testing.T, factory *testFactory, cfg Config, opts ...Option[*fakeConn]) *Pool[*fakeConn] {
	t.Helper()
	p := New("test", factory, cfg, opts...)
	t.Cleanup(func() {
		_ = p.Clear(context.Background())
	})
	return p
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func checkInvariant(t *testing.T, s Stats) {
	t.Helper()
	if s.Size != s.Available+s.InUse {
		t.Fatalf("size invariant broken: size=%d available=%d inUse=%d", s.Size, s.Available, s.InUse)
	}
}

func TestWarmUpToMinSize(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MinSize: 2, MaxSize: 5})

	s := p.Stats()
	checkInvariant(t, s)
	if s.Size != 2 || s.Available != 2 || s.InUse != 0 {
		t.Fatalf("unexpected stats after warm-up: %+v", s)
	}
	if s.TotalCreated != 2 {
		t.Fatalf("TotalCreated = %d, want 2", s.TotalCreated)
	}
}

func TestAcquireReleaseCycle(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MaxSize: 3})
	ctx := context.Background()

	res, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !res.InUse {
		t.Fatal("acquired resource not marked in use")
	}
	if res.Provider != "test" {
		t.Fatalf("Provider = %q, want %q", res.Provider, "test")
	}
	if res.UsageCount != 1 {
		t.Fatalf("UsageCount = %d, want 1", res.UsageCount)
	}

	s := p.Stats()
	checkInvariant(t, s)
	if s.InUse != 1 || s.Available != 0 {
		t.Fatalf("unexpected stats while held: %+v", s)
	}

	if err := p.Release(res.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	s = p.Stats()
	checkInvariant(t, s)
	if s.InUse != 0 || s.Available != 1 {
		t.Fatalf("unexpected stats after release: %+v", s)
	}
	if s.TotalAcquisitions != 1 || s.TotalReleases != 1 {
		t.Fatalf("counters: %+v", s)
	}

	// Re-acquire reuses the idle resource instead of creating.
	res2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if res2.ID != res.ID {
		t.Fatal("expected idle resource to be reused")
	}
	if res2.UsageCount != 2 {
		t.Fatalf("UsageCount = %d, want 2", res2.UsageCount)
	}
	if got := p.Stats().TotalCreated; got != 1 {
		t.Fatalf("TotalCreated = %d, want 1", got)
	}
}

func TestReleaseErrors(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MaxSize: 2})

	if err := p.Release("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Release(unknown) = %v, want ErrNotFound", err)
	}

	res, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Release(res.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// Double release is a no-op.
	if err := p.Release(res.ID); err != nil {
		t.Fatalf("double Release = %v, want nil", err)
	}
	if got := p.Stats().TotalReleases; got != 1 {
		t.Fatalf("TotalReleases = %d, want 1", got)
	}
}

func TestAcquireTimeoutAtCapacity(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MaxSize: 1, AcquireTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	res, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	start := time.Now()
	_, err = p.Acquire(ctx)
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("Acquire at capacity = %v, want ErrAcquireTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > time.Second {
		t.Fatalf("timeout took %v, want ~50ms", elapsed)
	}
	if p.Waiting() != 0 {
		t.Fatalf("Waiting = %d after timeout, want 0", p.Waiting())
	}

	// Holder is unaffected and the pool state is clean.
	s := p.Stats()
	checkInvariant(t, s)
	if s.InUse != 1 {
		t.Fatalf("InUse = %d, want 1", s.InUse)
	}
	if err := p.Release(res.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MaxSize: 1, AcquireTimeout: 5 * time.Second})

	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errCh <- err
	}()

	waitUntil(t, func() bool { return p.Waiting() == 1 }, "waiter never queued")
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire = %v, want context.Canceled", err)
	}
	waitUntil(t, func() bool { return p.Waiting() == 0 }, "waiter not removed after cancel")
}

func TestWaiterHandOffFIFO(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MaxSize: 1, AcquireTimeout: 5 * time.Second})
	ctx := context.Background()

	res, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Queue three waiters one at a time so their order is known.
	const waiters = 3
	order := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := p.Acquire(ctx)
			if err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			order <- i
			_ = p.Release(r.ID)
		}()
		waitUntil(t, func() bool { return p.Waiting() == i+1 }, "waiter never queued")
	}

	if err := p.Release(res.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	wg.Wait()
	close(order)

	var got []int
	for i := range order {
		got = append(got, i)
	}
	for i, idx := range got {
		if idx != i {
			t.Fatalf("grant order %v, want FIFO", got)
		}
	}
}

func TestValidateOnAcquireReplacesBadResource(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MinSize: 1, MaxSize: 3, ValidateOnAcquire: true})

	f.failChecks.Store(1)
	res, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Value == nil {
		t.Fatal("nil resource value")
	}

	if got := f.destroyed.Load(); got != 1 {
		t.Fatalf("destroyed = %d, want 1 (bad resource)", got)
	}
	s := p.Stats()
	checkInvariant(t, s)
	if s.TotalDestroyed != 1 {
		t.Fatalf("TotalDestroyed = %d, want 1", s.TotalDestroyed)
	}
}

// gateFactory blocks inside Validate until the test supplies a verdict.
type gateFactory struct {
	testFactory
	inCheck chan struct{}
	verdict chan bool
}

func (f *gateFactory) Validate(ctx context.Context, c *fakeConn) bool {
	f.inCheck <- struct{}{}
	return <-f.verdict
}

func TestReleaseHandOffKeepsResourceReserved(t *testing.T) {
	f := &gateFactory{
		inCheck: make(chan struct{}, 1),
		verdict: make(chan bool),
	}
	p := New[*fakeConn]("test", f, Config{MaxSize: 1, AcquireTimeout: 2 * time.Second, ValidateOnAcquire: true})
	t.Cleanup(func() { _ = p.Clear(context.Background()) })
	ctx := context.Background()

	res, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	waiterID := make(chan string, 1)
	waiterErr := make(chan error, 1)
	go func() {
		r, err := p.Acquire(ctx)
		if err != nil {
			waiterErr <- err
			return
		}
		waiterID <- r.ID
		waiterErr <- nil
	}()
	waitUntil(t, func() bool { return p.Waiting() == 1 }, "waiter never queued")

	relDone := make(chan error, 1)
	go func() { relDone <- p.Release(res.ID) }()
	<-f.inCheck // Release is inside the hand-off validation

	// The resource is mid hand-off: a newcomer must not get it ahead of the
	// queued waiter.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if r, err := p.Acquire(short); err == nil {
		t.Fatalf("newcomer acquired %s during a hand-off", r.ID)
	}

	// Validation fails: the resource is destroyed while still reserved, and
	// self-healing hands the waiter a fresh one.
	f.verdict <- false
	if err := <-relDone; err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := <-waiterErr; err != nil {
		t.Fatalf("waiter Acquire: %v", err)
	}
	if id := <-waiterID; id == res.ID {
		t.Fatal("waiter received the destroyed resource")
	}
	if got := f.destroyed.Load(); got != 1 {
		t.Fatalf("destroyed = %d, want 1", got)
	}
	checkInvariant(t, p.Stats())
}

func TestCreateRetriesThenSuccess(t *testing.T) {
	f := &testFactory{}
	f.failCreates.Store(2)
	p := newTestPool(t, f, Config{MaxSize: 2, CreateRetries: 2})

	res, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire = %v, want success after retries", err)
	}
	if res.Value == nil {
		t.Fatal("nil resource value")
	}
}

func TestCreateFailsAfterRetries(t *testing.T) {
	f := &testFactory{}
	f.failCreates.Store(10)
	p := newTestPool(t, f, Config{MaxSize: 2, CreateRetries: 2})

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("Acquire = %v, want ErrCreateFailed", err)
	}
	var ce *CreateError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T, want *CreateError", err)
	}
	if ce.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3 (1 + 2 retries)", ce.Attempts)
	}

	s := p.Stats()
	checkInvariant(t, s)
	if s.Size != 0 {
		t.Fatalf("Size = %d after failed create, want 0", s.Size)
	}
}

func TestMinOneMaxTwoConcurrent(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MinSize: 1, MaxSize: 2, AcquireTimeout: 2 * time.Second})
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	b, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("two holders share one resource")
	}

	s := p.Stats()
	checkInvariant(t, s)
	if s.Size != 2 || s.InUse != 2 || s.PeakSize != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}

	// Third caller waits until one is released.
	errCh := make(chan error, 1)
	var third Resource[*fakeConn]
	go func() {
		var err error
		third, err = p.Acquire(ctx)
		errCh <- err
	}()
	waitUntil(t, func() bool { return p.Waiting() == 1 }, "third caller never queued")

	if err := p.Release(a.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("queued Acquire: %v", err)
	}
	if third.ID != a.ID {
		t.Fatal("waiter did not receive the released resource")
	}
	if got := p.Stats().TotalCreated; got != 2 {
		t.Fatalf("TotalCreated = %d, want 2 (never exceeds max)", got)
	}
}

func TestDestroySelfHealsToMin(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MinSize: 1, MaxSize: 3})

	res, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Destroy(context.Background(), res.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	waitUntil(t, func() bool {
		s := p.Stats()
		return s.Size == 1 && s.Available == 1
	}, "pool did not heal back to MinSize")

	if got := f.destroyed.Load(); got != 1 {
		t.Fatalf("destroyed = %d, want 1", got)
	}
}

func TestClearRejectsWaitersAndCloses(t *testing.T) {
	f := &testFactory{}
	p := New("test", f, Config{MaxSize: 1, AcquireTimeout: 5 * time.Second})
	ctx := context.Background()

	if _, err := p.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errCh <- err
	}()
	waitUntil(t, func() bool { return p.Waiting() == 1 }, "waiter never queued")

	if err := p.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("queued Acquire after Clear = %v, want ErrPoolClosed", err)
	}

	if _, err := p.Acquire(ctx); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Acquire after Clear = %v, want ErrPoolClosed", err)
	}
	if err := p.Clear(ctx); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("second Clear = %v, want ErrPoolClosed", err)
	}
	if !p.Closed() {
		t.Fatal("Closed() = false after Clear")
	}
	if got := f.destroyed.Load(); got != 1 {
		t.Fatalf("destroyed = %d, want 1", got)
	}
}

func TestResizeGrowsToNewFloor(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MinSize: 2, MaxSize: 4})
	ctx := context.Background()

	if err := p.Resize(ctx, 5, 10); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	s := p.Stats()
	checkInvariant(t, s)
	if s.Size != 5 {
		t.Fatalf("Size = %d after resize, want 5", s.Size)
	}
	if s.TotalCreated != 5 {
		t.Fatalf("TotalCreated = %d, want 5 (exactly 3 new)", s.TotalCreated)
	}

	cfg := p.Config()
	if cfg.MinSize != 5 || cfg.MaxSize != 10 {
		t.Fatalf("config not updated: %+v", cfg)
	}
}

func TestResizeRejectsInvalidBounds(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MaxSize: 2})
	ctx := context.Background()

	for _, tc := range []struct{ min, max int }{
		{-1, 5},
		{0, 0},
		{5, 2},
	} {
		if err := p.Resize(ctx, tc.min, tc.max); !errors.Is(err, ErrInvalidSize) {
			t.Fatalf("Resize(%d, %d) = %v, want ErrInvalidSize", tc.min, tc.max, err)
		}
	}
}

func TestEvictIdleRespectsFloor(t *testing.T) {
	f := &testFactory{}
	clk := newFakeClock()
	p := newTestPool(t, f, Config{
		MinSize:     2,
		MaxSize:     5,
		IdleTimeout: time.Minute,
	}, WithClock[*fakeConn](clk))
	ctx := context.Background()

	// Grow to 5, then idle everything.
	held := make([]Resource[*fakeConn], 0, 5)
	for i := 0; i < 5; i++ {
		res, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		held = append(held, res)
	}
	for _, res := range held {
		if err := p.Release(res.ID); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}

	// Not idle long enough: nothing goes.
	clk.Advance(30 * time.Second)
	p.evictIdle()
	if got := p.Stats().Size; got != 5 {
		t.Fatalf("Size = %d after early scan, want 5", got)
	}

	// Past the idle timeout: evict down to the floor, no further.
	clk.Advance(2 * time.Minute)
	p.evictIdle()
	s := p.Stats()
	checkInvariant(t, s)
	if s.Size != 2 {
		t.Fatalf("Size = %d after eviction, want MinSize 2", s.Size)
	}
	if got := f.destroyed.Load(); got != 3 {
		t.Fatalf("destroyed = %d, want 3", got)
	}
}

func TestEvictSkipsInUse(t *testing.T) {
	f := &testFactory{}
	clk := newFakeClock()
	p := newTestPool(t, f, Config{
		MinSize:     0,
		MaxSize:     2,
		IdleTimeout: time.Minute,
	}, WithClock[*fakeConn](clk))
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	idle, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Release(idle.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}

	clk.Advance(5 * time.Minute)
	p.evictIdle()

	s := p.Stats()
	checkInvariant(t, s)
	if s.Size != 1 || s.InUse != 1 {
		t.Fatalf("unexpected stats after eviction: %+v", s)
	}
	if err := p.Release(held.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MinSize: 2, MaxSize: 5, AcquireTimeout: 5 * time.Second})
	ctx := context.Background()

	const goroutines = 20
	const iterations = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				res, err := p.Acquire(ctx)
				if err != nil {
					t.Errorf("Acquire: %v", err)
					return
				}
				if err := p.Release(res.ID); err != nil {
					t.Errorf("Release: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	s := p.Stats()
	checkInvariant(t, s)
	if s.InUse != 0 {
		t.Fatalf("InUse = %d after all work done, want 0", s.InUse)
	}
	if s.Size > 5 {
		t.Fatalf("Size = %d, exceeded MaxSize 5", s.Size)
	}
	if s.TotalAcquisitions != goroutines*iterations {
		t.Fatalf("TotalAcquisitions = %d, want %d", s.TotalAcquisitions, goroutines*iterations)
	}
	if s.TotalAcquisitions != s.TotalReleases {
		t.Fatalf("acquisitions %d != releases %d", s.TotalAcquisitions, s.TotalReleases)
	}
}

func TestStatsCountsPendingAsInUse(t *testing.T) {
	f := &testFactory{createDelay: 50 * time.Millisecond}
	p := newTestPool(t, f, Config{MaxSize: 2})

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("Acquire: %v", err)
			return
		}
		_ = p.Release(res.ID)
	}()

	waitUntil(t, func() bool {
		s := p.Stats()
		return s.Size == 1 && s.InUse == 1 && s.Available == 0
	}, "pending create not counted as in use")
	<-done
}

func TestAverageWaitTimeUpdates(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MaxSize: 1, AcquireTimeout: 5 * time.Second})
	ctx := context.Background()

	res, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		r, err := p.Acquire(ctx)
		if err == nil {
			_ = p.Release(r.ID)
		}
		errCh <- err
	}()
	waitUntil(t, func() bool { return p.Waiting() == 1 }, "waiter never queued")

	time.Sleep(20 * time.Millisecond)
	if err := p.Release(res.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("queued Acquire: %v", err)
	}

	s := p.Stats()
	if s.AverageWaitTime <= 0 {
		t.Fatalf("AverageWaitTime = %v, want > 0 after a queued acquisition", s.AverageWaitTime)
	}
}

func TestPoolNameAndConfigDefaults(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{})

	if p.Name() != "test" {
		t.Fatalf("Name = %q", p.Name())
	}
	cfg := p.Config()
	if cfg.MaxSize != 10 {
		t.Fatalf("default MaxSize = %d, want 10", cfg.MaxSize)
	}
	if cfg.AcquireTimeout != 30*time.Second {
		t.Fatalf("default AcquireTimeout = %v, want 30s", cfg.AcquireTimeout)
	}
	if cfg.IdleTimeout != 10*time.Minute {
		t.Fatalf("default IdleTimeout = %v, want 10m", cfg.IdleTimeout)
	}
}

func TestMinSizeClampedToMax(t *testing.T) {
	f := &testFactory{}
	p := newTestPool(t, f, Config{MinSize: 8, MaxSize: 3})

	cfg := p.Config()
	if cfg.MinSize != 3 {
		t.Fatalf("MinSize = %d, want clamped to 3", cfg.MinSize)
	}
	if got := p.Stats().Size; got != 3 {
		t.Fatalf("Size = %d after warm-up, want 3", got)
	}
}

func TestWarmUpFailureIsNotFatal(t *testing.T) {
	f := &testFactory{}
	f.failCreates.Store(100)
	p := newTestPool(t, f, Config{MinSize: 2, MaxSize: 4, CreateRetries: 0})

	// Pool is usable once the factory recovers.
	f.failCreates.Store(0)
	res, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after factory recovery: %v", err)
	}
	if err := p.Release(res.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestCreateErrorMessage(t *testing.T) {
	err := &CreateError{Attempts: 3, Err: errors.New("boom")}
	want := fmt.Sprintf("pool: create failed after %d attempts: boom", 3)
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatal("CreateError does not match ErrCreateFailed")
	}
}
