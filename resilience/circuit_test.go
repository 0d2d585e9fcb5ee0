package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFail = errors.New("backend down")

func failOp(ctx context.Context) error    { return errFail }
func successOp(ctx context.Context) error { return nil }

func tripBreaker(t *testing.T, cb *CircuitBreaker, failures int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < failures; i++ {
		if err := cb.Execute(ctx, failOp); !errors.Is(err, errFail) {
			t.Fatalf("failure %d: %v", i, err)
		}
	}
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "claude", FailureThreshold: 3})

	tripBreaker(t, cb, 2)
	if cb.State() != StateClosed {
		t.Fatalf("state = %v below threshold, want closed", cb.State())
	}

	tripBreaker(t, cb, 1)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v at threshold, want open", cb.State())
	}

	err := cb.Execute(context.Background(), successOp)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute on open circuit = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "claude", FailureThreshold: 3})
	ctx := context.Background()

	tripBreaker(t, cb, 2)
	if err := cb.Execute(ctx, successOp); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	tripBreaker(t, cb, 2)
	if cb.State() != StateClosed {
		t.Fatal("non-consecutive failures opened the circuit")
	}
}

func TestCircuitHalfOpenRequiresConsecutiveSuccesses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
	})
	ctx := context.Background()

	tripBreaker(t, cb, 1)
	time.Sleep(30 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v after reset timeout, want half-open", cb.State())
	}

	// One success is not enough to close.
	if err := cb.Execute(ctx, successOp); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v after one probe success, want half-open", cb.State())
	}

	if err := cb.Execute(ctx, successOp); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v after two probe successes, want closed", cb.State())
	}
}

func TestCircuitHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
	})
	ctx := context.Background()

	tripBreaker(t, cb, 1)
	time.Sleep(30 * time.Millisecond)

	if err := cb.Execute(ctx, failOp); !errors.Is(err, errFail) {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v after failed probe, want open", cb.State())
	}
	if err := cb.Execute(ctx, successOp); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitSingleProbeInHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		ResetTimeout:     20 * time.Millisecond,
	})
	ctx := context.Background()

	tripBreaker(t, cb, 1)
	time.Sleep(30 * time.Millisecond)

	probeRunning := make(chan struct{})
	probeRelease := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- cb.Execute(ctx, func(ctx context.Context) error {
			close(probeRunning)
			<-probeRelease
			return nil
		})
	}()
	<-probeRunning

	// A second caller during the probe is rejected.
	if err := cb.Execute(ctx, successOp); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("concurrent probe Execute = %v, want ErrCircuitOpen", err)
	}

	close(probeRelease)
	if err := <-probeDone; err != nil {
		t.Fatalf("probe: %v", err)
	}
}

func TestCircuitReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "claude", FailureThreshold: 1})

	tripBreaker(t, cb, 1)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v after Reset, want closed", cb.State())
	}
	if err := cb.Execute(context.Background(), successOp); err != nil {
		t.Fatalf("Execute after Reset: %v", err)
	}
}

func TestCircuitCustomFailureClassifier(t *testing.T) {
	benign := errors.New("not found")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, benign)
		},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := cb.Execute(ctx, func(ctx context.Context) error { return benign }); !errors.Is(err, benign) {
			t.Fatalf("Execute: %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatal("benign errors opened the circuit")
	}
}

func TestCircuitStateChangeCallback(t *testing.T) {
	type change struct{ from, to State }
	changes := make(chan change, 10)

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			if name != "claude" {
				t.Errorf("callback name = %q", name)
			}
			changes <- change{from, to}
		},
	})

	tripBreaker(t, cb, 1)
	if got := <-changes; got.from != StateClosed || got.to != StateOpen {
		t.Fatalf("first change %v -> %v, want closed -> open", got.from, got.to)
	}

	time.Sleep(30 * time.Millisecond)
	cb.State()
	if got := <-changes; got.from != StateOpen || got.to != StateHalfOpen {
		t.Fatalf("second change %v -> %v, want open -> half-open", got.from, got.to)
	}
}

func TestCircuitMetrics(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "claude", FailureThreshold: 3})

	tripBreaker(t, cb, 2)
	m := cb.Metrics()
	if m.Name != "claude" || m.State != StateClosed || m.Failures != 2 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.LastFailure.IsZero() {
		t.Fatal("LastFailure not stamped")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
