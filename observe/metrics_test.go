package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

// TestPoolInstrumentsCreation verifies all instruments build on a meter.
func TestPoolInstrumentsCreation(t *testing.T) {
	ins, err := NewPoolInstruments(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewPoolInstruments: %v", err)
	}
	if ins == nil {
		t.Fatal("nil instruments")
	}

	ctx := context.Background()
	ins.RecordAcquire(ctx, "claude", 5*time.Millisecond, nil)
	ins.RecordAcquire(ctx, "claude", 0, errors.New("timeout"))
	ins.RecordCreated(ctx, "claude")
	ins.RecordDestroyed(ctx, "claude")
}

// TestPoolInstrumentsNilReceiver verifies a nil receiver records nothing and
// does not panic.
func TestPoolInstrumentsNilReceiver(t *testing.T) {
	var ins *PoolInstruments
	ctx := context.Background()
	ins.RecordAcquire(ctx, "claude", time.Millisecond, nil)
	ins.RecordCreated(ctx, "claude")
	ins.RecordDestroyed(ctx, "claude")
}

// TestBulkheadInstrumentsCreation verifies all instruments build on a meter.
func TestBulkheadInstrumentsCreation(t *testing.T) {
	ins, err := NewBulkheadInstruments(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewBulkheadInstruments: %v", err)
	}

	ctx := context.Background()
	ins.TaskQueued(ctx, "search")
	ins.TaskDequeued(ctx, "search")
	ins.TaskStarted(ctx, "search")
	ins.TaskFinished(ctx, "search")
	ins.TaskRejected(ctx, "search", "full")
	ins.TaskRejected(ctx, "search", "timeout")
}

// TestBulkheadInstrumentsNilReceiver verifies a nil receiver is a no-op.
func TestBulkheadInstrumentsNilReceiver(t *testing.T) {
	var ins *BulkheadInstruments
	ctx := context.Background()
	ins.TaskQueued(ctx, "search")
	ins.TaskDequeued(ctx, "search")
	ins.TaskStarted(ctx, "search")
	ins.TaskFinished(ctx, "search")
	ins.TaskRejected(ctx, "search", "full")
}
