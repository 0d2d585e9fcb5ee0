package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PoolInstruments records resource pool activity.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording must not panic; a nil *PoolInstruments is a no-op.
type PoolInstruments struct {
	acquisitions metric.Int64Counter
	failures     metric.Int64Counter
	created      metric.Int64Counter
	destroyed    metric.Int64Counter
	size         metric.Int64UpDownCounter
	waitTime     metric.Float64Histogram
}

// NewPoolInstruments creates the pool instrument set on the given meter.
func NewPoolInstruments(meter metric.Meter) (*PoolInstruments, error) {
	acquisitions, err := meter.Int64Counter(
		"pool.acquisitions",
		metric.WithDescription("Total number of successful resource acquisitions"),
		metric.WithUnit("{acquisition}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"pool.acquire.failures",
		metric.WithDescription("Total number of failed resource acquisitions"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	created, err := meter.Int64Counter(
		"pool.resources.created",
		metric.WithDescription("Total number of resources created"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	destroyed, err := meter.Int64Counter(
		"pool.resources.destroyed",
		metric.WithDescription("Total number of resources destroyed"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	size, err := meter.Int64UpDownCounter(
		"pool.size",
		metric.WithDescription("Current number of resources in the pool"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	waitTime, err := meter.Float64Histogram(
		"pool.acquire.wait_ms",
		metric.WithDescription("Time spent waiting to acquire a resource in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &PoolInstruments{
		acquisitions: acquisitions,
		failures:     failures,
		created:      created,
		destroyed:    destroyed,
		size:         size,
		waitTime:     waitTime,
	}, nil
}

// RecordAcquire records the outcome of one acquisition attempt.
func (p *PoolInstruments) RecordAcquire(ctx context.Context, pool string, wait time.Duration, err error) {
	if p == nil {
		return
	}

	opt := metric.WithAttributes(attribute.String("pool.name", pool))
	if err != nil {
		p.failures.Add(ctx, 1, opt)
		return
	}
	p.acquisitions.Add(ctx, 1, opt)
	p.waitTime.Record(ctx, float64(wait.Milliseconds()), opt)
}

// RecordCreated records a resource creation and the size increase.
func (p *PoolInstruments) RecordCreated(ctx context.Context, pool string) {
	if p == nil {
		return
	}

	opt := metric.WithAttributes(attribute.String("pool.name", pool))
	p.created.Add(ctx, 1, opt)
	p.size.Add(ctx, 1, opt)
}

// RecordDestroyed records a resource destruction and the size decrease.
func (p *PoolInstruments) RecordDestroyed(ctx context.Context, pool string) {
	if p == nil {
		return
	}

	opt := metric.WithAttributes(attribute.String("pool.name", pool))
	p.destroyed.Add(ctx, 1, opt)
	p.size.Add(ctx, -1, opt)
}

// BulkheadInstruments records bulkhead admission activity.
//
// A nil *BulkheadInstruments is a no-op, so callers can pass it through
// unconditionally.
type BulkheadInstruments struct {
	active     metric.Int64UpDownCounter
	queued     metric.Int64UpDownCounter
	rejections metric.Int64Counter
}

// NewBulkheadInstruments creates the bulkhead instrument set on the given meter.
func NewBulkheadInstruments(meter metric.Meter) (*BulkheadInstruments, error) {
	active, err := meter.Int64UpDownCounter(
		"bulkhead.active",
		metric.WithDescription("Number of tasks currently executing"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	queued, err := meter.Int64UpDownCounter(
		"bulkhead.queued",
		metric.WithDescription("Number of tasks currently queued"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		"bulkhead.rejections",
		metric.WithDescription("Total number of rejected tasks"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	return &BulkheadInstruments{
		active:     active,
		queued:     queued,
		rejections: rejections,
	}, nil
}

// TaskStarted records a task entering execution.
func (b *BulkheadInstruments) TaskStarted(ctx context.Context, service string) {
	if b == nil {
		return
	}
	b.active.Add(ctx, 1, metric.WithAttributes(attribute.String("bulkhead.service", service)))
}

// TaskFinished records a task leaving execution.
func (b *BulkheadInstruments) TaskFinished(ctx context.Context, service string) {
	if b == nil {
		return
	}
	b.active.Add(ctx, -1, metric.WithAttributes(attribute.String("bulkhead.service", service)))
}

// TaskQueued records a task entering the wait queue.
func (b *BulkheadInstruments) TaskQueued(ctx context.Context, service string) {
	if b == nil {
		return
	}
	b.queued.Add(ctx, 1, metric.WithAttributes(attribute.String("bulkhead.service", service)))
}

// TaskDequeued records a task leaving the wait queue.
func (b *BulkheadInstruments) TaskDequeued(ctx context.Context, service string) {
	if b == nil {
		return
	}
	b.queued.Add(ctx, -1, metric.WithAttributes(attribute.String("bulkhead.service", service)))
}

// TaskRejected records a rejection with its reason (full or timeout).
func (b *BulkheadInstruments) TaskRejected(ctx context.Context, service, reason string) {
	if b == nil {
		return
	}
	b.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bulkhead.service", service),
		attribute.String("bulkhead.reject_reason", reason),
	))
}
