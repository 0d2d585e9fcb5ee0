package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/bulwark/admission"
	"github.com/jonwraymond/bulwark/pool"
	"github.com/jonwraymond/bulwark/resilience"
)

// PoolStatsSource is the slice of a resource pool the checker needs.
// pool.Pool satisfies it for any resource type.
type PoolStatsSource interface {
	Name() string
	Stats() pool.Stats
	Waiting() int
	Closed() bool
}

// PoolChecker reports a pool as degraded when it is exhausted with callers
// waiting, and unhealthy once it has been closed.
type PoolChecker struct {
	Pool PoolStatsSource
}

func (c PoolChecker) Name() string { return "pool/" + c.Pool.Name() }

func (c PoolChecker) Check(ctx context.Context) Result {
	now := time.Now()
	if c.Pool.Closed() {
		return Result{
			Component: c.Name(),
			Status:    StatusUnhealthy,
			Detail:    "pool is closed",
			CheckedAt: now,
		}
	}

	stats := c.Pool.Stats()
	if stats.Available == 0 && c.Pool.Waiting() > 0 {
		return Result{
			Component: c.Name(),
			Status:    StatusDegraded,
			Detail:    fmt.Sprintf("exhausted: %d in use, %d waiting", stats.InUse, c.Pool.Waiting()),
			CheckedAt: now,
		}
	}
	return Result{
		Component: c.Name(),
		Status:    StatusHealthy,
		Detail:    fmt.Sprintf("%d/%d available", stats.Available, stats.Size),
		CheckedAt: now,
	}
}

// BulkheadChecker reports a bulkhead as degraded when it is saturated.
type BulkheadChecker struct {
	Bulkhead *resilience.Bulkhead
}

func (c BulkheadChecker) Name() string { return "bulkhead/" + c.Bulkhead.Name() }

func (c BulkheadChecker) Check(ctx context.Context) Result {
	now := time.Now()
	stats := c.Bulkhead.Stats()
	if c.Bulkhead.Saturated() {
		return Result{
			Component: c.Name(),
			Status:    StatusDegraded,
			Detail:    fmt.Sprintf("saturated: %d active, %d queued", stats.ActiveCount, stats.QueuedCount),
			CheckedAt: now,
		}
	}
	return Result{
		Component: c.Name(),
		Status:    StatusHealthy,
		Detail:    fmt.Sprintf("%d/%d active", stats.ActiveCount, stats.MaxConcurrent),
		CheckedAt: now,
	}
}

// ManagerChecker reports the admission manager as degraded when any service
// bulkhead is saturated or any shared resource class is exhausted.
type ManagerChecker struct {
	Manager *admission.Manager
}

func (c ManagerChecker) Name() string { return "admission" }

func (c ManagerChecker) Check(ctx context.Context) Result {
	now := time.Now()
	summary := c.Manager.Health()
	if summary.Healthy {
		return Result{
			Component: c.Name(),
			Status:    StatusHealthy,
			Detail:    "all services within limits",
			CheckedAt: now,
		}
	}

	var parts []string
	if len(summary.SaturatedServices) > 0 {
		parts = append(parts, "saturated: "+strings.Join(summary.SaturatedServices, ", "))
	}
	if len(summary.ExhaustedResources) > 0 {
		parts = append(parts, "exhausted: "+strings.Join(summary.ExhaustedResources, ", "))
	}
	return Result{
		Component: c.Name(),
		Status:    StatusDegraded,
		Detail:    strings.Join(parts, "; "),
		CheckedAt: now,
	}
}
