package admission

import (
	"time"

	"github.com/jonwraymond/bulwark/resilience"
)

// Shared resource classes guarded by global semaphores. Every task admitted
// through the manager names the classes it consumes; the manager serializes
// access across services so one hot service cannot exhaust a machine-wide
// resource.
const (
	ResourceCPU       = "cpu_intensive"
	ResourceMemory    = "memory_intensive"
	ResourceNetworkIO = "network_io"
	ResourceDiskIO    = "disk_io"
	ResourceAITotal   = "ai.total_requests"
	ResourceContainer = "container.total"
)

// DefaultSemaphores returns the default permit counts for the shared
// resource classes.
func DefaultSemaphores() map[string]int {
	return map[string]int{
		ResourceCPU:       4,
		ResourceMemory:    3,
		ResourceNetworkIO: 20,
		ResourceDiskIO:    10,
		ResourceAITotal:   10,
		ResourceContainer: 8,
	}
}

// ServiceConfig describes the bulkhead settings for one named service.
// Nil fields inherit the manager's defaults.
type ServiceConfig struct {
	MaxConcurrent *int
	MaxQueueSize  *int
	QueueTimeout  *time.Duration
}

func (sc ServiceConfig) patch() resilience.BulkheadPatch {
	return resilience.BulkheadPatch{
		MaxConcurrent: sc.MaxConcurrent,
		MaxQueueSize:  sc.MaxQueueSize,
		QueueTimeout:  sc.QueueTimeout,
	}
}

// IntPtr returns a pointer to v, for building ServiceConfig literals.
func IntPtr(v int) *int { return &v }

// DurationPtr returns a pointer to d, for building ServiceConfig literals.
func DurationPtr(d time.Duration) *time.Duration { return &d }

// Options configures a Manager.
type Options struct {
	// Defaults applies to every service without an explicit override.
	Defaults resilience.BulkheadConfig

	// Services maps service names to per-service overrides.
	Services map[string]ServiceConfig

	// Semaphores maps resource class names to permit counts. When nil,
	// DefaultSemaphores is used. An explicit entry replaces the default for
	// that class only.
	Semaphores map[string]int

	// RateLimits maps service names to an optional request-rate gate applied
	// before admission. Services without an entry are not rate limited.
	RateLimits map[string]resilience.RateLimiterConfig

	// SemaphoreTimeout bounds each shared-resource acquisition during
	// Execute.
	// Default: 10 seconds
	SemaphoreTimeout time.Duration

	// Flags gates bulkhead enforcement at runtime. When nil, enforcement is
	// always on.
	Flags FlagProvider
}

func (o Options) withDefaults() Options {
	if o.Defaults.MaxConcurrent <= 0 {
		o.Defaults.MaxConcurrent = 10
	}
	if o.Defaults.MaxQueueSize < 0 {
		o.Defaults.MaxQueueSize = 0
	}
	if o.Defaults.QueueTimeout <= 0 {
		o.Defaults.QueueTimeout = 30 * time.Second
	}
	if o.SemaphoreTimeout <= 0 {
		o.SemaphoreTimeout = 10 * time.Second
	}

	sems := DefaultSemaphores()
	for name, permits := range o.Semaphores {
		sems[name] = permits
	}
	o.Semaphores = sems

	if o.Flags == nil {
		o.Flags = alwaysOn{}
	}
	return o
}
