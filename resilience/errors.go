package resilience

import "errors"

// Sentinel errors for resilience operations. Callers use errors.Is against
// these to choose between retry-with-backoff (timeouts) and fail-fast
// (capacity rejections).
var (
	// ErrBulkheadFull is returned when both the active slots and the wait
	// queue are at capacity. The rejection is immediate; no waiting occurs.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrQueueTimeout is returned when a queued task waited longer than the
	// bulkhead's queue timeout.
	ErrQueueTimeout = errors.New("resilience: bulkhead queue timeout")

	// ErrSemaphoreTimeout is returned when a semaphore acquisition exceeded
	// its timeout.
	ErrSemaphoreTimeout = errors.New("resilience: semaphore acquire timeout")

	// ErrDraining is returned when a bulkhead is draining and no longer
	// accepts work.
	ErrDraining = errors.New("resilience: bulkhead is draining")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")
)
