// Package resilience provides concurrency and fault-isolation primitives:
// a FIFO-fair counting Semaphore, a queued Bulkhead that caps per-service
// concurrency, a CircuitBreaker, exponential-backoff Retry, and a
// token-bucket RateLimiter.
//
// The primitives compose. A typical call path wraps an operation in a
// bulkhead to bound its concurrency, a circuit breaker to shed load from a
// failing dependency, and a retry for transient errors:
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{
//	    Name:          "search",
//	    MaxConcurrent: 8,
//	    MaxQueueSize:  32,
//	})
//
//	err := bh.Execute(ctx, func(ctx context.Context) error {
//	    return cb.Execute(ctx, callBackend)
//	})
//
// All rejections are sentinel errors (ErrBulkheadFull, ErrQueueTimeout,
// ErrCircuitOpen, ErrRateLimitExceeded) so callers can distinguish capacity
// pushback from real failures with errors.Is.
package resilience
