package resilience

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff.
	// Default: 5 seconds
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts.
	// Default: 2.0
	Multiplier float64

	// ShouldRetry decides whether an error is worth retrying.
	// Default: IsTransient
	ShouldRetry func(err error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = IsTransient
	}
	return c
}

// Retry runs op with exponential backoff until it succeeds, exhausts
// MaxAttempts, returns a non-retryable error, or ctx is cancelled.
func Retry(ctx context.Context, config RetryConfig, op func(context.Context) error) error {
	config = config.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = config.InitialDelay
	bo.MaxInterval = config.MaxDelay
	bo.Multiplier = config.Multiplier
	bo.MaxElapsedTime = 0

	attempts := uint64(config.MaxAttempts - 1)
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, attempts), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !config.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// RetryValue is Retry for operations that return a value.
func RetryValue[T any](ctx context.Context, config RetryConfig, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := Retry(ctx, config, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// transientMarkers are substrings that identify errors worth retrying:
// network hiccups, timeouts, rate limits, and server-side failures.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"connection closed",
	"broken pipe",
	"no such host",
	"temporary failure",
	"network",
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"unavailable",
	"overloaded",
}

// IsTransient reports whether an error looks like a temporary condition that
// a retry could resolve. Capacity rejections and validation failures are not
// transient: retrying them immediately only adds load.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
