package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate.
	// Default: 10
	RequestsPerSecond float64

	// Burst is the maximum burst size.
	// Default: ceil(RequestsPerSecond)
	Burst int

	// WaitOnLimit makes Execute wait for a token instead of failing fast
	// with ErrRateLimitExceeded.
	WaitOnLimit bool

	// MaxWait bounds how long Execute waits for a token when WaitOnLimit is
	// set. Zero means wait only on ctx.
	MaxWait time.Duration
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = int(c.RequestsPerSecond)
		if float64(c.Burst) < c.RequestsPerSecond {
			c.Burst++
		}
	}
	return c
}

// RateLimiter is a token-bucket limiter built on golang.org/x/time/rate.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	config = config.withDefaults()
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
	}
}

// Allow reports whether a request may proceed right now, consuming a token
// when it may.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimitExceeded
	}
	return nil
}

// Execute runs op if the rate limit permits. With WaitOnLimit set it waits up
// to MaxWait for a token; otherwise it fails fast with ErrRateLimitExceeded.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		waitCtx := ctx
		if rl.config.MaxWait > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, rl.config.MaxWait)
			defer cancel()
		}
		if err := rl.limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrRateLimitExceeded
		}
		return op(ctx)
	}

	if !rl.limiter.Allow() {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// Limit returns the configured sustained rate.
func (rl *RateLimiter) Limit() float64 {
	return float64(rl.limiter.Limit())
}
