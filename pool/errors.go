package pool

import (
	"errors"
	"fmt"
)

// Sentinel errors for pool operations.
var (
	// ErrAcquireTimeout is returned when an acquisition waited longer than
	// the configured acquire timeout.
	ErrAcquireTimeout = errors.New("pool: acquire timeout")

	// ErrPoolClosed is returned when operating on a cleared pool.
	ErrPoolClosed = errors.New("pool: pool is closed")

	// ErrNotFound is returned when a resource id is unknown to the pool.
	ErrNotFound = errors.New("pool: resource not found")

	// ErrCreateFailed is matched (via errors.Is) by CreateError.
	ErrCreateFailed = errors.New("pool: resource creation failed")

	// ErrInvalidSize is returned by Resize for an invalid min/max pair.
	ErrInvalidSize = errors.New("pool: invalid pool size")
)

// CreateError reports that the factory failed to create a resource after all
// retry attempts. It wraps the last factory error and matches ErrCreateFailed
// so callers can distinguish creation failures from timeouts.
type CreateError struct {
	// Attempts is the number of create attempts made.
	Attempts int

	// Err is the last error returned by the factory.
	Err error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("pool: create failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCreateFailed.
func (e *CreateError) Is(target error) bool { return target == ErrCreateFailed }
