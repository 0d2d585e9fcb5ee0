package aipool

import "errors"

var (
	// ErrUnknownProvider is returned when no pool exists for the requested
	// provider.
	ErrUnknownProvider = errors.New("aipool: unknown provider")

	// ErrUnknownConnection is returned when a connection ID does not match
	// any outstanding lease.
	ErrUnknownConnection = errors.New("aipool: unknown connection id")
)
