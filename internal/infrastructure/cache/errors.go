package cache

import "errors"

// Domain-specific errors for cache operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMiss is returned when a key does not exist in the cache.
	// Callers fall back to the durable store on a miss.
	ErrMiss = errors.New("cache: miss")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("cache: connection failed")
)
