package gateway

import "errors"

// Domain errors for the gateway package.
//
// The REST transport classifies provider responses into this taxonomy so
// callers can decide between aborting, provisioning, and retrying:
//
//	if errors.Is(err, gateway.ErrNotFound) {
//	    // create the feed
//	}
var (
	// ErrUnauthorized is returned on authentication failure (401/403).
	// Fatal: never retried, logged at error severity.
	ErrUnauthorized = errors.New("gateway: unauthorized")

	// ErrNotFound is returned when a feed or group does not exist (404).
	// Triggers auto-provisioning in EnsureFeed.
	ErrNotFound = errors.New("gateway: not found")

	// ErrRateLimited is returned when the provider throttles us (429).
	// Transient: retried with fixed delay.
	ErrRateLimited = errors.New("gateway: rate limited")

	// ErrUnavailable is returned on provider-side failures (5xx) and when
	// the circuit breaker is open. Transient: retried with fixed delay.
	ErrUnavailable = errors.New("gateway: unavailable")

	// ErrNotConnected is returned when the pub/sub transport is offline.
	ErrNotConnected = errors.New("gateway: pubsub not connected")

	// ErrPublishFailed is returned when a pub/sub publish fails.
	ErrPublishFailed = errors.New("gateway: publish failed")

	// ErrSubscribeFailed is returned when a pub/sub subscribe fails.
	ErrSubscribeFailed = errors.New("gateway: subscribe failed")
)

// IsTransient reports whether err is worth retrying with a fixed delay.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
