// Package gateway connects the greenhouse core to the remote IoT feed
// platform over two transports.
//
// The pub/sub transport (MQTT) carries low-latency control signals and
// live sensor readings; the REST transport handles feed provisioning,
// historical reads, and acts as the fallback write path when pub/sub is
// down. Client presents the two behind a single surface: Publish returns
// a uniform success boolean regardless of which transport served it.
//
// Remote failures map onto a small error taxonomy (ErrUnauthorized,
// ErrNotFound, ErrRateLimited, ErrUnavailable); callers branch on class
// with errors.Is rather than on provider status codes. REST calls run
// behind a circuit breaker, and feed provisioning retries transient
// failures with a fixed delay.
package gateway
