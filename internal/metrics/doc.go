// Package metrics defines the Prometheus collectors for Greenhouse Core.
//
// All collectors are registered on the default registry at init time via
// promauto. The HTTP surface that exposes /metrics lives outside this
// repository; components here only increment counters.
package metrics
