// Package decision implements the autonomous irrigation decision loop.
//
// The loop polls on a fixed interval. A tick only proceeds when the
// feature is enabled, the pump is off, the minimum decision interval has
// elapsed, and a non-stale soil moisture reading exists. It then
// evaluates per-sensor rules over an environment snapshot, arbitrates the
// result against any queued external recommendation (the external source
// wins whenever its confidence clears the configured bar), maps the
// final water amount class to a configured duration, and activates the
// pump with source "auto" when water is needed.
//
// Every evaluated outcome, including "no action", is persisted as an
// immutable Decision in SQLite, mirrored to a bounded cache list, and
// written to telemetry.
package decision
