// Package cache provides the Redis fast cache for Greenhouse Core.
//
// The cache mirrors current state after every mutation so that other
// processes (the API layer, dashboards) see a consistent view without
// querying SQLite:
//
//   - pump:state          — JSON pump state snapshot
//   - schedules           — JSON schedule collection
//   - env:snapshot        — JSON environment snapshot (with TTL)
//   - decisions:recent    — bounded list of recent decisions, newest first
//   - events:recent       — bounded list of recent irrigation events
//
// All keys are namespaced under the configured prefix. A cache miss is a
// normal condition (ErrMiss); callers fall back to the durable store and
// write the value back.
package cache
