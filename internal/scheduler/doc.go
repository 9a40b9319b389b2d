// Package scheduler runs time-of-day irrigation schedules.
//
// Service holds the ordered schedule collection, loaded at startup from
// the cache with a SQLite fallback. Each poll tick it first lets the
// pump controller apply any pending timed stop, then fires the first
// entry whose weekday set and HH:MM start time match the current minute.
// At most one entry fires per tick, and nothing fires while the pump is
// already on.
//
// CRUD operations validate before mutating; every successful mutation
// re-persists the full collection to SQLite and the cache.
package scheduler
