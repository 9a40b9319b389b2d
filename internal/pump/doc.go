// Package pump owns the irrigation pump's logical state.
//
// Controller is the single writer: manual commands, schedule fires,
// autonomous decisions, and timed stops all route through it. Before any
// state-changing operation (and before Status) it reconciles local state
// against the gateway-reported feed value, so out-of-band changes are
// absorbed with the same accounting as explicit commands.
//
// Safety policy refusals (already running, cooldown active, not running)
// are returned as structured Results with reason codes rather than
// errors; errors are reserved for mechanical failures like an
// undeliverable gateway command.
//
// Every transition to OFF appends exactly one irrigation Event with the
// elapsed runtime and the water volume derived from the configured flow
// rate. State lives in SQLite and is mirrored to the cache after every
// mutation.
package pump
