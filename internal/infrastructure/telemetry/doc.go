// Package telemetry provides the InfluxDB time-series sink for Greenhouse Core.
//
// Three measurements are written:
//
//   - sensor_readings    — environment readings pulled from the gateway
//   - decisions          — decision loop outcomes, including no-action ticks
//   - irrigation_events  — completed irrigation runs with volume and source
//
// Writes are batched and asynchronous; failures surface via SetOnError and
// never block the control path. Telemetry is optional: when disabled in
// config, components simply skip the writes.
package telemetry
