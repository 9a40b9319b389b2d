// Package logging provides structured logging for Greenhouse Core.
//
// It wraps log/slog with configuration-driven level filtering, JSON or text
// output, and default service/version fields on every record. Component
// packages receive a child logger via With("component", name) so records
// can be filtered per subsystem.
package logging
