package pump

import "time"

// Trigger sources recorded on activations and irrigation events.
const (
	SourceManual   = "manual"
	SourceSchedule = "schedule"
	SourceAuto     = "auto"
	SourceSync     = "sync"
)

// Refusal reason codes returned in Result when a safety policy denies an
// operation. These are policy outcomes, not errors.
const (
	ReasonAlreadyRunning    = "already_running"
	ReasonMinIntervalNotMet = "min_interval_not_met"
	ReasonNotRunning        = "not_running"
)

// State is the pump's persisted logical state. A single row per pump in
// SQLite, mirrored to the cache after every mutation.
type State struct {
	PumpID              string    `json:"pump_id"`
	IsOn                bool      `json:"is_on"`
	StartTime           time.Time `json:"start_time"`
	ScheduledStopTime   time.Time `json:"scheduled_stop_time"`
	LastOnTime          time.Time `json:"last_on_time"`
	LastOffTime         time.Time `json:"last_off_time"`
	TotalRuntimeSeconds float64   `json:"total_runtime_seconds"`
	TotalWaterUsed      float64   `json:"total_water_used"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Event is one completed irrigation run. Appended exactly once per
// transition to OFF, whether explicit, timed, or sync-detected.
type Event struct {
	ID              string    `json:"id"`
	PumpID          string    `json:"pump_id"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	WaterVolume     float64   `json:"water_volume"`
	Source          string    `json:"source"`
	MoistureBefore  *float64  `json:"moisture_before,omitempty"`
	MoistureAfter   *float64  `json:"moisture_after,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Result is the outcome of a state-changing pump operation.
//
// Changed reports whether the pump state actually changed. When a safety
// policy denied the operation, Changed is false and Reason carries the
// refusal code; mechanical failures are returned as errors instead.
type Result struct {
	Changed bool `json:"changed"`

	// Reason is the refusal code when a policy denied the operation.
	Reason string `json:"reason,omitempty"`

	// RemainingSeconds is the non-negative cooldown remainder, set only
	// with ReasonMinIntervalNotMet.
	RemainingSeconds int `json:"remaining_seconds,omitempty"`

	// DurationSeconds is the granted (possibly clamped) run duration on a
	// successful activation, or the elapsed runtime on a successful stop.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	// WaterVolume is the litres accounted on a successful stop.
	WaterVolume float64 `json:"water_volume,omitempty"`
}

// Status is the reconciled pump state plus derived runtime figures.
type Status struct {
	State

	CurrentRuntimeSeconds float64 `json:"current_runtime_seconds"`
	CurrentWaterUsed      float64 `json:"current_water_used"`
	RemainingSeconds      float64 `json:"remaining_seconds"`

	// StateSynced reports whether the last gateway read agreed with (or
	// was reconciled into) local state. False when the gateway could not
	// be read and the status reflects local state only.
	StateSynced bool `json:"state_synced"`
}
