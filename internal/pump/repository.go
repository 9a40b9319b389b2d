package pump

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeFormat is how timestamps are stored in SQLite text columns.
const timeFormat = time.RFC3339Nano

// Repository persists pump state and irrigation events to SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a pump repository backed by the given database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// LoadState retrieves the state row for a pump.
//
// Returns ErrStateNotFound when no row exists yet.
func (r *Repository) LoadState(ctx context.Context, pumpID string) (*State, error) {
	query := `
		SELECT pump_id, is_on, start_time, scheduled_stop_time,
		       last_on_time, last_off_time,
		       total_runtime_seconds, total_water_used, updated_at
		FROM pump_state WHERE pump_id = ?`

	var (
		state                                          State
		startTime, stopTime, lastOn, lastOff, updatedAt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, pumpID).Scan(
		&state.PumpID, &state.IsOn, &startTime, &stopTime,
		&lastOn, &lastOff,
		&state.TotalRuntimeSeconds, &state.TotalWaterUsed, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading pump state: %w", err)
	}

	if state.StartTime, err = parseNullTime(startTime); err != nil {
		return nil, fmt.Errorf("parsing start_time: %w", err)
	}
	if state.ScheduledStopTime, err = parseNullTime(stopTime); err != nil {
		return nil, fmt.Errorf("parsing scheduled_stop_time: %w", err)
	}
	if state.LastOnTime, err = parseNullTime(lastOn); err != nil {
		return nil, fmt.Errorf("parsing last_on_time: %w", err)
	}
	if state.LastOffTime, err = parseNullTime(lastOff); err != nil {
		return nil, fmt.Errorf("parsing last_off_time: %w", err)
	}
	if state.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &state, nil
}

// SaveState upserts the state row for a pump.
func (r *Repository) SaveState(ctx context.Context, state *State) error {
	query := `
		INSERT INTO pump_state (
			pump_id, is_on, start_time, scheduled_stop_time,
			last_on_time, last_off_time,
			total_runtime_seconds, total_water_used, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pump_id) DO UPDATE SET
			is_on = excluded.is_on,
			start_time = excluded.start_time,
			scheduled_stop_time = excluded.scheduled_stop_time,
			last_on_time = excluded.last_on_time,
			last_off_time = excluded.last_off_time,
			total_runtime_seconds = excluded.total_runtime_seconds,
			total_water_used = excluded.total_water_used,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		state.PumpID, state.IsOn,
		formatNullTime(state.StartTime), formatNullTime(state.ScheduledStopTime),
		formatNullTime(state.LastOnTime), formatNullTime(state.LastOffTime),
		state.TotalRuntimeSeconds, state.TotalWaterUsed,
		state.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving pump state: %w", err)
	}
	return nil
}

// AppendEvent inserts one irrigation event. Assigns an ID if missing.
func (r *Repository) AppendEvent(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO irrigation_events (
			id, pump_id, start_time, duration_seconds, water_volume,
			source, moisture_before, moisture_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.PumpID, event.StartTime.Format(timeFormat),
		event.DurationSeconds, event.WaterVolume, event.Source,
		event.MoistureBefore, event.MoistureAfter,
		event.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("appending irrigation event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (r *Repository) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, pump_id, start_time, duration_seconds, water_volume,
		       source, moisture_before, moisture_after, created_at
		FROM irrigation_events
		ORDER BY start_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying irrigation events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event                 Event
			startTime, createdAt string
		)
		if err := rows.Scan(
			&event.ID, &event.PumpID, &startTime,
			&event.DurationSeconds, &event.WaterVolume, &event.Source,
			&event.MoistureBefore, &event.MoistureAfter, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning irrigation event: %w", err)
		}
		if event.StartTime, err = time.Parse(timeFormat, startTime); err != nil {
			return nil, fmt.Errorf("parsing event start_time: %w", err)
		}
		if event.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parsing event created_at: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating irrigation events: %w", err)
	}
	return events, nil
}

func formatNullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(timeFormat)
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFormat, s.String)
}
