package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// timeFormat is how timestamps are stored in SQLite text columns.
const timeFormat = time.RFC3339Nano

// Repository persists the schedule collection to SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a schedule repository backed by the given database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListAll returns all schedules in stored order.
func (r *Repository) ListAll(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT id, name, days, start_time, duration_seconds,
		       active, sort_order, created_at, updated_at
		FROM schedules ORDER BY sort_order`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry                      Entry
			days, createdAt, updatedAt string
		)
		if err := rows.Scan(
			&entry.ID, &entry.Name, &days, &entry.StartTime,
			&entry.DurationSeconds, &entry.Active, &entry.SortOrder,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		if err := json.Unmarshal([]byte(days), &entry.Days); err != nil {
			return nil, fmt.Errorf("decoding schedule days: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parsing schedule created_at: %w", err)
		}
		if entry.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing schedule updated_at: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return entries, nil
}

// ReplaceAll atomically replaces the stored collection with the given
// entries, preserving slice order as sort order.
func (r *Repository) ReplaceAll(ctx context.Context, entries []Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schedules transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules`); err != nil {
		return fmt.Errorf("clearing schedules: %w", err)
	}

	query := `
		INSERT INTO schedules (
			id, name, days, start_time, duration_seconds,
			active, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i, entry := range entries {
		days, err := json.Marshal(entry.Days)
		if err != nil {
			return fmt.Errorf("encoding schedule days: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			entry.ID, entry.Name, string(days), entry.StartTime,
			entry.DurationSeconds, entry.Active, i,
			entry.CreatedAt.Format(timeFormat), entry.UpdatedAt.Format(timeFormat),
		); err != nil {
			return fmt.Errorf("inserting schedule %q: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schedules: %w", err)
	}
	return nil
}
