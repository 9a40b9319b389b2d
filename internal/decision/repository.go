package decision

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeFormat is how timestamps are stored in SQLite text columns.
const timeFormat = time.RFC3339Nano

// Repository persists the append-only decision history to SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a decision repository backed by the given database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts one decision. Assigns an ID if missing.
func (r *Repository) Append(ctx context.Context, d *Decision) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	analysis, err := json.Marshal(d.Analysis)
	if err != nil {
		return fmt.Errorf("encoding decision analysis: %w", err)
	}

	query := `
		INSERT INTO decisions (
			id, timestamp, needs_water, urgency, reason,
			water_amount, analysis, action_taken, action_success
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query,
		d.ID, d.Timestamp.Format(timeFormat), d.NeedsWater, d.Urgency,
		d.Reason, d.WaterAmount, string(analysis), d.ActionTaken, d.ActionSuccess,
	); err != nil {
		return fmt.Errorf("appending decision: %w", err)
	}
	return nil
}

// Recent returns up to limit decisions, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Decision, error) {
	query := `
		SELECT id, timestamp, needs_water, urgency, reason,
		       water_amount, analysis, action_taken, action_success
		FROM decisions ORDER BY timestamp DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var (
			d                   Decision
			timestamp, analysis string
		)
		if err := rows.Scan(
			&d.ID, &timestamp, &d.NeedsWater, &d.Urgency, &d.Reason,
			&d.WaterAmount, &analysis, &d.ActionTaken, &d.ActionSuccess,
		); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		if d.Timestamp, err = time.Parse(timeFormat, timestamp); err != nil {
			return nil, fmt.Errorf("parsing decision timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(analysis), &d.Analysis); err != nil {
			return nil, fmt.Errorf("decoding decision analysis: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}
	return decisions, nil
}

// LastTimestamp returns the newest decision time, or the zero time when
// the history is empty.
func (r *Repository) LastTimestamp(ctx context.Context) (time.Time, error) {
	var timestamp string
	err := r.db.QueryRowContext(ctx,
		`SELECT timestamp FROM decisions ORDER BY timestamp DESC LIMIT 1`,
	).Scan(&timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last decision time: %w", err)
	}

	t, err := time.Parse(timeFormat, timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last decision time: %w", err)
	}
	return t, nil
}
