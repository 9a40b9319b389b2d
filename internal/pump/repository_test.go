package pump

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/database"
	_ "github.com/verdant-labs/greenhouse-core/migrations"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return NewRepository(db.DB)
}

func TestStateRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LoadState(ctx, DefaultPumpID); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("LoadState() on empty db error = %v, want ErrStateNotFound", err)
	}

	now := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	state := &State{
		PumpID:              DefaultPumpID,
		IsOn:                true,
		StartTime:           now,
		ScheduledStopTime:   now.Add(10 * time.Minute),
		LastOnTime:          now,
		TotalRuntimeSeconds: 1234.5,
		TotalWaterUsed:      123.45,
		UpdatedAt:           now,
	}
	if err := repo.SaveState(ctx, state); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	loaded, err := repo.LoadState(ctx, DefaultPumpID)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if !loaded.IsOn || !loaded.StartTime.Equal(now) || loaded.TotalWaterUsed != 123.45 {
		t.Errorf("LoadState() = %+v", loaded)
	}
	if !loaded.LastOffTime.IsZero() {
		t.Errorf("LastOffTime = %v, want zero for never-stopped pump", loaded.LastOffTime)
	}

	// Upsert: a second save updates the singleton row in place.
	state.IsOn = false
	state.LastOffTime = now.Add(10 * time.Minute)
	if err := repo.SaveState(ctx, state); err != nil {
		t.Fatalf("second SaveState() error = %v", err)
	}
	loaded, err = repo.LoadState(ctx, DefaultPumpID)
	if err != nil {
		t.Fatalf("LoadState() after update error = %v", err)
	}
	if loaded.IsOn {
		t.Error("IsOn = true after update to off")
	}
}

func TestEventsAppendAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	moisture := 18.5
	for i := 0; i < 3; i++ {
		event := &Event{
			PumpID:          DefaultPumpID,
			StartTime:       base.Add(time.Duration(i) * time.Hour),
			DurationSeconds: 300,
			WaterVolume:     30,
			Source:          SourceSchedule,
			MoistureBefore:  &moisture,
		}
		if err := repo.AppendEvent(ctx, event); err != nil {
			t.Fatalf("AppendEvent(%d) error = %v", i, err)
		}
		if event.ID == "" {
			t.Fatal("AppendEvent() did not assign an ID")
		}
	}

	events, err := repo.RecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("RecentEvents() = %d events, want 2", len(events))
	}
	// Newest first.
	if !events[0].StartTime.After(events[1].StartTime) {
		t.Errorf("events not newest-first: %v, %v", events[0].StartTime, events[1].StartTime)
	}
	if events[0].MoistureBefore == nil || *events[0].MoistureBefore != 18.5 {
		t.Errorf("MoistureBefore = %v, want 18.5", events[0].MoistureBefore)
	}
	if events[0].MoistureAfter != nil {
		t.Errorf("MoistureAfter = %v, want nil", events[0].MoistureAfter)
	}
}
