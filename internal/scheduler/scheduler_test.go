package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/cache"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
	"github.com/verdant-labs/greenhouse-core/internal/pump"
)

// fakePump records activations.
type fakePump struct {
	on      bool
	turnOns []string // schedule names passed as details
	refusal string
	checked int
}

func (f *fakePump) IsOn() bool { return f.on }

func (f *fakePump) TurnOn(ctx context.Context, duration time.Duration, source, details string) (pump.Result, error) {
	if f.refusal != "" {
		return pump.Result{Reason: f.refusal}, nil
	}
	f.on = true
	f.turnOns = append(f.turnOns, details)
	return pump.Result{Changed: true, DurationSeconds: duration.Seconds()}, nil
}

func (f *fakePump) CheckScheduledActions(ctx context.Context) { f.checked++ }

// memScheduleStore is an in-memory Store.
type memScheduleStore struct {
	entries []Entry
	fail    bool
}

func (m *memScheduleStore) ListAll(ctx context.Context) ([]Entry, error) {
	return append([]Entry(nil), m.entries...), nil
}

func (m *memScheduleStore) ReplaceAll(ctx context.Context, entries []Entry) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.entries = append([]Entry(nil), entries...)
	return nil
}

// memCache is an in-memory Cache.
type memCache struct {
	values map[string]string
}

func (m *memCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", cache.ErrMiss
}

func (m *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func testService(t *testing.T, pumpCtrl *fakePump, store *memScheduleStore) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), config.SchedulerConfig{PollIntervalSeconds: 30},
		pumpCtrl, store, &memCache{}, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func validEntry(name, startTime string) Entry {
	return Entry{
		Name:            name,
		Days:            []string{"monday", "wednesday"},
		StartTime:       startTime,
		DurationSeconds: 300,
		Active:          true,
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"missing name", func(e *Entry) { e.Name = "" }},
		{"no days", func(e *Entry) { e.Days = nil }},
		{"bad weekday", func(e *Entry) { e.Days = []string{"monday", "Mondy"} }},
		{"bad time format", func(e *Entry) { e.StartTime = "7:5" }},
		{"hour out of range", func(e *Entry) { e.StartTime = "24:00" }},
		{"zero duration", func(e *Entry) { e.DurationSeconds = 0 }},
		{"negative duration", func(e *Entry) { e.DurationSeconds = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memScheduleStore{}
			svc := testService(t, &fakePump{}, store)

			entry := validEntry("morning", "07:30")
			tt.mutate(&entry)

			if _, err := svc.Add(context.Background(), entry); !errors.Is(err, ErrValidation) {
				t.Fatalf("Add() error = %v, want ErrValidation", err)
			}
			if len(store.entries) != 0 {
				t.Error("collection mutated by rejected add")
			}
		})
	}
}

func TestCRUDRoundTrip(t *testing.T) {
	store := &memScheduleStore{}
	svc := testService(t, &fakePump{}, store)
	ctx := context.Background()

	before := len(svc.List())

	added, err := svc.Add(ctx, validEntry("morning", "07:30"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if added.ID == "" {
		t.Fatal("Add() did not assign an ID")
	}

	got, err := svc.Get(added.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "morning" {
		t.Errorf("Get().Name = %q", got.Name)
	}

	got.StartTime = "08:00"
	updated, err := svc.Update(ctx, got)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.StartTime != "08:00" {
		t.Errorf("Update().StartTime = %q", updated.StartTime)
	}
	if !updated.CreatedAt.Equal(added.CreatedAt) {
		t.Error("Update() changed CreatedAt")
	}

	if err := svc.Delete(ctx, added.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(svc.List()) != before {
		t.Errorf("collection length = %d after round trip, want %d", len(svc.List()), before)
	}
	if _, err := svc.Get(added.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestPersistFailureLeavesCollectionUntouched(t *testing.T) {
	store := &memScheduleStore{}
	svc := testService(t, &fakePump{}, store)
	ctx := context.Background()

	if _, err := svc.Add(ctx, validEntry("morning", "07:30")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	store.fail = true
	if _, err := svc.Add(ctx, validEntry("evening", "19:00")); err == nil {
		t.Fatal("Add() succeeded despite store failure")
	}
	if len(svc.List()) != 1 {
		t.Errorf("collection length = %d, want 1 after failed add", len(svc.List()))
	}
}

func TestCheckSchedulesFiresFirstMatchOnly(t *testing.T) {
	store := &memScheduleStore{}
	pumpCtrl := &fakePump{}
	svc := testService(t, pumpCtrl, store)
	ctx := context.Background()

	// Two entries matching the same minute.
	if _, err := svc.Add(ctx, validEntry("first", "07:30")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := svc.Add(ctx, validEntry("second", "07:30")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Monday 07:30.
	svc.now = func() time.Time {
		return time.Date(2026, 8, 10, 7, 30, 0, 0, time.UTC)
	}

	svc.CheckSchedules(ctx)

	if len(pumpCtrl.turnOns) != 1 {
		t.Fatalf("activations = %d, want 1", len(pumpCtrl.turnOns))
	}
	if pumpCtrl.turnOns[0] != "first" {
		t.Errorf("fired %q, want first (stored order)", pumpCtrl.turnOns[0])
	}
}

func TestCheckSchedulesFiresOncePerMatchingMinute(t *testing.T) {
	store := &memScheduleStore{}
	pumpCtrl := &fakePump{}
	svc := testService(t, pumpCtrl, store)
	ctx := context.Background()

	short := validEntry("short", "07:30")
	short.DurationSeconds = 10
	if _, err := svc.Add(ctx, short); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Monday 07:30:00 fires the entry.
	svc.now = func() time.Time {
		return time.Date(2026, 8, 10, 7, 30, 0, 0, time.UTC)
	}
	svc.CheckSchedules(ctx)
	if len(pumpCtrl.turnOns) != 1 {
		t.Fatalf("activations = %d, want 1", len(pumpCtrl.turnOns))
	}

	// The short run ends inside the same minute; the 07:30:30 poll still
	// matches but must not re-fire.
	pumpCtrl.on = false
	svc.now = func() time.Time {
		return time.Date(2026, 8, 10, 7, 30, 30, 0, time.UTC)
	}
	svc.CheckSchedules(ctx)
	if len(pumpCtrl.turnOns) != 1 {
		t.Fatalf("activations = %d after same-minute re-poll, want 1", len(pumpCtrl.turnOns))
	}

	// The next matching minute (Wednesday 07:30) fires again.
	pumpCtrl.on = false
	svc.now = func() time.Time {
		return time.Date(2026, 8, 12, 7, 30, 0, 0, time.UTC)
	}
	svc.CheckSchedules(ctx)
	if len(pumpCtrl.turnOns) != 2 {
		t.Errorf("activations = %d at next matching minute, want 2", len(pumpCtrl.turnOns))
	}
}

func TestCheckSchedulesSkipsWhilePumpOn(t *testing.T) {
	store := &memScheduleStore{}
	pumpCtrl := &fakePump{on: true}
	svc := testService(t, pumpCtrl, store)
	ctx := context.Background()

	if _, err := svc.Add(ctx, validEntry("morning", "07:30")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	svc.now = func() time.Time {
		return time.Date(2026, 8, 10, 7, 30, 0, 0, time.UTC)
	}

	svc.CheckSchedules(ctx)
	if len(pumpCtrl.turnOns) != 0 {
		t.Errorf("activations = %d, want 0 while pump on", len(pumpCtrl.turnOns))
	}
}

func TestCheckSchedulesIgnoresInactiveAndMismatched(t *testing.T) {
	store := &memScheduleStore{}
	pumpCtrl := &fakePump{}
	svc := testService(t, pumpCtrl, store)
	ctx := context.Background()

	inactive := validEntry("inactive", "07:30")
	inactive.Active = false
	if _, err := svc.Add(ctx, inactive); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	wrongDay := validEntry("weekend", "07:30")
	wrongDay.Days = []string{"saturday"}
	if _, err := svc.Add(ctx, wrongDay); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	wrongTime := validEntry("later", "08:00")
	if _, err := svc.Add(ctx, wrongTime); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Monday 07:30.
	svc.now = func() time.Time {
		return time.Date(2026, 8, 10, 7, 30, 0, 0, time.UTC)
	}

	svc.CheckSchedules(ctx)
	if len(pumpCtrl.turnOns) != 0 {
		t.Errorf("activations = %v, want none", pumpCtrl.turnOns)
	}
}

func TestColdLoadWritesBackToCache(t *testing.T) {
	store := &memScheduleStore{entries: []Entry{{
		ID: "s1", Name: "stored", Days: []string{"monday"},
		StartTime: "07:30", DurationSeconds: 300, Active: true,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}}}
	cch := &memCache{}

	svc, err := NewService(context.Background(), config.SchedulerConfig{PollIntervalSeconds: 30},
		&fakePump{}, store, cch, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	if len(svc.List()) != 1 {
		t.Fatalf("loaded %d entries, want 1", len(svc.List()))
	}
	if _, ok := cch.values[cacheKeySchedules]; !ok {
		t.Error("cold load did not write schedules back to cache")
	}
}
