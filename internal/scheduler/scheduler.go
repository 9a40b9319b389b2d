package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/cache"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
	"github.com/verdant-labs/greenhouse-core/internal/pump"
)

// cacheKeySchedules holds the JSON-encoded schedule collection.
const cacheKeySchedules = "schedules"

// Logger is the minimal logging interface the scheduler needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PumpController is the slice of the pump controller the scheduler uses.
type PumpController interface {
	IsOn() bool
	TurnOn(ctx context.Context, duration time.Duration, source, details string) (pump.Result, error)
	CheckScheduledActions(ctx context.Context)
}

// Store persists the schedule collection.
type Store interface {
	ListAll(ctx context.Context) ([]Entry, error)
	ReplaceAll(ctx context.Context, entries []Entry) error
}

// Cache mirrors the collection for cross-process readers and fast loads.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service holds the ordered schedule collection and fires matching
// entries on its poll tick.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	mu sync.RWMutex

	cfg     config.SchedulerConfig
	pump    PumpController
	store   Store
	cache   Cache
	logger  Logger
	entries []Entry

	// lastFired is the day+minute stamp of the last tick that matched an
	// entry. Polling runs faster than once a minute, so without it a short
	// run ending inside the matching minute would fire the entry again.
	lastFired string

	// now is injectable for tests.
	now func() time.Time
}

// NewService creates the scheduler and loads the collection: cache first,
// falling back to SQLite with a cache write-back on a cold load.
func NewService(ctx context.Context, cfg config.SchedulerConfig, pumpCtrl PumpController, store Store, cch Cache, logger Logger) (*Service, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Service{
		cfg:    cfg,
		pump:   pumpCtrl,
		store:  store,
		cache:  cch,
		logger: logger,
		now:    time.Now,
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// load populates the in-memory collection.
func (s *Service) load(ctx context.Context) error {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, cacheKeySchedules)
		if err == nil {
			var entries []Entry
			if err := json.Unmarshal([]byte(data), &entries); err == nil {
				s.entries = entries
				s.logger.Debug("schedules loaded from cache", "count", len(entries))
				return nil
			}
			s.logger.Warn("corrupt schedules in cache, falling back to database", "error", err)
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("cache read failed, falling back to database", "error", err)
		}
	}

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}
	s.entries = entries
	s.writeCache(ctx, entries)
	s.logger.Info("schedules loaded from database", "count", len(entries))
	return nil
}

// Run executes the poll loop until the context is cancelled. Per-tick
// failures are logged and never halt subsequent ticks.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	s.logger.Info("scheduler started", "poll_interval", s.cfg.PollInterval())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one poll iteration with panic isolation.
func (s *Service) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler tick panicked", "panic", r)
		}
	}()

	s.pump.CheckScheduledActions(ctx)
	s.CheckSchedules(ctx)
}

// CheckSchedules fires the first entry matching the current weekday and
// minute, at most once per matching minute. Returns immediately when the
// pump is already on, so schedules never stack.
func (s *Service) CheckSchedules(ctx context.Context) {
	if s.pump.IsOn() {
		return
	}

	now := s.now()
	day := strings.ToLower(now.Weekday().String())
	clock := now.Format("15:04")
	stamp := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if !entry.Active || !entry.matchesDay(day) || entry.StartTime != clock {
			continue
		}
		if s.lastFired == stamp {
			return
		}
		s.lastFired = stamp

		duration := time.Duration(entry.DurationSeconds) * time.Second
		result, err := s.pump.TurnOn(ctx, duration, pump.SourceSchedule, entry.Name)
		if err != nil {
			s.logger.Error("scheduled activation failed", "schedule", entry.Name, "error", err)
		} else if !result.Changed {
			s.logger.Info("scheduled activation refused",
				"schedule", entry.Name, "reason", result.Reason)
		} else {
			s.logger.Info("schedule fired",
				"schedule", entry.Name, "duration_seconds", entry.DurationSeconds)
		}
		// First match only, regardless of outcome.
		return
	}
}

// List returns a copy of the collection in stored order.
func (s *Service) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns the schedule with the given ID.
func (s *Service) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Add validates and appends a schedule, assigning its ID and timestamps,
// then re-persists the full collection.
func (s *Service) Add(ctx context.Context, entry Entry) (Entry, error) {
	if err := validate(&entry); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	entry.ID = uuid.New().String()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	entry.SortOrder = len(s.entries)

	next := append(append([]Entry(nil), s.entries...), entry)
	if err := s.persist(ctx, next); err != nil {
		return Entry{}, err
	}
	s.entries = next
	s.logger.Info("schedule added", "schedule", entry.Name, "id", entry.ID)
	return entry, nil
}

// Update validates and replaces the schedule with entry.ID, then
// re-persists the full collection.
func (s *Service) Update(ctx context.Context, entry Entry) (Entry, error) {
	if err := validate(&entry); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.entries {
		if s.entries[i].ID == entry.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Entry{}, ErrNotFound
	}

	entry.CreatedAt = s.entries[idx].CreatedAt
	entry.SortOrder = s.entries[idx].SortOrder
	entry.UpdatedAt = s.now().UTC()

	next := append([]Entry(nil), s.entries...)
	next[idx] = entry
	if err := s.persist(ctx, next); err != nil {
		return Entry{}, err
	}
	s.entries = next
	s.logger.Info("schedule updated", "schedule", entry.Name, "id", entry.ID)
	return entry, nil
}

// Delete removes the schedule with the given ID and re-persists the full
// collection.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Entry, 0, len(s.entries))
	found := false
	for _, entry := range s.entries {
		if entry.ID == id {
			found = true
			continue
		}
		next = append(next, entry)
	}
	if !found {
		return ErrNotFound
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.entries = next
	s.logger.Info("schedule deleted", "id", id)
	return nil
}

// persist writes the collection to SQLite and mirrors it to the cache.
// The in-memory collection is only swapped by the caller on success.
func (s *Service) persist(ctx context.Context, entries []Entry) error {
	if err := s.store.ReplaceAll(ctx, entries); err != nil {
		return fmt.Errorf("persisting schedules: %w", err)
	}
	s.writeCache(ctx, entries)
	return nil
}

// writeCache mirrors a collection to the cache. Best effort.
func (s *Service) writeCache(ctx context.Context, entries []Entry) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeySchedules, string(data), 0); err != nil {
		s.logger.Warn("failed to mirror schedules to cache", "error", err)
	}
}
