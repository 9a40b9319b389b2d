package pump

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/verdant-labs/greenhouse-core/internal/gateway"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
	"github.com/verdant-labs/greenhouse-core/internal/metrics"
)

// DefaultPumpID identifies the single physical pump this process owns.
const DefaultPumpID = "main"

// Cache keys written by the controller (prefix applied by the cache client).
const (
	cacheKeyState   = "pump:state"
	cacheKeyEvents  = "events:recent"
	recentEventsMax = 50
)

// Values written to the pump control feed.
const (
	feedValueOn  = "1"
	feedValueOff = "0"
)

// Logger is the minimal logging interface the pump controller needs.
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

// Gateway is the slice of the gateway client the controller uses.
type Gateway interface {
	Publish(ctx context.Context, feedKey, value string) bool
	Latest(ctx context.Context, feedKey string) (*gateway.Reading, error)
}

// StateStore persists pump state and irrigation events.
type StateStore interface {
	LoadState(ctx context.Context, pumpID string) (*State, error)
	SaveState(ctx context.Context, state *State) error
	AppendEvent(ctx context.Context, event *Event) error
	RecentEvents(ctx context.Context, limit int) ([]Event, error)
}

// Cache mirrors state and recent events for cross-process readers.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	PushRecent(ctx context.Context, key, value string, max int64) error
}

// Telemetry records completed irrigation runs as time-series points.
type Telemetry interface {
	WriteIrrigationEvent(source string, durationSeconds, waterVolume float64, startedAt time.Time)
}

// Controller is the exclusive owner of the pump's logical state.
//
// Every state-changing operation, and Status, reconciles local state
// against gateway truth first; mutation is serialized by an internal
// mutex. Construct exactly one Controller per pump.
type Controller struct {
	mu sync.Mutex

	cfg       config.PumpConfig
	feedKey   string
	gateway   Gateway
	store     StateStore
	cache     Cache
	telemetry Telemetry
	logger    Logger

	state State

	// now is injectable for tests.
	now func() time.Time
}

// NewController creates the pump controller, loading persisted state or
// initializing the singleton row on first run.
func NewController(ctx context.Context, cfg config.PumpConfig, feedKey string, gw Gateway, store StateStore, cache Cache, telemetry Telemetry, logger Logger) (*Controller, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Controller{
		cfg:       cfg,
		feedKey:   feedKey,
		gateway:   gw,
		store:     store,
		cache:     cache,
		telemetry: telemetry,
		logger:    logger,
		now:       time.Now,
	}

	state, err := store.LoadState(ctx, DefaultPumpID)
	switch {
	case err == nil:
		c.state = *state
	case errors.Is(err, ErrStateNotFound):
		c.state = State{PumpID: DefaultPumpID, UpdatedAt: c.now().UTC()}
		if err := store.SaveState(ctx, &c.state); err != nil {
			return nil, fmt.Errorf("initializing pump state: %w", err)
		}
	default:
		return nil, fmt.Errorf("loading pump state: %w", err)
	}

	return c, nil
}

// TurnOn activates the pump for the given duration.
//
// Runs reconciliation, then the safety check: refuses with
// ReasonAlreadyRunning when ON, or ReasonMinIntervalNotMet (with the
// non-negative remaining cooldown) when the last stop is too recent. The
// duration is clamped to the configured max runtime.
//
// Policy refusals come back in the Result; an error means the gateway
// command failed or persistence broke.
func (c *Controller) TurnOn(ctx context.Context, duration time.Duration, source, details string) (Result, error) {
	if duration <= 0 {
		return Result{}, ErrInvalidDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcileLocked(ctx)
	now := c.now().UTC()

	if c.state.IsOn {
		metrics.PumpRefusals.WithLabelValues(ReasonAlreadyRunning).Inc()
		c.logger.Info("pump activation refused", "reason", ReasonAlreadyRunning, "source", source)
		return Result{Reason: ReasonAlreadyRunning}, nil
	}

	if !c.state.LastOffTime.IsZero() {
		sinceOff := now.Sub(c.state.LastOffTime)
		if sinceOff < c.cfg.MinInterval() {
			remaining := int(math.Ceil((c.cfg.MinInterval() - sinceOff).Seconds()))
			if remaining < 0 {
				remaining = 0
			}
			metrics.PumpRefusals.WithLabelValues(ReasonMinIntervalNotMet).Inc()
			c.logger.Info("pump activation refused",
				"reason", ReasonMinIntervalNotMet, "source", source, "remaining_seconds", remaining)
			return Result{Reason: ReasonMinIntervalNotMet, RemainingSeconds: remaining}, nil
		}
	}

	if duration > c.cfg.MaxRuntime() {
		c.logger.Warn("requested duration clamped to max runtime",
			"requested_seconds", duration.Seconds(), "max_seconds", c.cfg.MaxRuntime().Seconds())
		duration = c.cfg.MaxRuntime()
	}

	if !c.gateway.Publish(ctx, c.feedKey, feedValueOn) {
		return Result{}, fmt.Errorf("%w: turning pump on", ErrCommandFailed)
	}

	c.state.IsOn = true
	c.state.StartTime = now
	c.state.ScheduledStopTime = now.Add(duration)
	c.state.LastOnTime = now
	c.persistLocked(ctx)

	metrics.PumpActivations.WithLabelValues(source).Inc()
	c.logger.Info("pump on",
		"source", source, "duration_seconds", duration.Seconds(), "details", details)

	return Result{Changed: true, DurationSeconds: duration.Seconds()}, nil
}

// TurnOff stops the pump, accounting elapsed runtime and water volume and
// appending one irrigation event. Refuses with ReasonNotRunning when the
// pump is already off.
func (c *Controller) TurnOff(ctx context.Context, source, details string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcileLocked(ctx)

	if !c.state.IsOn {
		c.logger.Info("pump stop refused", "reason", ReasonNotRunning, "source", source)
		return Result{Reason: ReasonNotRunning}, nil
	}

	if !c.gateway.Publish(ctx, c.feedKey, feedValueOff) {
		return Result{}, fmt.Errorf("%w: turning pump off", ErrCommandFailed)
	}

	event := c.stopAccountingLocked(ctx, source, c.now().UTC())
	c.logger.Info("pump off",
		"source", source, "duration_seconds", event.DurationSeconds,
		"water_volume", event.WaterVolume, "details", details)

	return Result{Changed: true, DurationSeconds: event.DurationSeconds, WaterVolume: event.WaterVolume}, nil
}

// Status reconciles and returns the state plus derived runtime figures.
func (c *Controller) Status(ctx context.Context) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	synced := c.reconcileLocked(ctx)
	now := c.now().UTC()

	status := Status{State: c.state, StateSynced: synced}
	if c.state.IsOn {
		elapsed := now.Sub(c.state.StartTime).Seconds()
		status.CurrentRuntimeSeconds = elapsed
		status.CurrentWaterUsed = elapsed * c.cfg.FlowRate
		if remaining := c.state.ScheduledStopTime.Sub(now).Seconds(); remaining > 0 {
			status.RemainingSeconds = remaining
		}
	}
	return status
}

// CheckScheduledActions stops the pump when its scheduled stop time has
// passed. Called on every scheduler tick.
func (c *Controller) CheckScheduledActions(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcileLocked(ctx)

	if !c.state.IsOn || c.now().UTC().Before(c.state.ScheduledStopTime) {
		return
	}

	if !c.gateway.Publish(ctx, c.feedKey, feedValueOff) {
		c.logger.Error("timed stop failed, pump may still be running", "feed", c.feedKey)
		return
	}

	event := c.stopAccountingLocked(ctx, SourceSchedule, c.now().UTC())
	c.logger.Info("pump timed stop",
		"duration_seconds", event.DurationSeconds, "water_volume", event.WaterVolume)
}

// IsOn reports the locally cached on/off state without reconciling.
func (c *Controller) IsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsOn
}

// Events returns up to limit recent irrigation events, newest first.
func (c *Controller) Events(ctx context.Context, limit int) ([]Event, error) {
	return c.store.RecentEvents(ctx, limit)
}

// reconcileLocked aligns local state with gateway-reported state. Returns
// whether gateway truth was successfully read. Caller holds the mutex.
//
// Drift is corrected with the same accounting as an explicit stop/start:
// gateway OFF while local ON closes the run with source "sync"; gateway ON
// while local OFF adopts the run with a max-runtime stop bound. An
// unchanged gateway state never mutates counters.
func (c *Controller) reconcileLocked(ctx context.Context) bool {
	reading, err := c.gateway.Latest(ctx, c.feedKey)
	if err != nil {
		c.logger.Warn("gateway state read failed, using local state", "error", err)
		return false
	}
	if reading == nil {
		return true
	}

	gatewayOn := reading.Value == feedValueOn
	if gatewayOn == c.state.IsOn {
		return true
	}

	now := c.now().UTC()
	if c.state.IsOn {
		// Gateway says OFF: the pump was stopped out-of-band. Close the
		// run; the exact stop time is unknown, so elapsed is capped at
		// max runtime.
		c.logger.Warn("sync drift: gateway reports pump off, closing run")
		metrics.SyncDrift.WithLabelValues("off").Inc()
		c.stopAccountingLocked(ctx, SourceSync, now)
		return true
	}

	// Gateway says ON: adopt the run with a stop bound so the timed stop
	// still applies.
	c.logger.Warn("sync drift: gateway reports pump on, adopting run")
	metrics.SyncDrift.WithLabelValues("on").Inc()
	c.state.IsOn = true
	c.state.StartTime = now
	c.state.ScheduledStopTime = now.Add(c.cfg.MaxRuntime())
	c.state.LastOnTime = now
	c.persistLocked(ctx)
	return true
}

// stopAccountingLocked transitions to OFF: accumulates runtime and water
// counters, appends one Event, persists. Caller holds the mutex and has
// already issued (or observed) the gateway OFF.
func (c *Controller) stopAccountingLocked(ctx context.Context, source string, stoppedAt time.Time) Event {
	elapsed := stoppedAt.Sub(c.state.StartTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	if limit := c.cfg.MaxRuntime().Seconds(); elapsed > limit {
		elapsed = limit
	}
	volume := elapsed * c.cfg.FlowRate

	event := Event{
		PumpID:          c.state.PumpID,
		StartTime:       c.state.StartTime,
		DurationSeconds: elapsed,
		WaterVolume:     volume,
		Source:          source,
		CreatedAt:       stoppedAt,
	}

	c.state.IsOn = false
	c.state.TotalRuntimeSeconds += elapsed
	c.state.TotalWaterUsed += volume
	c.state.LastOffTime = stoppedAt
	c.state.StartTime = time.Time{}
	c.state.ScheduledStopTime = time.Time{}

	if err := c.store.AppendEvent(ctx, &event); err != nil {
		c.logger.Error("failed to persist irrigation event", "error", err)
	} else if c.cache != nil {
		if data, err := json.Marshal(event); err == nil {
			if err := c.cache.PushRecent(ctx, cacheKeyEvents, string(data), recentEventsMax); err != nil {
				c.logger.Warn("failed to mirror event to cache", "error", err)
			}
		}
	}
	if c.telemetry != nil {
		c.telemetry.WriteIrrigationEvent(source, elapsed, volume, event.StartTime)
	}
	metrics.IrrigationSeconds.Add(elapsed)
	metrics.WaterLitres.Add(volume)

	c.persistLocked(ctx)
	return event
}

// persistLocked writes state to SQLite and mirrors it to the cache.
// Persistence failures are logged, not fatal: gateway truth re-seeds local
// state on the next reconcile.
func (c *Controller) persistLocked(ctx context.Context) {
	c.state.UpdatedAt = c.now().UTC()

	if err := c.store.SaveState(ctx, &c.state); err != nil {
		c.logger.Error("failed to persist pump state", "error", err)
	}
	if c.cache != nil {
		if data, err := json.Marshal(c.state); err == nil {
			if err := c.cache.Set(ctx, cacheKeyState, string(data), 0); err != nil {
				c.logger.Warn("failed to mirror pump state to cache", "error", err)
			}
		}
	}
}
