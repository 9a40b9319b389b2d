package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/verdant-labs/greenhouse-core/internal/gateway"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/cache"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
	"github.com/verdant-labs/greenhouse-core/internal/metrics"
	"github.com/verdant-labs/greenhouse-core/internal/pump"
)

// Cache keys written by the loop (prefix applied by the cache client).
const (
	cacheKeySnapshot   = "env:snapshot"
	cacheKeyDecisions  = "decisions:recent"
	recentDecisionsMax = 50
)

// Logger is the minimal logging interface the decision loop needs.
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

// PumpController is the slice of the pump controller the loop uses.
type PumpController interface {
	IsOn() bool
	TurnOn(ctx context.Context, duration time.Duration, source, details string) (pump.Result, error)
}

// Gateway reads sensor feeds.
type Gateway interface {
	Latest(ctx context.Context, feedKey string) (*gateway.Reading, error)
}

// Store persists the decision history.
type Store interface {
	Append(ctx context.Context, d *Decision) error
	Recent(ctx context.Context, limit int) ([]Decision, error)
	LastTimestamp(ctx context.Context) (time.Time, error)
}

// Cache mirrors snapshots and recent decisions for cross-process readers.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	PushRecent(ctx context.Context, key, value string, max int64) error
}

// Telemetry records decisions as time-series points.
type Telemetry interface {
	WriteDecision(needsWater bool, urgency, waterAmount, actionTaken string, at time.Time)
	WriteReading(feed string, value float64, at time.Time)
}

// queuedRecommendation is an external recommendation awaiting the next
// tick. Only the newest is kept.
type queuedRecommendation struct {
	rec      AIRecommendation
	source   string
	received time.Time
}

// Loop is the autonomous irrigation decision loop.
//
// Each tick it checks preconditions (enabled, pump off, decision interval
// elapsed, fresh moisture data), evaluates the rule set against an
// environment snapshot, arbitrates against any queued external
// recommendation, optionally activates the pump, and persists the outcome
// as an immutable Decision.
type Loop struct {
	mu sync.Mutex

	cfg       config.DecisionConfig
	feeds     config.GatewayFeedsConfig
	pump      PumpController
	gateway   Gateway
	store     Store
	cache     Cache
	telemetry Telemetry
	logger    Logger

	enabled      bool
	queued       *queuedRecommendation
	lastDecision time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewLoop creates the decision loop, seeding the decision interval from
// the newest persisted decision.
func NewLoop(ctx context.Context, cfg config.DecisionConfig, feeds config.GatewayFeedsConfig, pumpCtrl PumpController, gw Gateway, store Store, cch Cache, telemetry Telemetry, logger Logger) (*Loop, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	last, err := store.LastTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding decision interval: %w", err)
	}

	return &Loop{
		cfg:          cfg,
		feeds:        feeds,
		pump:         pumpCtrl,
		gateway:      gw,
		store:        store,
		cache:        cch,
		telemetry:    telemetry,
		logger:       logger,
		enabled:      cfg.Enabled,
		lastDecision: last,
		now:          time.Now,
	}, nil
}

// Run executes the poll loop until the context is cancelled. Per-tick
// failures are logged and never halt subsequent ticks.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.PollInterval())
	defer ticker.Stop()

	l.logger.Info("decision loop started",
		"poll_interval", l.cfg.PollInterval(), "enabled", l.Enabled())

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("decision loop stopped")
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick runs one evaluation with panic isolation.
func (l *Loop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("decision tick panicked", "panic", r)
		}
	}()
	l.Evaluate(ctx)
}

// Evaluate runs one decision cycle. Precondition skips are logged but not
// persisted; every evaluated outcome, including "no action", becomes a
// Decision record.
func (l *Loop) Evaluate(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		l.logger.Debug("decision skipped", "reason", "auto_irrigation_disabled")
		return
	}
	if l.pump.IsOn() {
		l.logger.Debug("decision skipped", "reason", "pump_already_on")
		return
	}

	now := l.now().UTC()
	if since := now.Sub(l.lastDecision); since < l.cfg.MinDecisionInterval() {
		l.logger.Debug("decision skipped",
			"reason", "decision_interval_not_met",
			"remaining_seconds", (l.cfg.MinDecisionInterval() - since).Seconds())
		return
	}

	snap := l.snapshot(ctx, now)
	if snap.Moisture == nil || now.Sub(snap.ReadingAt) > l.cfg.MaxReadingAge() {
		l.logger.Warn("decision skipped", "reason", "no_soil_moisture_data")
		return
	}

	rec, analysis := evaluate(l.cfg, snap)
	rec = l.arbitrateLocked(rec, now)

	decision := Decision{
		Timestamp:   now,
		NeedsWater:  rec.NeedsWater,
		Urgency:     rec.Urgency,
		Reason:      rec.Reason,
		WaterAmount: rec.WaterAmount,
		Analysis:    analysis,
		ActionTaken: ActionNone,
	}

	action := "none"
	if rec.NeedsWater {
		decision.ActionTaken = ActionIrrigate
		duration := durationFor(l.cfg, rec.WaterAmount)

		result, err := l.pump.TurnOn(ctx, duration, pump.SourceAuto, rec.Reason)
		switch {
		case err != nil:
			action = "failed"
			l.logger.Error("autonomous activation failed", "error", err)
		case !result.Changed:
			action = "refused"
			l.logger.Info("autonomous activation refused",
				"reason", result.Reason, "remaining_seconds", result.RemainingSeconds)
		default:
			action = "irrigate"
			decision.ActionSuccess = true
			l.logger.Info("autonomous irrigation started",
				"amount", rec.WaterAmount, "duration_seconds", duration.Seconds(),
				"urgency", rec.Urgency)
		}
	}

	l.lastDecision = now
	l.persist(ctx, &decision)
	metrics.Decisions.WithLabelValues(action).Inc()
}

// arbitrateLocked applies any queued external recommendation. The external
// source wins whenever its confidence clears the configured bar,
// irrespective of the rule outcome; it overrides needs_water and
// water_amount and appends to the reason. The queued recommendation is
// consumed either way.
func (l *Loop) arbitrateLocked(rec Recommendation, now time.Time) Recommendation {
	if l.queued == nil {
		return rec
	}
	queued := l.queued
	l.queued = nil

	if queued.rec.Confidence < l.cfg.MinConfidence {
		l.logger.Info("external recommendation below confidence bar",
			"source", queued.source, "confidence", queued.rec.Confidence,
			"min_confidence", l.cfg.MinConfidence)
		return rec
	}

	rec.NeedsWater = queued.rec.ShouldIrrigate
	if queued.rec.ShouldIrrigate {
		rec.WaterAmount = amountFromMinutes(queued.rec.DurationMinutes)
		if rec.Urgency == UrgencyNone {
			rec.Urgency = UrgencyMedium
		}
	} else {
		rec.WaterAmount = AmountNone
	}
	rec.Reason += fmt.Sprintf("; %s (confidence %.2f): %s",
		queued.source, queued.rec.Confidence, queued.rec.Reason)

	l.logger.Info("external recommendation applied",
		"source", queued.source, "confidence", queued.rec.Confidence,
		"should_irrigate", queued.rec.ShouldIrrigate)
	return rec
}

// Queue stores an external recommendation for the next tick, replacing
// any earlier one still pending.
func (l *Loop) Queue(source string, rec AIRecommendation, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.queued != nil {
		l.logger.Debug("replacing pending recommendation", "previous_source", l.queued.source)
	}
	l.queued = &queuedRecommendation{rec: rec, source: source, received: at}
}

// snapshot reads the environment: cache first, collecting fresh gateway
// data when the cached snapshot is stale or missing.
func (l *Loop) snapshot(ctx context.Context, now time.Time) Snapshot {
	if l.cache != nil {
		if data, err := l.cache.Get(ctx, cacheKeySnapshot); err == nil {
			var snap Snapshot
			if err := json.Unmarshal([]byte(data), &snap); err == nil &&
				now.Sub(snap.ReadingAt) <= l.cfg.MaxReadingAge() {
				return snap
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			l.logger.Warn("snapshot cache read failed", "error", err)
		}
	}

	snap := Snapshot{ReadingAt: now}
	var moistureAt time.Time
	snap.Moisture, moistureAt = l.readSensor(ctx, l.feeds.Moisture, now)
	snap.Temperature, _ = l.readSensor(ctx, l.feeds.Temperature, now)
	snap.Humidity, _ = l.readSensor(ctx, l.feeds.Humidity, now)
	if snap.Moisture != nil {
		snap.ReadingAt = moistureAt
	}

	if snap.Moisture != nil && l.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			if err := l.cache.Set(ctx, cacheKeySnapshot, string(data), l.cfg.MaxReadingAge()); err != nil {
				l.logger.Warn("failed to cache snapshot", "error", err)
			}
		}
	}
	return snap
}

// readSensor fetches and parses one sensor feed, returning the value and
// the time the reading was taken. The reading's own timestamp is used so
// a dead sensor's last value ages out; now is the fallback when the
// provider omits it. Returns nil when the feed has no data, the read
// fails, or the value is not numeric.
func (l *Loop) readSensor(ctx context.Context, feedKey string, now time.Time) (*float64, time.Time) {
	if feedKey == "" {
		return nil, time.Time{}
	}
	reading, err := l.gateway.Latest(ctx, feedKey)
	if err != nil {
		l.logger.Warn("sensor read failed", "feed", feedKey, "error", err)
		return nil, time.Time{}
	}
	if reading == nil {
		return nil, time.Time{}
	}
	value, err := strconv.ParseFloat(reading.Value, 64)
	if err != nil {
		l.logger.Warn("non-numeric sensor value", "feed", feedKey, "value", reading.Value)
		return nil, time.Time{}
	}
	at := reading.CreatedAt.UTC()
	if reading.CreatedAt.IsZero() {
		at = now
	}
	if l.telemetry != nil {
		l.telemetry.WriteReading(feedKey, value, at)
	}
	return &value, at
}

// persist writes the decision to SQLite, the cache list, and telemetry.
func (l *Loop) persist(ctx context.Context, d *Decision) {
	if err := l.store.Append(ctx, d); err != nil {
		l.logger.Error("failed to persist decision", "error", err)
	} else if l.cache != nil {
		if data, err := json.Marshal(d); err == nil {
			if err := l.cache.PushRecent(ctx, cacheKeyDecisions, string(data), recentDecisionsMax); err != nil {
				l.logger.Warn("failed to mirror decision to cache", "error", err)
			}
		}
	}
	if l.telemetry != nil {
		l.telemetry.WriteDecision(d.NeedsWater, d.Urgency, d.WaterAmount, d.ActionTaken, d.Timestamp)
	}
}

// Enabled reports whether autonomous irrigation is on.
func (l *Loop) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// SetEnabled toggles autonomous irrigation.
func (l *Loop) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
	l.logger.Info("auto irrigation toggled", "enabled", enabled)
}

// Config returns the loop's current configuration.
func (l *Loop) Config() config.DecisionConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// SetConfig replaces the loop's thresholds and durations. The poll
// interval is fixed at construction and ignored here.
func (l *Loop) SetConfig(cfg config.DecisionConfig) error {
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence must be in [0, 1]", ErrInvalidConfig)
	}
	if cfg.DurationLight <= 0 || cfg.DurationModerate <= 0 || cfg.DurationHeavy <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	cfg.PollIntervalSeconds = l.cfg.PollIntervalSeconds
	l.cfg = cfg
	l.logger.Info("decision config updated")
	return nil
}
