package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/verdant-labs/greenhouse-core/internal/decision"
	"github.com/verdant-labs/greenhouse-core/internal/pump"
)

// Recommendation sources accepted by IngestRecommendation.
var allowedSources = map[string]bool{
	"ai_assistant": true,
	"ml_pipeline":  true,
	"chat":         true,
}

// Recommendation priorities accepted by IngestRecommendation.
var allowedPriorities = map[string]bool{
	"low":    true,
	"normal": true,
	"high":   true,
}

// PriorityHigh acts immediately through the pump controller instead of
// queueing for the next decision tick.
const PriorityHigh = "high"

// Logger is the minimal logging interface the orchestrator needs.
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

// PumpController is the slice of the pump controller the orchestrator uses.
type PumpController interface {
	IsOn() bool
	TurnOn(ctx context.Context, duration time.Duration, source, details string) (pump.Result, error)
	TurnOff(ctx context.Context, source, details string) (pump.Result, error)
}

// Runner is a background loop with cooperative cancellation.
type Runner interface {
	Run(ctx context.Context)
}

// DecisionLoop is the slice of the decision loop the orchestrator uses.
type DecisionLoop interface {
	Runner
	Queue(source string, rec decision.AIRecommendation, at time.Time)
}

// ComponentStatus reports one component's start/stop outcome.
type ComponentStatus struct {
	Component string `json:"component"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
}

// Orchestrator composes the pump controller and the two background loops
// and owns their lifecycle.
type Orchestrator struct {
	mu sync.Mutex

	pump      PumpController
	scheduler Runner
	decision  DecisionLoop
	logger    Logger

	cancel  context.CancelFunc
	done    sync.WaitGroup
	running bool
}

// New creates the orchestrator. The scheduler and decision loop may be
// nil when their feature is not configured; Start reports them as not
// started.
func New(pumpCtrl PumpController, sched Runner, loop DecisionLoop, logger Logger) *Orchestrator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Orchestrator{
		pump:      pumpCtrl,
		scheduler: sched,
		decision:  loop,
		logger:    logger,
	}
}

// Start launches the background loops, each on its own goroutine.
// Returns per-component outcomes so a partial start is visible.
func (o *Orchestrator) Start(ctx context.Context) []ComponentStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return []ComponentStatus{
			{Component: "scheduler", OK: false, Detail: "already running"},
			{Component: "decision", OK: false, Detail: "already running"},
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true

	var statuses []ComponentStatus

	if o.scheduler != nil {
		o.done.Add(1)
		go func() {
			defer o.done.Done()
			o.scheduler.Run(loopCtx)
		}()
		statuses = append(statuses, ComponentStatus{Component: "scheduler", OK: true})
	} else {
		statuses = append(statuses, ComponentStatus{Component: "scheduler", OK: false, Detail: "not configured"})
	}

	if o.decision != nil {
		o.done.Add(1)
		go func() {
			defer o.done.Done()
			o.decision.Run(loopCtx)
		}()
		statuses = append(statuses, ComponentStatus{Component: "decision", OK: true})
	} else {
		statuses = append(statuses, ComponentStatus{Component: "decision", OK: false, Detail: "not configured"})
	}

	o.logger.Info("orchestrator started")
	return statuses
}

// Stop cancels both loops, waits for them to exit, and defensively forces
// the pump off if still running. Returns per-component outcomes.
func (o *Orchestrator) Stop(ctx context.Context) []ComponentStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return []ComponentStatus{{Component: "orchestrator", OK: false, Detail: "not running"}}
	}

	o.cancel()
	o.done.Wait()
	o.running = false

	statuses := []ComponentStatus{
		{Component: "scheduler", OK: true},
		{Component: "decision", OK: true},
	}

	// Never leave the pump running unattended.
	pumpStatus := ComponentStatus{Component: "pump", OK: true}
	if o.pump.IsOn() {
		o.logger.Warn("pump still on at shutdown, forcing off")
		if _, err := o.pump.TurnOff(ctx, pump.SourceManual, "shutdown"); err != nil {
			pumpStatus.OK = false
			pumpStatus.Detail = err.Error()
			o.logger.Error("failed to force pump off at shutdown", "error", err)
		}
	}
	statuses = append(statuses, pumpStatus)

	o.logger.Info("orchestrator stopped")
	return statuses
}

// IngestRecommendation accepts an external irrigation recommendation.
//
// Source and priority are validated against allow-lists. High priority
// acts immediately through the pump controller; lower priorities queue
// for the next decision tick.
func (o *Orchestrator) IngestRecommendation(ctx context.Context, source, priority string, rec decision.AIRecommendation, at time.Time) error {
	if !allowedSources[source] {
		return fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	if !allowedPriorities[priority] {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	if priority != PriorityHigh {
		if o.decision == nil {
			return ErrDecisionLoopDisabled
		}
		o.decision.Queue(source, rec, at)
		o.logger.Info("recommendation queued",
			"source", source, "priority", priority, "confidence", rec.Confidence)
		return nil
	}

	// High priority: act now, bypassing the decision loop.
	if !rec.ShouldIrrigate {
		result, err := o.pump.TurnOff(ctx, pump.SourceAuto, source+": "+rec.Reason)
		if err != nil {
			return fmt.Errorf("executing high-priority stop: %w", err)
		}
		o.logger.Info("high-priority stop executed",
			"source", source, "changed", result.Changed, "reason", result.Reason)
		return nil
	}

	if rec.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidRecommendation)
	}

	duration := time.Duration(rec.DurationMinutes * float64(time.Minute))
	result, err := o.pump.TurnOn(ctx, duration, pump.SourceAuto, source+": "+rec.Reason)
	if err != nil {
		return fmt.Errorf("executing high-priority activation: %w", err)
	}
	if !result.Changed {
		o.logger.Info("high-priority activation refused",
			"source", source, "reason", result.Reason,
			"remaining_seconds", result.RemainingSeconds)
	} else {
		o.logger.Info("high-priority activation executed",
			"source", source, "duration_seconds", result.DurationSeconds)
	}
	return nil
}
