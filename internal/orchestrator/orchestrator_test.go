package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verdant-labs/greenhouse-core/internal/decision"
	"github.com/verdant-labs/greenhouse-core/internal/pump"
)

// fakePump records calls.
type fakePump struct {
	on       bool
	turnOns  []time.Duration
	turnOffs []string // details
}

func (f *fakePump) IsOn() bool { return f.on }

func (f *fakePump) TurnOn(ctx context.Context, duration time.Duration, source, details string) (pump.Result, error) {
	f.on = true
	f.turnOns = append(f.turnOns, duration)
	return pump.Result{Changed: true, DurationSeconds: duration.Seconds()}, nil
}

func (f *fakePump) TurnOff(ctx context.Context, source, details string) (pump.Result, error) {
	f.on = false
	f.turnOffs = append(f.turnOffs, details)
	return pump.Result{Changed: true}, nil
}

// fakeLoop blocks in Run until cancelled and records queued recommendations.
type fakeLoop struct {
	ran    chan struct{}
	queued []string
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{ran: make(chan struct{}, 1)}
}

func (f *fakeLoop) Run(ctx context.Context) {
	f.ran <- struct{}{}
	<-ctx.Done()
}

func (f *fakeLoop) Queue(source string, rec decision.AIRecommendation, at time.Time) {
	f.queued = append(f.queued, source)
}

func TestStartStopLifecycle(t *testing.T) {
	pumpCtrl := &fakePump{}
	sched := newFakeLoop()
	loop := newFakeLoop()
	orch := New(pumpCtrl, sched, loop, nil)

	statuses := orch.Start(context.Background())
	for _, s := range statuses {
		if !s.OK {
			t.Errorf("component %s not started: %s", s.Component, s.Detail)
		}
	}

	// Both loops actually running.
	select {
	case <-sched.ran:
	case <-time.After(time.Second):
		t.Fatal("scheduler loop never ran")
	}
	select {
	case <-loop.ran:
	case <-time.After(time.Second):
		t.Fatal("decision loop never ran")
	}

	statuses = orch.Stop(context.Background())
	for _, s := range statuses {
		if !s.OK {
			t.Errorf("component %s did not stop cleanly: %s", s.Component, s.Detail)
		}
	}
}

func TestStopForcesPumpOff(t *testing.T) {
	pumpCtrl := &fakePump{}
	orch := New(pumpCtrl, newFakeLoop(), newFakeLoop(), nil)

	orch.Start(context.Background())
	pumpCtrl.on = true

	orch.Stop(context.Background())
	if pumpCtrl.on {
		t.Error("pump still on after Stop")
	}
	if len(pumpCtrl.turnOffs) != 1 || pumpCtrl.turnOffs[0] != "shutdown" {
		t.Errorf("turnOffs = %v, want one shutdown stop", pumpCtrl.turnOffs)
	}
}

func TestStartTwiceReportsFailure(t *testing.T) {
	orch := New(&fakePump{}, newFakeLoop(), newFakeLoop(), nil)
	ctx := context.Background()

	orch.Start(ctx)
	defer orch.Stop(ctx)

	statuses := orch.Start(ctx)
	for _, s := range statuses {
		if s.OK {
			t.Errorf("component %s reported started on second Start", s.Component)
		}
	}
}

func TestStartWithoutDecisionLoop(t *testing.T) {
	orch := New(&fakePump{}, newFakeLoop(), nil, nil)
	ctx := context.Background()

	statuses := orch.Start(ctx)
	defer orch.Stop(ctx)

	var decisionStatus *ComponentStatus
	for i := range statuses {
		if statuses[i].Component == "decision" {
			decisionStatus = &statuses[i]
		}
	}
	if decisionStatus == nil || decisionStatus.OK {
		t.Errorf("decision status = %+v, want not-started", decisionStatus)
	}
}

func TestIngestValidation(t *testing.T) {
	orch := New(&fakePump{}, newFakeLoop(), newFakeLoop(), nil)
	ctx := context.Background()
	rec := decision.AIRecommendation{ShouldIrrigate: true, DurationMinutes: 10, Confidence: 0.9}

	if err := orch.IngestRecommendation(ctx, "random_bot", "normal", rec, time.Now()); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("unknown source error = %v, want ErrInvalidSource", err)
	}
	if err := orch.IngestRecommendation(ctx, "ai_assistant", "urgent", rec, time.Now()); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("unknown priority error = %v, want ErrInvalidPriority", err)
	}
}

func TestIngestQueuesNormalPriority(t *testing.T) {
	loop := newFakeLoop()
	pumpCtrl := &fakePump{}
	orch := New(pumpCtrl, newFakeLoop(), loop, nil)

	rec := decision.AIRecommendation{ShouldIrrigate: true, DurationMinutes: 10, Confidence: 0.9}
	if err := orch.IngestRecommendation(context.Background(), "ml_pipeline", "normal", rec, time.Now()); err != nil {
		t.Fatalf("IngestRecommendation() error = %v", err)
	}

	if len(loop.queued) != 1 || loop.queued[0] != "ml_pipeline" {
		t.Errorf("queued = %v, want one ml_pipeline entry", loop.queued)
	}
	if len(pumpCtrl.turnOns) != 0 {
		t.Error("normal priority acted immediately")
	}
}

func TestIngestHighPriorityActsImmediately(t *testing.T) {
	loop := newFakeLoop()
	pumpCtrl := &fakePump{}
	orch := New(pumpCtrl, newFakeLoop(), loop, nil)

	rec := decision.AIRecommendation{ShouldIrrigate: true, DurationMinutes: 10, Confidence: 0.9}
	if err := orch.IngestRecommendation(context.Background(), "ai_assistant", "high", rec, time.Now()); err != nil {
		t.Fatalf("IngestRecommendation() error = %v", err)
	}

	if len(pumpCtrl.turnOns) != 1 {
		t.Fatalf("activations = %d, want 1", len(pumpCtrl.turnOns))
	}
	if pumpCtrl.turnOns[0] != 10*time.Minute {
		t.Errorf("duration = %v, want 10m", pumpCtrl.turnOns[0])
	}
	if len(loop.queued) != 0 {
		t.Error("high priority also queued")
	}
}

func TestIngestHighPriorityStop(t *testing.T) {
	pumpCtrl := &fakePump{on: true}
	orch := New(pumpCtrl, newFakeLoop(), newFakeLoop(), nil)

	rec := decision.AIRecommendation{ShouldIrrigate: false, Reason: "storm inbound", Confidence: 0.9}
	if err := orch.IngestRecommendation(context.Background(), "ai_assistant", "high", rec, time.Now()); err != nil {
		t.Fatalf("IngestRecommendation() error = %v", err)
	}
	if pumpCtrl.on {
		t.Error("pump still on after high-priority stop")
	}
}

func TestIngestHighPriorityRejectsZeroDuration(t *testing.T) {
	orch := New(&fakePump{}, newFakeLoop(), newFakeLoop(), nil)

	rec := decision.AIRecommendation{ShouldIrrigate: true, Confidence: 0.9}
	err := orch.IngestRecommendation(context.Background(), "chat", "high", rec, time.Now())
	if !errors.Is(err, ErrInvalidRecommendation) {
		t.Errorf("error = %v, want ErrInvalidRecommendation", err)
	}
}
