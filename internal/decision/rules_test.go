package decision

import (
	"testing"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
)

func testDecisionConfig() config.DecisionConfig {
	return config.DecisionConfig{
		Enabled:                true,
		PollIntervalSeconds:    60,
		MinDecisionIntervalSec: 300,
		MaxReadingAgeSeconds:   600,
		MinConfidence:          0.7,
		MoistureMin:            20,
		TemperatureMax:         32,
		HumidityMin:            40,
		DurationLight:          120,
		DurationModerate:       300,
		DurationHeavy:          600,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestAnalyzeMoisture(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		wantRisk string
		wantRec  string
	}{
		{"critically dry", 15, RiskExtreme, RecommendWaterImmediately},
		{"just under critical bound", 15.9, RiskExtreme, RecommendWaterImmediately},
		{"below minimum", 18, RiskHigh, RecommendWaterSoon},
		{"approaching minimum", 25, RiskModerate, RecommendMonitor},
		{"adequate", 35, RiskLow, RecommendNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzeMoisture(tt.value, 20)
			if got.Risk != tt.wantRisk {
				t.Errorf("Risk = %q, want %q", got.Risk, tt.wantRisk)
			}
			if got.Recommendation != tt.wantRec {
				t.Errorf("Recommendation = %q, want %q", got.Recommendation, tt.wantRec)
			}
		})
	}
}

func TestEvaluateCriticallyDrySoil(t *testing.T) {
	rec, analysis := evaluate(testDecisionConfig(), Snapshot{Moisture: floatPtr(15)})

	if !rec.NeedsWater {
		t.Error("NeedsWater = false, want true")
	}
	if rec.Urgency != UrgencyHigh {
		t.Errorf("Urgency = %q, want high", rec.Urgency)
	}
	if rec.WaterAmount != AmountHeavy {
		t.Errorf("WaterAmount = %q, want heavy", rec.WaterAmount)
	}
	if analysis.Moisture == nil || analysis.Moisture.Risk != RiskExtreme {
		t.Errorf("moisture analysis = %+v, want extreme risk", analysis.Moisture)
	}
	if analysis.Moisture.Recommendation != RecommendWaterImmediately {
		t.Errorf("moisture recommendation = %q, want water_immediately",
			analysis.Moisture.Recommendation)
	}
}

func TestEvaluateBelowMinimum(t *testing.T) {
	rec, _ := evaluate(testDecisionConfig(), Snapshot{Moisture: floatPtr(18)})

	if !rec.NeedsWater {
		t.Error("NeedsWater = false, want true")
	}
	if rec.Urgency != UrgencyMedium {
		t.Errorf("Urgency = %q, want medium", rec.Urgency)
	}
	if rec.WaterAmount != AmountModerate {
		t.Errorf("WaterAmount = %q, want moderate", rec.WaterAmount)
	}
}

func TestEvaluateAdequateMoisture(t *testing.T) {
	rec, _ := evaluate(testDecisionConfig(), Snapshot{
		Moisture:    floatPtr(45),
		Temperature: floatPtr(25),
		Humidity:    floatPtr(55),
	})

	if rec.NeedsWater {
		t.Error("NeedsWater = true, want false")
	}
	if rec.Urgency != UrgencyNone || rec.WaterAmount != AmountNone {
		t.Errorf("rec = %+v, want no action", rec)
	}
}

func TestEvaluateContextSensorsAddReasons(t *testing.T) {
	rec, analysis := evaluate(testDecisionConfig(), Snapshot{
		Moisture:    floatPtr(18),
		Temperature: floatPtr(35), // above max
		Humidity:    floatPtr(30), // below min
	})

	if analysis.Temperature == nil || analysis.Temperature.Risk != RiskHigh {
		t.Errorf("temperature analysis = %+v, want high risk", analysis.Temperature)
	}
	if analysis.Humidity == nil || analysis.Humidity.Risk != RiskModerate {
		t.Errorf("humidity analysis = %+v, want moderate risk", analysis.Humidity)
	}
	// Temperature and humidity context never flips needs_water on their own.
	if rec.WaterAmount != AmountModerate {
		t.Errorf("WaterAmount = %q, want moderate from moisture rule", rec.WaterAmount)
	}
}

func TestAmountFromMinutes(t *testing.T) {
	tests := []struct {
		minutes float64
		want    string
	}{
		{20, AmountHeavy},
		{15, AmountHeavy},
		{10, AmountModerate},
		{5, AmountModerate},
		{3, AmountLight},
		{0, AmountLight},
	}

	for _, tt := range tests {
		if got := amountFromMinutes(tt.minutes); got != tt.want {
			t.Errorf("amountFromMinutes(%v) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestDurationFor(t *testing.T) {
	cfg := testDecisionConfig()
	if got := durationFor(cfg, AmountHeavy).Seconds(); got != 600 {
		t.Errorf("heavy duration = %v, want 600", got)
	}
	if got := durationFor(cfg, AmountModerate).Seconds(); got != 300 {
		t.Errorf("moderate duration = %v, want 300", got)
	}
	if got := durationFor(cfg, AmountLight).Seconds(); got != 120 {
		t.Errorf("light duration = %v, want 120", got)
	}
}
