package decision

import "time"

// Urgency levels on a decision.
const (
	UrgencyNone   = "none"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Water amount classes; each maps to a configured duration.
const (
	AmountNone     = "none"
	AmountLight    = "light"
	AmountModerate = "moderate"
	AmountHeavy    = "heavy"
)

// Per-sensor risk levels.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
	RiskExtreme  = "extreme"
)

// Per-sensor recommendations surfaced in the analysis snapshot.
const (
	RecommendWaterImmediately = "water_immediately"
	RecommendWaterSoon        = "water_soon"
	RecommendMonitor          = "monitor"
	RecommendNone             = "no_action"
)

// Actions recorded on a decision.
const (
	ActionNone     = "none"
	ActionIrrigate = "irrigate"
)

// SensorAnalysis is the rule outcome for one sensor.
type SensorAnalysis struct {
	Value          float64 `json:"value"`
	Risk           string  `json:"risk"`
	Recommendation string  `json:"recommendation"`
	Detail         string  `json:"detail"`
}

// Analysis is the full environment snapshot a decision was based on.
// Sensors without a fresh reading are nil.
type Analysis struct {
	Moisture    *SensorAnalysis `json:"moisture,omitempty"`
	Temperature *SensorAnalysis `json:"temperature,omitempty"`
	Humidity    *SensorAnalysis `json:"humidity,omitempty"`
}

// Recommendation is the arbitrated outcome of one evaluation.
type Recommendation struct {
	NeedsWater  bool   `json:"needs_water"`
	Urgency     string `json:"urgency"`
	Reason      string `json:"reason"`
	WaterAmount string `json:"water_amount"`
}

// AIRecommendation is an externally supplied irrigation recommendation.
type AIRecommendation struct {
	ShouldIrrigate  bool     `json:"should_irrigate"`
	DurationMinutes float64  `json:"duration_minutes"`
	Reason          string   `json:"reason"`
	Confidence      float64  `json:"confidence"`
	Zones           []string `json:"zones,omitempty"`
}

// Decision is one immutable evaluated outcome, including "no action".
type Decision struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	NeedsWater    bool      `json:"needs_water"`
	Urgency       string    `json:"urgency"`
	Reason        string    `json:"reason"`
	WaterAmount   string    `json:"water_amount"`
	Analysis      Analysis  `json:"analysis"`
	ActionTaken   string    `json:"action_taken"`
	ActionSuccess bool      `json:"action_success"`
}

// Snapshot is the raw environment readings an evaluation starts from.
type Snapshot struct {
	Moisture    *float64 `json:"moisture,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`

	// ReadingAt is when the moisture reading was taken; staleness is
	// judged against it.
	ReadingAt time.Time `json:"reading_at"`
}
