package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
)

// Minute thresholds mapping an externally recommended duration to a water
// amount class.
const (
	heavyMinutes    = 15
	moderateMinutes = 5
)

// criticalMoistureFactor scales the moisture threshold down to the point
// where irrigation becomes urgent rather than merely due.
const criticalMoistureFactor = 0.8

// evaluate runs the per-sensor rules against a snapshot and combines them
// into a base recommendation. Moisture drives needs_water; temperature and
// humidity contribute risk context to the reason.
func evaluate(cfg config.DecisionConfig, snap Snapshot) (Recommendation, Analysis) {
	var (
		analysis Analysis
		reasons  []string
	)

	rec := Recommendation{Urgency: UrgencyNone, WaterAmount: AmountNone}

	if snap.Moisture != nil {
		m := analyzeMoisture(*snap.Moisture, cfg.MoistureMin)
		analysis.Moisture = &m
		reasons = append(reasons, m.Detail)

		switch m.Risk {
		case RiskExtreme:
			rec.NeedsWater = true
			rec.Urgency = UrgencyHigh
			rec.WaterAmount = AmountHeavy
		case RiskHigh:
			rec.NeedsWater = true
			rec.Urgency = UrgencyMedium
			rec.WaterAmount = AmountModerate
		}
	}

	if snap.Temperature != nil {
		t := analyzeTemperature(*snap.Temperature, cfg.TemperatureMax)
		analysis.Temperature = &t
		if t.Risk != RiskLow {
			reasons = append(reasons, t.Detail)
		}
	}

	if snap.Humidity != nil {
		h := analyzeHumidity(*snap.Humidity, cfg.HumidityMin)
		analysis.Humidity = &h
		if h.Risk != RiskLow {
			reasons = append(reasons, h.Detail)
		}
	}

	rec.Reason = strings.Join(reasons, "; ")
	return rec, analysis
}

// analyzeMoisture classifies a soil moisture percentage against the
// configured minimum.
func analyzeMoisture(value, min float64) SensorAnalysis {
	switch {
	case value < min*criticalMoistureFactor:
		return SensorAnalysis{
			Value:          value,
			Risk:           RiskExtreme,
			Recommendation: RecommendWaterImmediately,
			Detail:         fmt.Sprintf("soil moisture %.1f%% critically below minimum %.1f%%", value, min),
		}
	case value < min:
		return SensorAnalysis{
			Value:          value,
			Risk:           RiskHigh,
			Recommendation: RecommendWaterSoon,
			Detail:         fmt.Sprintf("soil moisture %.1f%% below minimum %.1f%%", value, min),
		}
	case value < min*1.5:
		return SensorAnalysis{
			Value:          value,
			Risk:           RiskModerate,
			Recommendation: RecommendMonitor,
			Detail:         fmt.Sprintf("soil moisture %.1f%% approaching minimum %.1f%%", value, min),
		}
	default:
		return SensorAnalysis{
			Value:          value,
			Risk:           RiskLow,
			Recommendation: RecommendNone,
			Detail:         fmt.Sprintf("soil moisture %.1f%% adequate", value),
		}
	}
}

// analyzeTemperature flags evaporation pressure above the configured max.
func analyzeTemperature(value, max float64) SensorAnalysis {
	if value > max {
		return SensorAnalysis{
			Value:          value,
			Risk:           RiskHigh,
			Recommendation: RecommendMonitor,
			Detail:         fmt.Sprintf("temperature %.1f°C above %.1f°C, elevated evaporation", value, max),
		}
	}
	return SensorAnalysis{
		Value:          value,
		Risk:           RiskLow,
		Recommendation: RecommendNone,
		Detail:         fmt.Sprintf("temperature %.1f°C within range", value),
	}
}

// analyzeHumidity flags dry air below the configured minimum.
func analyzeHumidity(value, min float64) SensorAnalysis {
	if value < min {
		return SensorAnalysis{
			Value:          value,
			Risk:           RiskModerate,
			Recommendation: RecommendMonitor,
			Detail:         fmt.Sprintf("humidity %.1f%% below %.1f%%, dry air", value, min),
		}
	}
	return SensorAnalysis{
		Value:          value,
		Risk:           RiskLow,
		Recommendation: RecommendNone,
		Detail:         fmt.Sprintf("humidity %.1f%% within range", value),
	}
}

// amountFromMinutes maps an externally recommended duration to the water
// amount class used for the actual activation.
func amountFromMinutes(minutes float64) string {
	switch {
	case minutes >= heavyMinutes:
		return AmountHeavy
	case minutes >= moderateMinutes:
		return AmountModerate
	default:
		return AmountLight
	}
}

// durationFor maps a water amount class to its configured run duration.
func durationFor(cfg config.DecisionConfig, amount string) time.Duration {
	switch amount {
	case AmountHeavy:
		return time.Duration(cfg.DurationHeavy) * time.Second
	case AmountModerate:
		return time.Duration(cfg.DurationModerate) * time.Second
	default:
		return time.Duration(cfg.DurationLight) * time.Second
	}
}
