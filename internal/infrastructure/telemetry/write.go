package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteReading records a single sensor reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - feed: The feed key the reading came from (e.g., "soil-moisture")
//   - value: The numeric reading
//   - at: When the reading was taken
func (c *Client) WriteReading(feed string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"feed": feed,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteDecision records the outcome of a decision loop tick.
//
// Parameters:
//   - needsWater: The arbitrated result
//   - urgency: none, medium, or high
//   - waterAmount: light, moderate, or heavy
//   - actionTaken: What the loop did (e.g., "irrigated", "none")
func (c *Client) WriteDecision(needsWater bool, urgency, waterAmount, actionTaken string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"decisions",
		map[string]string{
			"urgency":      urgency,
			"water_amount": waterAmount,
			"action":       actionTaken,
		},
		map[string]interface{}{
			"needs_water": needsWater,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteIrrigationEvent records a completed irrigation run.
//
// Parameters:
//   - source: The trigger source (manual, schedule, auto, sync)
//   - durationSeconds: How long the pump ran
//   - waterVolume: Litres dispensed
//   - startedAt: When the run started
func (c *Client) WriteIrrigationEvent(source string, durationSeconds, waterVolume float64, startedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"irrigation_events",
		map[string]string{
			"source": source,
		},
		map[string]interface{}{
			"duration_seconds": durationSeconds,
			"water_volume":     waterVolume,
		},
		startedAt,
	)

	c.writeAPI.WritePoint(point)
}
