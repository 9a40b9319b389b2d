package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are registered on the default registry; the external API layer
// exposes them via promhttp.
var (
	// PumpActivations counts successful pump activations by trigger source.
	PumpActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenhouse",
		Subsystem: "pump",
		Name:      "activations_total",
		Help:      "Successful pump activations by trigger source.",
	}, []string{"source"})

	// PumpRefusals counts policy refusals by reason code.
	PumpRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenhouse",
		Subsystem: "pump",
		Name:      "refusals_total",
		Help:      "Pump activation refusals by reason code.",
	}, []string{"reason"})

	// IrrigationSeconds accumulates total pump runtime.
	IrrigationSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "greenhouse",
		Subsystem: "pump",
		Name:      "runtime_seconds_total",
		Help:      "Cumulative pump runtime in seconds.",
	})

	// WaterLitres accumulates total water dispensed.
	WaterLitres = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "greenhouse",
		Subsystem: "pump",
		Name:      "water_litres_total",
		Help:      "Cumulative water dispensed in litres.",
	})

	// Decisions counts decision loop outcomes by action taken.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenhouse",
		Subsystem: "decision",
		Name:      "ticks_total",
		Help:      "Decision loop outcomes by action taken.",
	}, []string{"action"})

	// GatewayPublishes counts gateway publishes by transport and outcome.
	GatewayPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenhouse",
		Subsystem: "gateway",
		Name:      "publishes_total",
		Help:      "Gateway value publishes by serving transport and outcome.",
	}, []string{"transport", "outcome"})

	// SyncDrift counts reconciliation corrections by direction.
	SyncDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greenhouse",
		Subsystem: "pump",
		Name:      "sync_drift_total",
		Help:      "State drift corrections applied by reconciliation.",
	}, []string{"direction"})
)
