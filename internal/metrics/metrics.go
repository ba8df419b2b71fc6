package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relabs-tech/flight_computer/internal/flight"
)

// Controller, stick link and telemetry metrics.

var (
	// Controller
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flight",
		Subsystem: "controller",
		Name:      "ticks_total",
		Help:      "Total physics ticks run",
	})

	TickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flight",
		Subsystem: "controller",
		Name:      "tick_duration_seconds",
		Help:      "Wall time of one sample+step+integrate cycle",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	RegimeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flight",
		Subsystem: "controller",
		Name:      "regime_transitions_total",
		Help:      "Regime changes by source and destination regime",
	}, []string{"from", "to"})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flight",
		Subsystem: "controller",
		Name:      "events_total",
		Help:      "Controller events by kind",
	}, []string{"kind"})

	CurrentRegime = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "flight",
		Subsystem: "controller",
		Name:      "regime",
		Help:      "1 for the active regime, 0 otherwise",
	}, []string{"regime"})

	TiltDegrees = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flight",
		Subsystem: "controller",
		Name:      "tilt_degrees",
		Help:      "Angle between the vehicle and its level target",
	})

	Thrust = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flight",
		Subsystem: "controller",
		Name:      "thrust",
		Help:      "Smoothed thrust command, gravity compensation excluded",
	})

	Inverted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flight",
		Subsystem: "controller",
		Name:      "inverted",
		Help:      "1 while the inversion latch is set",
	})

	// Stick link
	StickFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flight",
		Subsystem: "link",
		Name:      "stick_frames_total",
		Help:      "Stick frames decoded",
	}, []string{"source"})

	StickErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flight",
		Subsystem: "link",
		Name:      "stick_errors_total",
		Help:      "Stick lines that failed to decode",
	}, []string{"source"})

	StickStale = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flight",
		Subsystem: "link",
		Name:      "stale_reads_total",
		Help:      "Ticks that found no fresh stick frame",
	})

	// Telemetry
	TelemetryPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flight",
		Subsystem: "telemetry",
		Name:      "published_total",
		Help:      "Messages handed to the broker by type",
	}, []string{"type"})

	TelemetryDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flight",
		Subsystem: "telemetry",
		Name:      "dropped_total",
		Help:      "Messages dropped by type and reason",
	}, []string{"type", "reason"})
)

var regimes = []flight.Regime{flight.RegimeManual, flight.RegimeAutoLevel, flight.RegimeEmergencyRecovery}

// ObserveState records the per-tick controller gauges.
func ObserveState(s flight.State) {
	TicksTotal.Inc()
	TiltDegrees.Set(s.TiltDeg)
	Thrust.Set(s.CurrentThrust)
	if s.Inversion.Latched {
		Inverted.Set(1)
	} else {
		Inverted.Set(0)
	}
	for _, r := range regimes {
		v := 0.0
		if r == s.Regime {
			v = 1
		}
		CurrentRegime.WithLabelValues(r.String()).Set(v)
	}
}

// EventSink counts controller events.
type EventSink struct{}

func (EventSink) Emit(e flight.Event) {
	Events.WithLabelValues(string(e.Kind)).Inc()
	if e.Kind == flight.EventRegimeChanged {
		RegimeTransitions.WithLabelValues(e.From.String(), e.To.String()).Inc()
	}
}
