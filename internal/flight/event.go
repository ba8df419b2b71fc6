package flight

import (
	"context"
	"log/slog"
)

// EventKind names a controller state change.
type EventKind string

const (
	EventRegimeChanged    EventKind = "regime_changed"
	EventInversionLatched EventKind = "inversion_latched"
	EventInversionCleared EventKind = "inversion_cleared"
	EventTargetFlipped    EventKind = "target_flipped"
	EventReset            EventKind = "reset"
	EventForcedRecovery   EventKind = "forced_recovery"
	EventEmergencyFlip    EventKind = "emergency_flip"
)

// Event is a structured record of a state change, stamped with the measured
// tilt and the controller clock.
type Event struct {
	Kind     EventKind
	From     Regime
	To       Regime
	Mode     RecoveryMode
	TiltDeg  float64
	Inverted bool
	Time     float64
}

// EventSink receives controller events. Emit is called from the tick and
// must not block.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }

// MultiSink fans an event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink writes events as slog records.
type LogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (l LogSink) Emit(e Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), l.Level, "flight: "+string(e.Kind),
		slog.String("event", string(e.Kind)),
		slog.String("from", e.From.String()),
		slog.String("to", e.To.String()),
		slog.String("mode", e.Mode.String()),
		slog.Float64("tilt_deg", e.TiltDeg),
		slog.Bool("inverted", e.Inverted),
		slog.Float64("t", e.Time),
	)
}

type discardSink struct{}

func (discardSink) Emit(Event) {}
