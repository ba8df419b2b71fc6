package flight

// Regime is the top-level control regime.
type Regime int

const (
	RegimeManual Regime = iota
	RegimeAutoLevel
	RegimeEmergencyRecovery
)

func (r Regime) String() string {
	switch r {
	case RegimeManual:
		return "manual"
	case RegimeAutoLevel:
		return "auto_level"
	case RegimeEmergencyRecovery:
		return "emergency_recovery"
	}
	return "unknown"
}

// RecoveryMode specializes RegimeEmergencyRecovery.
type RecoveryMode int

const (
	RecoveryNone RecoveryMode = iota
	RecoveryUpright
	RecoveryInverted
)

func (m RecoveryMode) String() string {
	switch m {
	case RecoveryUpright:
		return "upright"
	case RecoveryInverted:
		return "inverted"
	}
	return "none"
}

// levelTilt is the tilt below which emergency recovery hands back to
// auto-level.
const levelTilt = 5.0

// RegimeInputs are the per-tick observations the regime machine runs on:
// controlling, tilt, inverted latch and time without control.
type RegimeInputs struct {
	Controlling        bool
	TiltDeg            float64
	Inverted           bool
	TimeWithoutControl float64 // after this tick's accumulation

	// PrevTimeWithoutControl is prior state, the value before this tick.
	// It only marks the tick on which the no-input timeout is crossed.
	PrevTimeWithoutControl float64
}

// RegimeRules are the config-derived guards of the machine.
type RegimeRules struct {
	RecoveryEnabled   bool
	RecoveryThreshold float64
	NoInputTimeout    float64
}

// NextRegime is the regime transition function. Given the previous regime
// and the inputs it is deterministic.
//
//	any            -> Manual            while controlling
//	Manual         -> AutoLevel         on release
//	Manual/AutoLvl -> EmergencyRecovery tilt > threshold, inverted or no-input timeout
//	Emergency      -> AutoLevel         tilt < 5° and not inverted
//
// The no-input guard is timeWithoutControl > NoInputTimeout, but it fires
// only on the tick the timeout is crossed. After that it holds only while
// tilt is at least 5°. Otherwise a level vehicle would re-enter
// EmergencyRecovery on every tick after handing back to AutoLevel.
func NextRegime(prev Regime, in RegimeInputs, rules RegimeRules) Regime {
	if in.Controlling {
		return RegimeManual
	}
	if !rules.RecoveryEnabled {
		return RegimeAutoLevel
	}

	switch prev {
	case RegimeEmergencyRecovery:
		if in.TiltDeg < levelTilt && !in.Inverted {
			return RegimeAutoLevel
		}
		return RegimeEmergencyRecovery
	default:
		if emergencyTriggered(in, rules) {
			return RegimeEmergencyRecovery
		}
		return RegimeAutoLevel
	}
}

func emergencyTriggered(in RegimeInputs, rules RegimeRules) bool {
	if in.TiltDeg > rules.RecoveryThreshold || in.Inverted {
		return true
	}
	if in.TimeWithoutControl > rules.NoInputTimeout {
		crossed := in.PrevTimeWithoutControl <= rules.NoInputTimeout
		return crossed || in.TiltDeg >= levelTilt
	}
	return false
}

// ModeFor returns the recovery sub-mode for a regime.
func ModeFor(r Regime, inverted bool) RecoveryMode {
	if r != RegimeEmergencyRecovery {
		return RecoveryNone
	}
	if inverted {
		return RecoveryInverted
	}
	return RecoveryUpright
}
