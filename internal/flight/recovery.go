package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/flight_computer/internal/orientation"
)

const (
	levelDeadband     = 1.0 // degrees
	levelAngularDrag  = 1.5
	uprightDrag       = 3.0
	invertedDrag      = 4.0
	copilotShare      = 0.3
	levelGainScale    = 0.01
	flipGain          = 2.0
	flipThrustShare   = 0.3
	flipThrustRate    = 3.0
	forcedImpulseGain = 3.0
)

// stabilize damps angular rates; yaw only partially.
func stabilize(cfg *Config, body Body, cmd *Command) {
	if !cfg.AutoStabilize {
		return
	}
	w := body.AngularVelocity()
	s := cfg.StabilizationStrength
	cmd.addTorque(PartStabilize, mgl64.Vec3{
		-w.X() * s,
		-w.Y() * s * cfg.YawStabilizationMultiplier,
		-w.Z() * s,
	})
}

// levelTorque is the auto-level torque for rotating current onto target.
// It is zero inside the one degree deadband and for degenerate axes.
func levelTorque(current, target mgl64.Quat, strength, responseSpeed float64) mgl64.Vec3 {
	diff := target.Mul(current.Inverse())
	angle, axis, ok := orientation.SignedAngleAxis(diff)
	if !ok || math.Abs(angle) <= levelDeadband {
		return mgl64.Vec3{}
	}
	return axis.Mul(mgl64.DegToRad(angle) * strength * responseSpeed * levelGainScale)
}

func autoLevel(cfg *Config, s *State, body Body, cmd *Command) {
	if !cfg.AutoLevel {
		return
	}
	strength := cfg.LevelingStrength
	if s.UserControlling {
		strength *= copilotShare
	}
	cmd.setAngularDrag(levelAngularDrag)
	if t := levelTorque(body.Orientation(), s.Target, strength, cfg.LevelingResponseSpeed); t != (mgl64.Vec3{}) {
		cmd.addTorque(PartLevel, t)
	}
}

// flipTorque rights an inverted vehicle about whichever of its forward and
// right axes leans further out of the horizontal plane.
func flipTorque(q mgl64.Quat, gain float64) mgl64.Vec3 {
	fwd, right := orientation.Forward(q), orientation.Right(q)
	fwdDot := fwd.Dot(orientation.WorldUp)
	rightDot := right.Dot(orientation.WorldUp)
	if math.Abs(fwdDot) > math.Abs(rightDot) {
		return right.Mul(sign(fwdDot) * gain)
	}
	return fwd.Mul(-sign(rightDot) * gain)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func invertedRecovery(cfg *Config, s *State, body Body, dt float64, cmd *Command) {
	rs := cfg.RecoveryStrength
	cmd.addTorque(PartRecovery, flipTorque(body.Orientation(), rs*flipGain))
	cmd.addTorque(PartDamping, body.AngularVelocity().Mul(-rs))
	s.CurrentThrust = lerp(s.CurrentThrust, cfg.MaxThrustForce*flipThrustShare, dt*flipThrustRate)
	cmd.setAngularDrag(invertedDrag)
}

func uprightRecovery(cfg *Config, s *State, body Body, cmd *Command) {
	rs := cfg.RecoveryStrength
	q := body.Orientation()
	rot := orientation.FromTo(orientation.Up(q), orientation.Up(s.Target))
	if angle, axis, ok := orientation.SignedAngleAxis(rot); ok {
		cmd.addTorque(PartRecovery, axis.Mul(mgl64.DegToRad(angle)*rs))
	}
	cmd.addTorque(PartDamping, body.AngularVelocity().Mul(-rs*0.5))
	cmd.setAngularDrag(uprightDrag)
}

// correct applies the regime-specific corrective torque for this tick.
// Auto-level runs outside emergency recovery only, unless
// HoldHeadingInRecovery is set.
func correct(cfg *Config, s *State, body Body, dt float64, cmd *Command) {
	switch s.Mode {
	case RecoveryInverted:
		invertedRecovery(cfg, s, body, dt, cmd)
	case RecoveryUpright:
		if cfg.HoldHeadingInRecovery {
			autoLevel(cfg, s, body, cmd)
		}
		uprightRecovery(cfg, s, body, cmd)
	default:
		autoLevel(cfg, s, body, cmd)
	}

	if s.PendingImpulse {
		s.PendingImpulse = false
		cmd.addTorque(PartImpulse, orientation.Right(body.Orientation()).Mul(cfg.RecoveryStrength*forcedImpulseGain))
	}
}
