package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/flight_computer/internal/orientation"
)

const (
	thrustResponse = 5.0
	// gimbalGuard is the tilt at which pitch/roll input is ignored outright.
	gimbalGuard = 80.0
	// minTranslateThrust is the thrust below which sticks do not translate.
	minTranslateThrust = 5.0
	// minFlatLen rejects near-vertical body axes when flattening.
	minFlatLen = 0.1
)

func lerp(a, b, t float64) float64 {
	t = mgl64.Clamp(t, 0, 1)
	return a + (b-a)*t
}

// updateThrust moves the smoothed thrust toward the stick target.
func updateThrust(cfg *Config, s *State, dt float64) {
	sign := 1.0
	if s.Inversion.Latched {
		sign = -1
	}
	target := s.Control.Left.Y() * cfg.MaxThrustForce * sign
	s.CurrentThrust = lerp(s.CurrentThrust, target, dt*thrustResponse)
}

// canTilt gates pitch/roll torque.
func canTilt(cfg *Config, s *State) bool {
	if s.Regime == RegimeEmergencyRecovery && s.TiltDeg > cfg.RecoveryThreshold*0.5 {
		return false
	}
	return s.TiltDeg < gimbalGuard
}

// mix emits thrust, yaw, pitch/roll and horizontal translation.
func mix(cfg *Config, s *State, body Body, cmd *Command) {
	q := body.Orientation()

	// Vertical thrust with gravity compensation.
	gravityCompensation := cfg.Gravity * body.Mass()
	cmd.addForce(PartThrust, orientation.WorldUp.Mul(s.CurrentThrust+gravityCompensation))

	// Yaw about world up.
	if yaw := s.Control.Left.X() * cfg.YawForce; yaw != 0 {
		cmd.addTorque(PartYaw, orientation.WorldUp.Mul(yaw))
	}

	// Pitch and roll about the body axes.
	pitch := s.Control.Right.Y() * cfg.TiltForce
	roll := -s.Control.Right.X() * cfg.TiltForce
	if s.Inversion.Latched {
		pitch, roll = -pitch, -roll
	}
	if s.TiltDeg > cfg.RecoveryThreshold*0.7 {
		pitch *= cfg.UserOverrideStrength
		roll *= cfg.UserOverrideStrength
	}
	if canTilt(cfg, s) && (pitch != 0 || roll != 0) {
		cmd.addTorque(PartTilt, orientation.Right(q).Mul(pitch).Add(orientation.Forward(q).Mul(roll)))
	}

	translate(cfg, s, q, cmd)
}

// translate turns right-stick deflection into a horizontal velocity change.
func translate(cfg *Config, s *State, q mgl64.Quat, cmd *Command) {
	x, y := s.Control.Right.X(), s.Control.Right.Y()
	if (math.Abs(y) <= Deadzone && math.Abs(x) <= Deadzone) || s.CurrentThrust <= minTranslateThrust {
		return
	}

	var dir mgl64.Vec3
	if math.Abs(y) > Deadzone {
		if fwd, ok := orientation.Flatten(orientation.Forward(q), minFlatLen); ok {
			dir = dir.Add(fwd.Mul(y))
		}
	}
	if math.Abs(x) > Deadzone {
		if right, ok := orientation.Flatten(orientation.Right(q), minFlatLen); ok {
			dir = dir.Add(right.Mul(x))
		}
	}
	if dir.Len() <= minFlatLen {
		return
	}

	power := cfg.MovementSpeed * (s.CurrentThrust / cfg.MaxThrustForce)
	cmd.VelocityChange = dir.Normalize().Mul(power * 0.5)
}
