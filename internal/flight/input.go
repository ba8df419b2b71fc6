package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Deadzone is the stick deflection below which an axis counts as centered.
const Deadzone = 0.1

// Keys is the discrete fallback key set, one bit per key.
type Keys uint32

const (
	KeyThrottleUp   Keys = 1 << iota // Space
	KeyThrottleDown                  // Left Ctrl
	KeyYawLeft                       // Q
	KeyYawRight                      // E
	KeyRollLeft                      // A
	KeyRollRight                     // D
	KeyPitchForward                  // W
	KeyPitchBack                     // S
	KeyReset                         // R
	KeyForceRecovery
	KeyEmergencyFlip
)

// Has reports whether every key in k2 is held.
func (k Keys) Has(k2 Keys) bool { return k&k2 == k2 }

// Pressed returns the keys held now that were not held in prev.
func (k Keys) Pressed(prev Keys) Keys { return k &^ prev }

// RawInput is one frame of operator input: two analog sticks, nominally in
// [-1, 1] per axis, plus the discrete keys.
type RawInput struct {
	Left  mgl64.Vec2
	Right mgl64.Vec2
	Keys  Keys
}

// ControlVector is the normalized input the mixer consumes.
// Left: X yaw, Y throttle. Right: X roll, Y pitch.
type ControlVector struct {
	Left  mgl64.Vec2
	Right mgl64.Vec2
}

// Normalize maps a raw sample to a control vector. Analog axes are clamped
// to [-1, 1]. When both analog sticks are inside the deadzone the discrete
// keys are used instead.
func Normalize(in RawInput) ControlVector {
	cv := ControlVector{Left: clampStick(in.Left), Right: clampStick(in.Right)}
	if cv.Left.Len() >= Deadzone || cv.Right.Len() >= Deadzone {
		return cv
	}
	k := in.Keys
	cv.Left[1] = keyAxis(k, KeyThrottleUp, 1, KeyThrottleDown)
	cv.Left[0] = keyAxis(k, KeyYawLeft, -1, KeyYawRight)
	cv.Right[0] = keyAxis(k, KeyRollLeft, -1, KeyRollRight)
	cv.Right[1] = keyAxis(k, KeyPitchForward, 1, KeyPitchBack)
	return cv
}

// keyAxis resolves a key pair to {-1, 0, 1}. first takes precedence when
// both keys are held.
func keyAxis(k, first Keys, firstValue float64, second Keys) float64 {
	switch {
	case k.Has(first):
		return firstValue
	case k.Has(second):
		return -firstValue
	}
	return 0
}

func clampStick(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{mgl64.Clamp(v.X(), -1, 1), mgl64.Clamp(v.Y(), -1, 1)}
}

// Controlling reports whether the operator is actively steering. Throttle
// alone does not count.
func (cv ControlVector) Controlling() bool {
	return math.Abs(cv.Left.X()) > Deadzone ||
		math.Abs(cv.Right.X()) > Deadzone ||
		math.Abs(cv.Right.Y()) > Deadzone
}
