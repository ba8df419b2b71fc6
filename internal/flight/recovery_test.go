package flight

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/flight_computer/internal/orientation"
)

func TestStabilizeDampsYawPartially(t *testing.T) {
	cfg := DefaultConfig()
	body := fakeBody{q: mgl64.QuatIdent(), w: mgl64.Vec3{1, 2, -3}, mass: 1.2}
	var cmd Command
	stabilize(&cfg, body, &cmd)

	s := cfg.StabilizationStrength
	want := mgl64.Vec3{-1 * s, -2 * s * cfg.YawStabilizationMultiplier, 3 * s}
	got := cmd.TorqueOf(PartStabilize)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}

	cfg.AutoStabilize = false
	cmd = Command{}
	stabilize(&cfg, body, &cmd)
	assert.Empty(t, cmd.Parts)
}

func TestLevelTorqueDeadband(t *testing.T) {
	target := mgl64.QuatIdent()
	for _, deg := range []float64{0, 0.5, 0.9, 0.999} {
		current := mgl64.QuatRotate(mgl64.DegToRad(deg), orientation.WorldRight)
		assert.Equal(t, mgl64.Vec3{}, levelTorque(current, target, 3, 2), "%v°", deg)
	}
}

func TestLevelTorqueMonotonic(t *testing.T) {
	target := mgl64.QuatIdent()
	prev := 0.0
	for deg := 1.5; deg <= 180; deg += 0.5 {
		current := mgl64.QuatRotate(mgl64.DegToRad(deg), mgl64.Vec3{1, 1, 0}.Normalize())
		mag := levelTorque(current, target, 3, 2).Len()
		require.Greater(t, mag, prev, "%v°", deg)
		prev = mag
	}
	assert.InDelta(t, math.Pi*3*2*0.01, prev, 1e-9)
}

func TestLevelTorqueRotatesTowardTarget(t *testing.T) {
	// Current is pitched +20° about right; the torque must pitch it back.
	current := mgl64.QuatRotate(mgl64.DegToRad(20), orientation.WorldRight)
	torque := levelTorque(current, mgl64.QuatIdent(), 1, 1)
	assert.Less(t, torque.X(), 0.0)

	// Past 180° the short way round is taken.
	current = mgl64.QuatRotate(mgl64.DegToRad(270), orientation.WorldRight)
	torque = levelTorque(current, mgl64.QuatIdent(), 1, 1)
	assert.Greater(t, torque.X(), 0.0)
	assert.InDelta(t, mgl64.DegToRad(90)*0.01, torque.Len(), 1e-9)
}

// A torque rights the vehicle when it turns the body up axis toward world
// up, i.e. when it has a positive component along up × worldUp.
func TestFlipTorqueIsRestoring(t *testing.T) {
	for roll := 100.0; roll <= 260; roll += 10 {
		for pitch := -60.0; pitch <= 60; pitch += 15 {
			for _, yaw := range []float64{0, 45, -122} {
				q := orientation.Pose{Roll: roll, Pitch: pitch, Yaw: yaw}.Quat()
				lever := orientation.Up(q).Cross(orientation.WorldUp)
				torque := flipTorque(q, 16)
				assert.InDelta(t, 16, torque.Len(), 1e-9)
				if lever.Len() > 1e-6 {
					assert.Greater(t, torque.Dot(lever), 0.0, "roll %v pitch %v yaw %v", roll, pitch, yaw)
				}
			}
		}
	}
}

func TestFlipTorqueAxisChoice(t *testing.T) {
	// Nose up while inverted: rotate about the right axis.
	q := orientation.Pose{Pitch: 150}.Quat()
	torque := flipTorque(q, 1)
	assert.InDelta(t, 1, math.Abs(torque.Dot(orientation.Right(q))), 1e-9)

	// Wing up while inverted: rotate about the forward axis.
	q = orientation.Pose{Roll: 150}.Quat()
	torque = flipTorque(q, 1)
	assert.InDelta(t, 1, math.Abs(torque.Dot(orientation.Forward(q))), 1e-9)
}

func TestCorrectInverted(t *testing.T) {
	cfg := DefaultConfig()
	s := State{Mode: RecoveryInverted, CurrentThrust: -50}
	body := fakeBody{q: orientation.Pose{Roll: 160}.Quat(), w: mgl64.Vec3{0, 0, 1}, mass: 1.2}
	var cmd Command
	correct(&cfg, &s, body, 0.02, &cmd)

	assert.True(t, cmd.SetAngularDrag)
	assert.InDelta(t, 4, cmd.AngularDrag, 1e-12)
	assert.InDelta(t, cfg.RecoveryStrength*2, cmd.TorqueOf(PartRecovery).Len(), 1e-9)
	assert.InDelta(t, -cfg.RecoveryStrength, cmd.TorqueOf(PartDamping).Z(), 1e-12)
	assert.Zero(t, cmd.TorqueOf(PartLevel).Len())

	// Thrust ramps toward 30 % of max.
	want := lerp(-50, 15, 0.02*3)
	assert.InDelta(t, want, s.CurrentThrust, 1e-12)
}

func TestCorrectUpright(t *testing.T) {
	cfg := DefaultConfig()
	s := State{Mode: RecoveryUpright, Target: mgl64.QuatIdent()}
	body := fakeBody{q: orientation.Pose{Pitch: 40}.Quat(), w: mgl64.Vec3{2, 0, 0}, mass: 1.2}
	var cmd Command
	correct(&cfg, &s, body, 0.02, &cmd)

	assert.InDelta(t, 3, cmd.AngularDrag, 1e-12)
	rec := cmd.TorqueOf(PartRecovery)
	assert.InDelta(t, mgl64.DegToRad(40)*cfg.RecoveryStrength, rec.Len(), 1e-9)
	assert.Less(t, rec.X(), 0.0)
	assert.Zero(t, cmd.TorqueOf(PartLevel).Len())
	assert.InDelta(t, -2*cfg.RecoveryStrength*0.5, cmd.TorqueOf(PartDamping).X(), 1e-12)
}

func TestCorrectUprightLevelsOnlyWithHeadingHold(t *testing.T) {
	cfg := DefaultConfig()
	s := State{Regime: RegimeEmergencyRecovery, Mode: RecoveryUpright, Target: mgl64.QuatIdent()}
	body := fakeBody{q: orientation.Pose{Pitch: 40, Yaw: 30}.Quat(), mass: 1.2}

	var cmd Command
	correct(&cfg, &s, body, 0.02, &cmd)
	assert.Zero(t, cmd.TorqueOf(PartLevel).Len())
	assert.NotZero(t, cmd.TorqueOf(PartRecovery).Len())
	assert.InDelta(t, 3, cmd.AngularDrag, 1e-12)

	cfg.HoldHeadingInRecovery = true
	var held Command
	correct(&cfg, &s, body, 0.02, &held)
	assert.NotZero(t, held.TorqueOf(PartLevel).Len())
	assert.Equal(t, cmd.TorqueOf(PartRecovery), held.TorqueOf(PartRecovery))
	assert.InDelta(t, 3, held.AngularDrag, 1e-12)
}

func TestCorrectAutoLevelStrength(t *testing.T) {
	cfg := DefaultConfig()
	body := fakeBody{q: orientation.Pose{Roll: 20}.Quat(), mass: 1.2}

	released := State{Target: mgl64.QuatIdent()}
	var full Command
	correct(&cfg, &released, body, 0.02, &full)

	controlling := State{Target: mgl64.QuatIdent(), UserControlling: true}
	var assist Command
	correct(&cfg, &controlling, body, 0.02, &assist)

	assert.InDelta(t, 1.5, full.AngularDrag, 1e-12)
	require.NotZero(t, full.TorqueOf(PartLevel).Len())
	assert.InDelta(t, 0.3, assist.TorqueOf(PartLevel).Len()/full.TorqueOf(PartLevel).Len(), 1e-9)

	cfg.AutoLevel = false
	var none Command
	correct(&cfg, &released, body, 0.02, &none)
	assert.Empty(t, none.Parts)
	assert.False(t, none.SetAngularDrag)
}

func TestCorrectImpulseIsOneShot(t *testing.T) {
	cfg := DefaultConfig()
	s := State{Mode: RecoveryInverted, PendingImpulse: true}
	body := fakeBody{q: orientation.Pose{Roll: 180}.Quat(), mass: 1.2}

	var first Command
	correct(&cfg, &s, body, 0.02, &first)
	assert.InDelta(t, cfg.RecoveryStrength*3, first.TorqueOf(PartImpulse).Len(), 1e-9)
	assert.False(t, s.PendingImpulse)

	var second Command
	correct(&cfg, &s, body, 0.02, &second)
	assert.Equal(t, mgl64.Vec3{}, second.TorqueOf(PartImpulse))
}
