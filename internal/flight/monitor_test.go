package flight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/flight_computer/internal/orientation"
)

var (
	upright  = orientation.Pose{}.Quat()
	inverted = orientation.Pose{Roll: 180}.Quat()
)

func TestUpsideDown(t *testing.T) {
	assert.False(t, UpsideDown(upright))
	assert.True(t, UpsideDown(inverted))
	// 45° off straight down is still upside down, 50° is not.
	assert.True(t, UpsideDown(orientation.Pose{Roll: 135}.Quat()))
	assert.False(t, UpsideDown(orientation.Pose{Roll: 130}.Quat()))
}

func TestTiltAngle(t *testing.T) {
	assert.InDelta(t, 0, TiltAngle(upright, upright), 1e-9)
	assert.InDelta(t, 180, TiltAngle(inverted, upright), 1e-6)
	assert.InDelta(t, 35, TiltAngle(orientation.Pose{Pitch: 35}.Quat(), upright), 1e-6)
}

func TestInversionDetectorDwell(t *testing.T) {
	const step = 0.125

	var d InversionDetector
	for i := 0; i < 4; i++ {
		changed := d.Update(inverted, step)
		assert.False(t, changed)
		assert.False(t, d.Latched, "latched after %v s", float64(i+1)*step)
	}
	assert.InDelta(t, 0.5, d.Dwell, 1e-12)

	require.True(t, d.Update(inverted, step))
	assert.True(t, d.Latched)

	// Stays latched without reporting a change.
	assert.False(t, d.Update(inverted, step))
	assert.True(t, d.Latched)
}

func TestInversionDetectorResetsOnSingleTick(t *testing.T) {
	const step = 0.125

	var d InversionDetector
	for i := 0; i < 3; i++ {
		d.Update(inverted, step)
	}
	d.Update(upright, step)
	assert.Zero(t, d.Dwell)

	// No partial memory: the full dwell is needed again.
	for i := 0; i < 4; i++ {
		d.Update(inverted, step)
	}
	assert.False(t, d.Latched)
}

func TestInversionDetectorClearsImmediately(t *testing.T) {
	d := InversionDetector{}
	d.Force(1)
	require.True(t, d.Latched)

	assert.True(t, d.Update(upright, 0.001))
	assert.False(t, d.Latched)
	assert.Zero(t, d.Dwell)
}

func TestTargets(t *testing.T) {
	ref := orientation.Pose{Pitch: -90, Yaw: -122}
	tg := NewTargets(ref)

	assert.Equal(t, tg.Reference, tg.For(false))
	assert.Equal(t, tg.Flipped, tg.For(true))
	assert.InDelta(t, 180, orientation.Angle(tg.Reference, tg.Flipped), 1e-6)

	// The flip turns the reference upside down about its local forward axis.
	level := NewTargets(orientation.Pose{})
	assert.True(t, UpsideDown(level.Flipped))
	assert.InDelta(t, 1, orientation.Forward(level.Flipped).Z(), 1e-9)
}
