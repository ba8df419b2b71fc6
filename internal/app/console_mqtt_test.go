package app

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/flight_computer/internal/orientation"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

func TestFormatFrame(t *testing.T) {
	line := formatFrame(telemetry.Frame{
		Time:     1.5,
		Regime:   "emergency_recovery",
		Mode:     "inverted",
		Inverted: true,
		TiltDeg:  172.25,
		Thrust:   15,
		Pose:     orientation.Pose{Roll: 180, Pitch: -3, Yaw: 12},
		Position: mgl64.Vec3{0, 4.5, 0},
	})
	assert.Contains(t, line, "[FRAME]")
	assert.Contains(t, line, "emergency_recovery")
	assert.Contains(t, line, " I ")
	assert.Contains(t, line, "tilt= 172.2")
	assert.Contains(t, line, "ROLL= 180.00")
	assert.Contains(t, line, "alt=   4.50")
}

func TestFormatEvent(t *testing.T) {
	changed := formatEvent(telemetry.EventMessage{Kind: "regime_changed", From: "manual", To: "auto_level", Mode: "none", Time: 0.02})
	assert.Contains(t, changed, "manual -> auto_level")

	latched := formatEvent(telemetry.EventMessage{Kind: "inversion_latched", From: "auto_level", To: "auto_level", Inverted: true})
	assert.NotContains(t, latched, "->")
	assert.Contains(t, latched, "inverted=true")
}
