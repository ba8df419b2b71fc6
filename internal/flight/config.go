// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package flight

import (
	"fmt"

	"github.com/relabs-tech/flight_computer/internal/orientation"
)

// Config holds the controller tuning. It is read-only once a Controller has
// been built from it.
type Config struct {
	// Drone physics
	MaxThrustForce float64
	TiltForce      float64
	YawForce       float64
	MovementSpeed  float64

	// Tilt limits (degrees)
	MaxForwardTilt  float64
	MaxBackwardTilt float64
	MaxSideTilt     float64

	// Auto leveling
	AutoLevel             bool
	LevelingStrength      float64
	LevelingResponseSpeed float64

	// Stabilization
	AutoStabilize              bool
	StabilizationStrength      float64
	YawStabilizationMultiplier float64

	// Emergency recovery. When EmergencyRecovery is false the controller
	// never latches inversion and never leaves Manual/AutoLevel.
	EmergencyRecovery    bool
	RecoveryThreshold    float64 // degrees
	RecoveryStrength     float64
	UserOverrideStrength float64 // pitch/roll scale near the threshold, (0, 1]
	NoInputTimeout       float64 // seconds

	// HoldHeadingInRecovery adds the auto-level torque during upright
	// recovery so heading error closes too. Off by default.
	HoldHeadingInRecovery bool

	// Reference orientation the vehicle levels toward.
	InitialRotation orientation.Pose

	// Gravity magnitude in m/s².
	Gravity float64
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		MaxThrustForce: 50,
		TiltForce:      8,
		YawForce:       25,
		MovementSpeed:  5,

		MaxForwardTilt:  10,
		MaxBackwardTilt: 10,
		MaxSideTilt:     20,

		AutoLevel:             true,
		LevelingStrength:      3,
		LevelingResponseSpeed: 2,

		AutoStabilize:              true,
		StabilizationStrength:      4,
		YawStabilizationMultiplier: 0.1,

		EmergencyRecovery:    true,
		RecoveryThreshold:    30,
		RecoveryStrength:     8,
		UserOverrideStrength: 0.5,
		NoInputTimeout:       2,

		InitialRotation: orientation.Pose{Pitch: -90, Yaw: -122, Roll: 0},

		Gravity: 9.81,
	}
}

// Validate checks the config for values the controller cannot work with.
func (c Config) Validate() error {
	if c.MaxThrustForce <= 0 {
		return fmt.Errorf("max thrust force must be positive, got %v", c.MaxThrustForce)
	}
	if c.TiltForce < 0 || c.YawForce < 0 || c.MovementSpeed < 0 {
		return fmt.Errorf("tilt force, yaw force and movement speed must not be negative")
	}
	for name, v := range map[string]float64{
		"forward":  c.MaxForwardTilt,
		"backward": c.MaxBackwardTilt,
		"side":     c.MaxSideTilt,
	} {
		if v <= 0 || v > 90 {
			return fmt.Errorf("max %s tilt must be in (0, 90], got %v", name, v)
		}
	}
	if c.RecoveryThreshold <= 0 || c.RecoveryThreshold >= 180 {
		return fmt.Errorf("recovery threshold must be in (0, 180), got %v", c.RecoveryThreshold)
	}
	if c.UserOverrideStrength <= 0 || c.UserOverrideStrength > 1 {
		return fmt.Errorf("user override strength must be in (0, 1], got %v", c.UserOverrideStrength)
	}
	if c.NoInputTimeout <= 0 {
		return fmt.Errorf("no-input timeout must be positive, got %v", c.NoInputTimeout)
	}
	if c.Gravity < 0 {
		return fmt.Errorf("gravity must not be negative, got %v", c.Gravity)
	}
	return nil
}
