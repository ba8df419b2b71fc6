// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry publishes per-tick controller frames and controller
// events to MQTT as JSON.
package telemetry

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/orientation"
)

// Vehicle is what a frame reads from the simulated or real airframe.
type Vehicle interface {
	flight.Body
	Position() mgl64.Vec3
	AngularDrag() float64
}

// Frame is one tick of controller telemetry.
type Frame struct {
	Session            string           `json:"session"`
	Tick               uint64           `json:"tick"`
	Time               float64          `json:"t"`
	Regime             string           `json:"regime"`
	Mode               string           `json:"mode"`
	TiltDeg            float64          `json:"tilt_deg"`
	Inverted           bool             `json:"inverted"`
	Controlling        bool             `json:"controlling"`
	TimeWithoutControl float64          `json:"time_without_control"`
	Thrust             float64          `json:"thrust"`
	Pose               orientation.Pose `json:"pose"`
	AngularVelocity    mgl64.Vec3       `json:"angular_velocity"`
	Force              mgl64.Vec3       `json:"force"`
	Torque             mgl64.Vec3       `json:"torque"`
	AngularDrag        float64          `json:"angular_drag"`
	Position           mgl64.Vec3       `json:"position"`
}

// NewFrame snapshots the controller, the vehicle and the last command.
func NewFrame(tick uint64, s flight.State, v Vehicle, cmd flight.Command) Frame {
	f := Frame{
		Tick:               tick,
		Time:               s.Time,
		Regime:             s.Regime.String(),
		Mode:               s.Mode.String(),
		TiltDeg:            s.TiltDeg,
		Inverted:           s.Inversion.Latched,
		Controlling:        s.UserControlling,
		TimeWithoutControl: s.TimeWithoutControl,
		Thrust:             s.CurrentThrust,
		Force:              cmd.Force,
		Torque:             cmd.Torque,
	}
	if v != nil {
		f.Pose = orientation.PoseFromQuat(v.Orientation())
		f.AngularVelocity = v.AngularVelocity()
		f.AngularDrag = v.AngularDrag()
		f.Position = v.Position()
	}
	return f
}

// EventMessage is the wire form of a flight.Event.
type EventMessage struct {
	Session  string  `json:"session"`
	Kind     string  `json:"kind"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Mode     string  `json:"mode"`
	TiltDeg  float64 `json:"tilt_deg"`
	Inverted bool    `json:"inverted"`
	Time     float64 `json:"t"`
}

// NewEventMessage converts a controller event.
func NewEventMessage(session string, e flight.Event) EventMessage {
	return EventMessage{
		Session:  session,
		Kind:     string(e.Kind),
		From:     e.From.String(),
		To:       e.To.String(),
		Mode:     e.Mode.String(),
		TiltDeg:  e.TiltDeg,
		Inverted: e.Inverted,
		Time:     e.Time,
	}
}
