// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rigidbody is a small semi-implicit Euler integrator for a single
// rigid body in a Y-up world. It stands in for the vehicle in tests, the
// headless runner and the software-in-the-loop pilot.
package rigidbody

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/orientation"
)

// Spec holds the physical constants of the body.
type Spec struct {
	Mass        float64
	LinearDrag  float64
	AngularDrag float64
	// Inertia is the diagonal of the inertia tensor, world aligned.
	Inertia mgl64.Vec3
	Gravity float64
}

// DefaultSpec matches the stock vehicle.
func DefaultSpec() Spec {
	return Spec{
		Mass:        1.2,
		LinearDrag:  0.3,
		AngularDrag: 1.5,
		Inertia:     mgl64.Vec3{1, 1, 1},
		Gravity:     9.81,
	}
}

// Body is the integrated state. It implements flight.Body.
type Body struct {
	spec Spec

	pos    mgl64.Vec3
	vel    mgl64.Vec3
	rot    mgl64.Quat
	angVel mgl64.Vec3

	angularDrag float64
}

var _ flight.Body = (*Body)(nil)

// New places a body at rest at the origin with the given pose.
func New(spec Spec, pose orientation.Pose) *Body {
	b := &Body{spec: spec}
	b.Reset(pose)
	return b
}

// Reset puts the body back at rest at the origin.
func (b *Body) Reset(pose orientation.Pose) {
	b.pos = mgl64.Vec3{}
	b.vel = mgl64.Vec3{}
	b.angVel = mgl64.Vec3{}
	b.rot = pose.Quat()
	b.angularDrag = b.spec.AngularDrag
}

func (b *Body) Orientation() mgl64.Quat     { return b.rot }
func (b *Body) AngularVelocity() mgl64.Vec3 { return b.angVel }
func (b *Body) Mass() float64               { return b.spec.Mass }
func (b *Body) Position() mgl64.Vec3        { return b.pos }
func (b *Body) Velocity() mgl64.Vec3        { return b.vel }
func (b *Body) AngularDrag() float64        { return b.angularDrag }

// SetOrientation teleports the body to q.
func (b *Body) SetOrientation(q mgl64.Quat) { b.rot = q.Normalize() }

// SetAngularVelocity overrides the angular velocity (rad/s, world frame).
func (b *Body) SetAngularVelocity(w mgl64.Vec3) { b.angVel = w }

// Apply integrates one step of dt seconds under cmd and gravity. An inactive
// command contributes nothing but the body still falls.
func (b *Body) Apply(cmd flight.Command, dt float64) {
	if dt <= 0 {
		return
	}
	if cmd.Active {
		if cmd.SetAngularDrag {
			b.angularDrag = cmd.AngularDrag
		}
		b.vel = b.vel.Add(cmd.VelocityChange)
	}

	acc := mgl64.Vec3{0, -b.spec.Gravity, 0}
	if cmd.Active {
		acc = acc.Add(cmd.Force.Mul(1 / b.spec.Mass))
	}
	b.vel = b.vel.Add(acc.Mul(dt)).Mul(1 / (1 + b.spec.LinearDrag*dt))
	b.pos = b.pos.Add(b.vel.Mul(dt))

	if cmd.Active {
		in := b.spec.Inertia
		alpha := mgl64.Vec3{cmd.Torque.X() / in.X(), cmd.Torque.Y() / in.Y(), cmd.Torque.Z() / in.Z()}
		b.angVel = b.angVel.Add(alpha.Mul(dt))
	}
	b.angVel = b.angVel.Mul(1 / (1 + b.angularDrag*dt))

	// dq/dt = ½ ω q, ω in world frame.
	spin := mgl64.Quat{W: 0, V: b.angVel}.Mul(b.rot).Scale(0.5 * dt)
	next := b.rot.Add(spin).Normalize()

	b.sanitize(next)
}

// sanitize drops non-finite results instead of letting them spread.
func (b *Body) sanitize(next mgl64.Quat) {
	if finiteQuat(next) {
		b.rot = next
	} else {
		b.angVel = mgl64.Vec3{}
	}
	if !finiteVec(b.vel) {
		b.vel = mgl64.Vec3{}
	}
	if !finiteVec(b.pos) {
		b.pos = mgl64.Vec3{}
	}
	if !finiteVec(b.angVel) {
		b.angVel = mgl64.Vec3{}
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteVec(v mgl64.Vec3) bool { return finite(v[0]) && finite(v[1]) && finite(v[2]) }

func finiteQuat(q mgl64.Quat) bool { return finite(q.W) && finiteVec(q.V) }
