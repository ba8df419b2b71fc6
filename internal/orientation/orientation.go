// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is the canonical human-readable representation of orientation.
// Angles are in degrees. The frame is Y-up, Z-forward, X-right; a pose is
// applied as roll about Z, then pitch about X, then yaw about Y.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

var (
	WorldUp      = mgl64.Vec3{0, 1, 0}
	WorldDown    = mgl64.Vec3{0, -1, 0}
	WorldForward = mgl64.Vec3{0, 0, 1}
	WorldRight   = mgl64.Vec3{1, 0, 0}
)

// Quat converts the pose to a unit quaternion.
func (p Pose) Quat() mgl64.Quat {
	yaw := mgl64.QuatRotate(mgl64.DegToRad(p.Yaw), WorldUp)
	pitch := mgl64.QuatRotate(mgl64.DegToRad(p.Pitch), WorldRight)
	roll := mgl64.QuatRotate(mgl64.DegToRad(p.Roll), WorldForward)
	return yaw.Mul(pitch).Mul(roll).Normalize()
}

// PoseFromQuat decomposes q back into roll/pitch/yaw degrees.
//
// Pitch is kept in [-90, 90]; near ±90 the roll/yaw split is ambiguous and
// roll is folded into yaw.
func PoseFromQuat(q mgl64.Quat) Pose {
	f := Forward(q)
	r := Right(q)
	u := Up(q)

	pitch := math.Asin(clamp(-f.Y(), -1, 1))
	var yaw, roll float64
	if math.Abs(f.Y()) < 0.9999 {
		yaw = math.Atan2(f.X(), f.Z())
		roll = math.Atan2(r.Y(), u.Y())
	} else {
		yaw = math.Atan2(-r.Z(), r.X())
		roll = 0
	}

	return Pose{
		Roll:  mgl64.RadToDeg(roll),
		Pitch: mgl64.RadToDeg(pitch),
		Yaw:   mgl64.RadToDeg(yaw),
	}
}

// Up, Forward and Right return the body basis vectors in world space.
func Up(q mgl64.Quat) mgl64.Vec3      { return q.Rotate(WorldUp) }
func Forward(q mgl64.Quat) mgl64.Vec3 { return q.Rotate(WorldForward) }
func Right(q mgl64.Quat) mgl64.Vec3   { return q.Rotate(WorldRight) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
