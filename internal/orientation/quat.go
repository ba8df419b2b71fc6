package orientation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const axisEpsilon = 1e-6

// Angle returns the smallest angle in degrees, [0, 180], between two
// orientations.
func Angle(a, b mgl64.Quat) float64 {
	d := math.Abs(a.Dot(b))
	if d > 1-1e-9 {
		return 0
	}
	return mgl64.RadToDeg(2 * math.Acos(d))
}

// AngleAxis splits q into a rotation angle in degrees, [0, 360), and a unit
// axis. ok is false when the axis is degenerate (angle close to zero).
func AngleAxis(q mgl64.Quat) (angle float64, axis mgl64.Vec3, ok bool) {
	q = q.Normalize()
	w := clamp(q.W, -1, 1)
	angle = mgl64.RadToDeg(2 * math.Acos(w))
	s := math.Sqrt(1 - w*w)
	if s < axisEpsilon {
		return angle, mgl64.Vec3{}, false
	}
	return angle, q.V.Mul(1 / s), true
}

// SignedAngleAxis is AngleAxis with the angle folded into (-180, 180].
func SignedAngleAxis(q mgl64.Quat) (float64, mgl64.Vec3, bool) {
	angle, axis, ok := AngleAxis(q)
	if angle > 180 {
		angle -= 360
	}
	return angle, axis, ok
}

// FromTo returns the minimal rotation taking direction from onto direction to.
// Antiparallel inputs rotate about an arbitrary perpendicular axis.
func FromTo(from, to mgl64.Vec3) mgl64.Quat {
	if from.Len() < axisEpsilon || to.Len() < axisEpsilon {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatBetweenVectors(from.Normalize(), to.Normalize())
}

// Flatten projects v onto the horizontal plane. ok is false when the
// projection is at most minLen long.
func Flatten(v mgl64.Vec3, minLen float64) (mgl64.Vec3, bool) {
	h := mgl64.Vec3{v.X(), 0, v.Z()}
	l := h.Len()
	if l <= minLen {
		return mgl64.Vec3{}, false
	}
	return h.Mul(1 / l), true
}
