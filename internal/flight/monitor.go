package flight

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/flight_computer/internal/orientation"
)

const (
	// invertedCos is the up·down value above which the vehicle counts as
	// upside down.
	invertedCos = 0.7
	// invertedDwell is how long the inverted test must hold before latching.
	invertedDwell = 0.5
)

// TiltAngle is the angle in degrees between the current and target
// orientations.
func TiltAngle(current, target mgl64.Quat) float64 {
	return orientation.Angle(current, target)
}

// UpsideDown is the instantaneous inversion test.
func UpsideDown(current mgl64.Quat) bool {
	return orientation.Up(current).Dot(orientation.WorldDown) > invertedCos
}

// InversionDetector debounces UpsideDown. The latch needs the test to hold
// for more than invertedDwell seconds; it clears on the first tick the test
// fails.
type InversionDetector struct {
	Latched bool
	Dwell   float64
}

// Update advances the detector by dt and reports whether the latch changed.
func (d *InversionDetector) Update(current mgl64.Quat, dt float64) (changed bool) {
	was := d.Latched
	if UpsideDown(current) {
		d.Dwell += dt
		if d.Dwell > invertedDwell {
			d.Latched = true
		}
	} else {
		d.Dwell = 0
		d.Latched = false
	}
	return was != d.Latched
}

// Force sets the latch as if the vehicle had been upside down for dwell
// seconds.
func (d *InversionDetector) Force(dwell float64) {
	d.Latched = true
	d.Dwell = dwell
}

// Targets holds the two orientations the vehicle may level toward.
type Targets struct {
	Reference mgl64.Quat
	Flipped   mgl64.Quat
}

// NewTargets builds the reference orientation and its flipped twin, the
// reference with its roll advanced by 180°.
func NewTargets(ref orientation.Pose) Targets {
	flipped := ref
	flipped.Roll += 180
	return Targets{Reference: ref.Quat(), Flipped: flipped.Quat()}
}

// For returns the target matching the inversion latch.
func (t Targets) For(inverted bool) mgl64.Quat {
	if inverted {
		return t.Flipped
	}
	return t.Reference
}
