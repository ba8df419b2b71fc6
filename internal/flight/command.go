package flight

import "github.com/go-gl/mathgl/mgl64"

// Body is the read-only view of the rigid body the controller flies.
type Body interface {
	Orientation() mgl64.Quat
	AngularVelocity() mgl64.Vec3
	Mass() float64
}

// PartKind names a force/torque contribution.
type PartKind int

const (
	PartThrust PartKind = iota
	PartYaw
	PartTilt
	PartStabilize
	PartLevel
	PartRecovery
	PartDamping
	PartImpulse
	partKinds
)

func (k PartKind) String() string {
	switch k {
	case PartThrust:
		return "thrust"
	case PartYaw:
		return "yaw"
	case PartTilt:
		return "tilt"
	case PartStabilize:
		return "stabilize"
	case PartLevel:
		return "level"
	case PartRecovery:
		return "recovery"
	case PartDamping:
		return "damping"
	case PartImpulse:
		return "impulse"
	}
	return "unknown"
}

// Part is one additive contribution to a Command.
type Part struct {
	Kind   PartKind
	Force  mgl64.Vec3
	Torque mgl64.Vec3
}

// Command is the controller output for one physics tick. Force and Torque
// are the sums of Parts. The integrator applies VelocityChange as an
// instantaneous, mass-independent change of linear velocity.
type Command struct {
	Active bool

	Force          mgl64.Vec3
	Torque         mgl64.Vec3
	VelocityChange mgl64.Vec3

	// AngularDrag is only meaningful when SetAngularDrag is true.
	AngularDrag    float64
	SetAngularDrag bool

	Parts []Part
}

func (c *Command) addForce(kind PartKind, f mgl64.Vec3) {
	c.Force = c.Force.Add(f)
	c.Parts = append(c.Parts, Part{Kind: kind, Force: f})
}

func (c *Command) addTorque(kind PartKind, t mgl64.Vec3) {
	c.Torque = c.Torque.Add(t)
	c.Parts = append(c.Parts, Part{Kind: kind, Torque: t})
}

func (c *Command) setAngularDrag(v float64) {
	c.AngularDrag = v
	c.SetAngularDrag = true
}

// TorqueOf sums the torque of all parts of the given kind.
func (c Command) TorqueOf(kind PartKind) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range c.Parts {
		if p.Kind == kind {
			sum = sum.Add(p.Torque)
		}
	}
	return sum
}

// ForceOf sums the force of all parts of the given kind.
func (c Command) ForceOf(kind PartKind) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range c.Parts {
		if p.Kind == kind {
			sum = sum.Add(p.Force)
		}
	}
	return sum
}
