package flight_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/orientation"
	"github.com/relabs-tech/flight_computer/internal/rigidbody"
)

const dt = 0.02

type recorder struct {
	events []flight.Event
}

func (r *recorder) Emit(e flight.Event) { r.events = append(r.events, e) }

func (r *recorder) ofKind(kind flight.EventKind) []flight.Event {
	var out []flight.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// pinned is a body that never moves.
type pinned struct {
	q mgl64.Quat
}

func (p pinned) Orientation() mgl64.Quat     { return p.q }
func (p pinned) AngularVelocity() mgl64.Vec3 { return mgl64.Vec3{} }
func (p pinned) Mass() float64               { return 1.2 }

func newController(t *testing.T, cfg flight.Config) (*flight.Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c, err := flight.New(cfg, rec)
	require.NoError(t, err)
	return c, rec
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := flight.DefaultConfig()
	cfg.UserOverrideStrength = 2
	_, err := flight.New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user override strength")
}

func TestSpawnState(t *testing.T) {
	c, _ := newController(t, flight.DefaultConfig())
	s := c.State()
	assert.Equal(t, flight.RegimeManual, s.Regime)
	assert.True(t, s.FirstTick)
	assert.Equal(t, c.Targets().Reference, s.Target)
	assert.Zero(t, s.CurrentThrust)
}

func TestFirstStepIsNoop(t *testing.T) {
	c, _ := newController(t, flight.DefaultConfig())
	body := pinned{q: c.Targets().Reference}

	// Sticks are ignored on the first sample too.
	cmd := c.Tick(flight.RawInput{Left: mgl64.Vec2{0, 1}, Right: mgl64.Vec2{1, 0}}, body, dt)
	assert.False(t, cmd.Active)
	assert.Empty(t, cmd.Parts)
	assert.False(t, c.State().UserControlling)

	cmd = c.Tick(flight.RawInput{}, body, dt)
	assert.True(t, cmd.Active)
}

func TestNilBodyIsNoop(t *testing.T) {
	c, _ := newController(t, flight.DefaultConfig())
	for i := 0; i < 3; i++ {
		cmd := c.Tick(flight.RawInput{Left: mgl64.Vec2{0, 1}}, nil, dt)
		assert.False(t, cmd.Active)
	}
	// The spawn no-op is still owed to the first real body.
	assert.True(t, c.State().FirstTick)
	assert.False(t, c.Step(pinned{q: mgl64.QuatIdent()}, dt).Active)
}

func TestZeroInputFromLevel(t *testing.T) {
	cfg := flight.DefaultConfig()
	c, rec := newController(t, cfg)
	body := rigidbody.New(rigidbody.DefaultSpec(), cfg.InitialRotation)

	for i := 0; i < 150; i++ {
		body.Apply(c.Tick(flight.RawInput{}, body, dt), dt)
	}

	changes := rec.ofKind(flight.EventRegimeChanged)
	require.Len(t, changes, 3)

	assert.Equal(t, flight.RegimeManual, changes[0].From)
	assert.Equal(t, flight.RegimeAutoLevel, changes[0].To)
	assert.InDelta(t, dt, changes[0].Time, 1e-9)

	assert.Equal(t, flight.RegimeEmergencyRecovery, changes[1].To)
	assert.Greater(t, changes[1].Time, cfg.NoInputTimeout-1e-9)
	assert.LessOrEqual(t, changes[1].Time, cfg.NoInputTimeout+dt+1e-9)
	assert.Less(t, changes[1].TiltDeg, 1.0)

	// Level, so recovery hands straight back.
	assert.Equal(t, flight.RegimeAutoLevel, changes[2].To)
	assert.InDelta(t, changes[1].Time+dt, changes[2].Time, 1e-9)

	assert.Equal(t, flight.RegimeAutoLevel, c.State().Regime)
	assert.InDelta(t, 3, c.State().TimeWithoutControl, 1e-9)
}

func TestInversionLatchAndTargetFlip(t *testing.T) {
	const step = 1.0 / 64

	cfg := flight.DefaultConfig()
	c, rec := newController(t, cfg)
	flipped := orientation.Pose{Roll: 180}.Quat()
	require.InDelta(t, 1, orientation.Up(flipped).Dot(orientation.WorldDown), 1e-9)
	body := pinned{q: flipped}

	hold := flight.RawInput{Right: mgl64.Vec2{1, 0}}
	c.Sample(flight.RawInput{}, body, step)
	c.Step(body, step)
	for c.State().Time < 0.6 {
		c.Sample(hold, body, step)
		require.True(t, c.State().UserControlling)
	}

	latched := rec.ofKind(flight.EventInversionLatched)
	require.Len(t, latched, 1)
	assert.Greater(t, latched[0].Time, 0.5)
	assert.LessOrEqual(t, latched[0].Time, 0.5+step)

	// Still controlling, so the target has not moved.
	assert.Empty(t, rec.ofKind(flight.EventTargetFlipped))
	assert.Equal(t, c.Targets().Reference, c.State().Target)

	// Release edge.
	c.Sample(flight.RawInput{}, body, step)
	assert.Len(t, rec.ofKind(flight.EventTargetFlipped), 1)
	assert.Equal(t, c.Targets().Flipped, c.State().Target)
	assert.Equal(t, flight.RegimeEmergencyRecovery, c.State().Regime)
	assert.Equal(t, flight.RecoveryInverted, c.State().Mode)

	// The target only moves on release edges.
	for i := 0; i < 10; i++ {
		c.Sample(flight.RawInput{}, pinned{q: c.Targets().Reference}, step)
	}
	assert.False(t, c.State().Inversion.Latched)
	assert.Equal(t, c.Targets().Flipped, c.State().Target)
}

func TestHoverThrustConverges(t *testing.T) {
	cfg := flight.DefaultConfig()
	c, _ := newController(t, cfg)
	body := pinned{q: c.Targets().Reference}

	var cmd flight.Command
	for i := 0; i < 300; i++ {
		cmd = c.Tick(flight.RawInput{Left: mgl64.Vec2{0, 1}}, body, dt)
		require.LessOrEqual(t, c.State().CurrentThrust, cfg.MaxThrustForce)
	}
	thrust := cmd.ForceOf(flight.PartThrust)
	assert.InDelta(t, cfg.MaxThrustForce+cfg.Gravity*1.2, thrust.Y(), 1e-3)
	assert.InDelta(t, 0, thrust.X(), 1e-12)
	assert.InDelta(t, 0, thrust.Z(), 1e-12)
}

func TestTimeWithoutControlResets(t *testing.T) {
	c, _ := newController(t, flight.DefaultConfig())
	body := pinned{q: c.Targets().Reference}

	prev := 0.0
	for i := 0; i < 20; i++ {
		c.Tick(flight.RawInput{}, body, dt)
		require.GreaterOrEqual(t, c.State().TimeWithoutControl, prev)
		prev = c.State().TimeWithoutControl
	}
	c.Tick(flight.RawInput{Left: mgl64.Vec2{0.5, 0}}, body, dt)
	assert.Equal(t, 0.0, c.State().TimeWithoutControl)
	assert.Equal(t, flight.RegimeManual, c.State().Regime)
}

func TestControllingClearsEmergency(t *testing.T) {
	c, _ := newController(t, flight.DefaultConfig())
	body := pinned{q: orientation.Pose{Pitch: -90, Yaw: -122, Roll: 60}.Quat()}

	c.Tick(flight.RawInput{}, body, dt)
	c.Tick(flight.RawInput{}, body, dt)
	require.Equal(t, flight.RegimeEmergencyRecovery, c.State().Regime)
	require.Equal(t, flight.RecoveryUpright, c.State().Mode)

	c.Tick(flight.RawInput{Right: mgl64.Vec2{0, 0.5}}, body, dt)
	assert.Equal(t, flight.RegimeManual, c.State().Regime)
	assert.Equal(t, flight.RecoveryNone, c.State().Mode)
}

func TestRecoveryDisabled(t *testing.T) {
	cfg := flight.DefaultConfig()
	cfg.EmergencyRecovery = false
	c, rec := newController(t, cfg)
	body := pinned{q: orientation.Pose{Roll: 180}.Quat()}

	for i := 0; i < 200; i++ {
		c.Tick(flight.RawInput{}, body, dt)
		require.NotEqual(t, flight.RegimeEmergencyRecovery, c.State().Regime)
	}
	assert.False(t, c.State().Inversion.Latched)
	assert.Empty(t, rec.ofKind(flight.EventInversionLatched))
}

// Starting upside down with the flip forced, inverted recovery must right
// the vehicle and clear the latch in bounded time, after which the
// controller settles back into auto-level.
func TestInvertedRecoveryClearsLatch(t *testing.T) {
	cfg := flight.DefaultConfig()
	cfg.InitialRotation = orientation.Pose{}
	// Settling below 5° also needs heading closed after the flip.
	cfg.HoldHeadingInRecovery = true
	c, rec := newController(t, cfg)
	body := rigidbody.New(rigidbody.DefaultSpec(), orientation.Pose{Roll: 180})

	body.Apply(c.Tick(flight.RawInput{}, body, dt), dt)
	c.EmergencyFlip()
	require.True(t, c.State().Inversion.Latched)
	require.Equal(t, flight.RecoveryInverted, c.State().Mode)
	require.Len(t, rec.ofKind(flight.EventEmergencyFlip), 1)

	const maxTicks = 500
	ticks := 0
	for ; ticks < maxTicks && c.State().Inversion.Latched; ticks++ {
		cmd := c.Tick(flight.RawInput{}, body, dt)
		if c.State().Inversion.Latched {
			require.NotEqual(t, mgl64.Vec3{}, cmd.TorqueOf(flight.PartRecovery))
		}
		body.Apply(cmd, dt)
	}
	require.Less(t, ticks, maxTicks, "latch never cleared")
	assert.False(t, flight.UpsideDown(body.Orientation()))
	assert.Len(t, rec.ofKind(flight.EventInversionCleared), 1)

	for i := 0; i < 1500; i++ {
		body.Apply(c.Tick(flight.RawInput{}, body, dt), dt)
	}
	assert.Less(t, c.State().TiltDeg, 5.0)
	assert.Equal(t, flight.RegimeAutoLevel, c.State().Regime)
}

func TestForceRecovery(t *testing.T) {
	c, rec := newController(t, flight.DefaultConfig())
	body := pinned{q: c.Targets().Reference}
	for i := 0; i < 10; i++ {
		c.Tick(flight.RawInput{}, body, dt)
	}

	c.ForceRecovery()
	s := c.State()
	assert.Equal(t, flight.RegimeEmergencyRecovery, s.Regime)
	assert.Equal(t, flight.RecoveryUpright, s.Mode)
	assert.Zero(t, s.TimeWithoutControl)
	assert.False(t, s.PendingImpulse)
	assert.Len(t, rec.ofKind(flight.EventForcedRecovery), 1)

	cmd := c.Step(body, dt)
	assert.Equal(t, mgl64.Vec3{}, cmd.TorqueOf(flight.PartImpulse))
}

func TestForceRecoveryWhileInverted(t *testing.T) {
	c, _ := newController(t, flight.DefaultConfig())
	body := pinned{q: orientation.Pose{Roll: 180}.Quat()}
	for i := 0; i < 40; i++ {
		c.Tick(flight.RawInput{}, body, dt)
	}
	require.True(t, c.State().Inversion.Latched)

	c.ForceRecovery()
	require.True(t, c.State().PendingImpulse)

	first := c.Step(body, dt)
	assert.NotEqual(t, mgl64.Vec3{}, first.TorqueOf(flight.PartImpulse))
	second := c.Step(body, dt)
	assert.Equal(t, mgl64.Vec3{}, second.TorqueOf(flight.PartImpulse))
}

func TestEmergencyFlipClearsWhenUpright(t *testing.T) {
	c, rec := newController(t, flight.DefaultConfig())
	body := pinned{q: c.Targets().Reference}
	c.Tick(flight.RawInput{}, body, dt)

	c.EmergencyFlip()
	assert.Equal(t, flight.RecoveryInverted, c.State().Mode)

	c.Tick(flight.RawInput{}, body, dt)
	assert.False(t, c.State().Inversion.Latched)
	assert.Equal(t, flight.RegimeAutoLevel, c.State().Regime)
	assert.Len(t, rec.ofKind(flight.EventInversionCleared), 1)
}

func TestReset(t *testing.T) {
	c, rec := newController(t, flight.DefaultConfig())
	body := pinned{q: orientation.Pose{Roll: 180}.Quat()}
	for i := 0; i < 40; i++ {
		c.Tick(flight.RawInput{Left: mgl64.Vec2{0, 1}, Right: mgl64.Vec2{0.5, 0}}, body, dt)
	}
	c.Tick(flight.RawInput{}, body, dt)
	require.NotEqual(t, c.Targets().Reference, c.State().Target)

	c.Reset()
	s := c.State()
	assert.Equal(t, flight.RegimeManual, s.Regime)
	assert.True(t, s.FirstTick)
	assert.Zero(t, s.CurrentThrust)
	assert.Zero(t, s.Time)
	assert.False(t, s.Inversion.Latched)
	assert.Equal(t, c.Targets().Reference, s.Target)
	assert.Len(t, rec.ofKind(flight.EventReset), 1)
}

func TestTargetIsAlwaysOneOfTwo(t *testing.T) {
	c, _ := newController(t, flight.DefaultConfig())
	bodies := []pinned{
		{q: c.Targets().Reference},
		{q: orientation.Pose{Roll: 180}.Quat()},
		{q: orientation.Pose{Pitch: 45}.Quat()},
	}
	inputs := []flight.RawInput{{}, {Right: mgl64.Vec2{1, 0}}, {Left: mgl64.Vec2{0, 1}}}
	for i := 0; i < 600; i++ {
		c.Tick(inputs[(i/7)%len(inputs)], bodies[(i/50)%len(bodies)], dt)
		tgt := c.State().Target
		require.True(t, tgt == c.Targets().Reference || tgt == c.Targets().Flipped)
	}
}
