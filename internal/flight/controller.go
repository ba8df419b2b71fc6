// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package flight

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// State is the mutable per-vehicle controller record.
type State struct {
	CurrentThrust      float64
	Control            ControlVector
	UserControlling    bool
	TimeWithoutControl float64

	// Target is always Targets.Reference or Targets.Flipped.
	Target    mgl64.Quat
	Inversion InversionDetector

	Regime  Regime
	Mode    RecoveryMode
	TiltDeg float64

	// FirstTick is set at spawn; the first Step is a no-op.
	FirstTick bool
	// Time is the sampled controller clock in seconds.
	Time float64
	// PendingImpulse is a one-shot flip torque queued by ForceRecovery.
	PendingImpulse bool
}

// Controller flies one vehicle. Sample and Step must be called from a single
// goroutine; the controller does no locking of its own.
type Controller struct {
	cfg     Config
	targets Targets
	rules   RegimeRules
	sink    EventSink
	state   State
}

// New builds a controller in its spawn state. sink may be nil.
func New(cfg Config, sink EventSink) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flight config: %w", err)
	}
	if sink == nil {
		sink = discardSink{}
	}
	c := &Controller{
		cfg:     cfg,
		targets: NewTargets(cfg.InitialRotation),
		rules: RegimeRules{
			RecoveryEnabled:   cfg.EmergencyRecovery,
			RecoveryThreshold: cfg.RecoveryThreshold,
			NoInputTimeout:    cfg.NoInputTimeout,
		},
		sink: sink,
	}
	c.state = c.spawnState()
	return c, nil
}

func (c *Controller) spawnState() State {
	return State{
		Target:    c.targets.Reference,
		Regime:    RegimeManual,
		FirstTick: true,
	}
}

// Config returns the tuning the controller was built with.
func (c *Controller) Config() Config { return c.cfg }

// Targets returns the reference orientation and its flipped twin.
func (c *Controller) Targets() Targets { return c.targets }

// State returns a copy of the current state.
func (c *Controller) State() State { return c.state }

// Sample runs the input phase: normalize the operator input, classify the
// attitude and advance the regime machine. body may be nil, in which case
// the attitude is left as it was.
func (c *Controller) Sample(in RawInput, body Body, dt float64) {
	s := &c.state
	s.Time += dt

	if s.FirstTick {
		in.Left, in.Right = mgl64.Vec2{}, mgl64.Vec2{}
	}
	cv := Normalize(in)
	wasControlling := s.UserControlling
	s.Control = cv
	s.UserControlling = cv.Controlling()

	if body != nil && c.cfg.EmergencyRecovery {
		if s.Inversion.Update(body.Orientation(), dt) {
			kind := EventInversionCleared
			if s.Inversion.Latched {
				kind = EventInversionLatched
			}
			c.emit(kind, s.Regime, s.Regime)
		}
	}

	prevTWC := s.TimeWithoutControl
	if s.UserControlling {
		s.TimeWithoutControl = 0
	} else {
		s.TimeWithoutControl += dt
	}

	if wasControlling && !s.UserControlling {
		target := c.targets.For(s.Inversion.Latched)
		if target != s.Target {
			s.Target = target
			c.emit(EventTargetFlipped, s.Regime, s.Regime)
		}
	}

	if body != nil {
		s.TiltDeg = TiltAngle(body.Orientation(), s.Target)
	}

	next := NextRegime(s.Regime, RegimeInputs{
		Controlling:            s.UserControlling,
		TiltDeg:                s.TiltDeg,
		Inverted:               s.Inversion.Latched,
		TimeWithoutControl:     s.TimeWithoutControl,
		PrevTimeWithoutControl: prevTWC,
	}, c.rules)
	c.setRegime(next)
}

// Step runs the physics phase and returns this tick's command. A nil body
// and the first tick after spawn both yield an inactive command.
func (c *Controller) Step(body Body, dt float64) Command {
	if body == nil {
		return Command{}
	}
	s := &c.state
	if s.FirstTick {
		s.FirstTick = false
		return Command{}
	}

	s.TiltDeg = TiltAngle(body.Orientation(), s.Target)

	cmd := Command{Active: true, Parts: make([]Part, 0, partKinds)}
	updateThrust(&c.cfg, s, dt)
	mix(&c.cfg, s, body, &cmd)
	stabilize(&c.cfg, body, &cmd)
	correct(&c.cfg, s, body, dt, &cmd)
	return cmd
}

// Tick is Sample followed by Step with the same dt.
func (c *Controller) Tick(in RawInput, body Body, dt float64) Command {
	c.Sample(in, body, dt)
	return c.Step(body, dt)
}

// Reset returns the controller to its spawn state.
func (c *Controller) Reset() {
	prev := c.state.Regime
	c.state = c.spawnState()
	c.emit(EventReset, prev, c.state.Regime)
}

// ForceRecovery enters emergency recovery now. When inverted, a one-shot
// flip torque is added on the next Step.
func (c *Controller) ForceRecovery() {
	s := &c.state
	prev := s.Regime
	s.TimeWithoutControl = 0
	s.PendingImpulse = s.Inversion.Latched
	c.setRegime(RegimeEmergencyRecovery)
	c.emit(EventForcedRecovery, prev, s.Regime)
}

// EmergencyFlip forces the inversion latch and enters inverted recovery.
// The latch clears again on the first sample the vehicle is not upside down.
func (c *Controller) EmergencyFlip() {
	s := &c.state
	prev := s.Regime
	s.Inversion.Force(2 * invertedDwell)
	c.setRegime(RegimeEmergencyRecovery)
	c.emit(EventEmergencyFlip, prev, s.Regime)
}

func (c *Controller) setRegime(next Regime) {
	s := &c.state
	prev := s.Regime
	s.Regime = next
	s.Mode = ModeFor(next, s.Inversion.Latched)
	if prev != next {
		c.emit(EventRegimeChanged, prev, next)
	}
}

func (c *Controller) emit(kind EventKind, from, to Regime) {
	s := &c.state
	c.sink.Emit(Event{
		Kind:     kind,
		From:     from,
		To:       to,
		Mode:     s.Mode,
		TiltDeg:  s.TiltDeg,
		Inverted: s.Inversion.Latched,
		Time:     s.Time,
	})
}
