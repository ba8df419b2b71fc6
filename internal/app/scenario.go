package app

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/link"
	"github.com/relabs-tech/flight_computer/internal/orientation"
)

// Phase holds one operator input until the given scenario time.
type Phase struct {
	Until float64
	Input flight.RawInput
}

// Scenario is a scripted offline flight.
type Scenario struct {
	Name        string
	Description string
	Duration    float64
	// Tune adjusts the controller config before the run; may be nil.
	Tune func(*flight.Config)
	// Spawn is the body's starting pose; nil spawns at the reference.
	Spawn  *orientation.Pose
	Phases []Phase
}

func (s Scenario) inputAt(t float64) flight.RawInput {
	for _, p := range s.Phases {
		if t < p.Until {
			return p.Input
		}
	}
	return flight.RawInput{}
}

// Scenarios are the built-in scripts, by name.
var Scenarios = map[string]Scenario{
	"hover": {
		Name:        "hover",
		Description: "full throttle from the reference pose",
		Duration:    5,
		Phases:      []Phase{{Until: 5, Input: flight.RawInput{Left: mgl64.Vec2{0, 1}}}},
	},
	"release": {
		Name:        "release",
		Description: "no input from level; the no-input timeout fires once",
		Duration:    3,
	},
	"flip": {
		Name:        "flip",
		Description: "spawned upside down, emergency flip key pressed",
		Duration:    12,
		Tune:        func(c *flight.Config) { c.InitialRotation = orientation.Pose{} },
		Spawn:       &orientation.Pose{Roll: 180},
		Phases: []Phase{
			{Until: 0.03},
			{Until: 0.05, Input: flight.RawInput{Keys: flight.KeyEmergencyFlip}},
		},
	},
	"tilt": {
		Name:        "tilt",
		Description: "released at 45 degrees off the reference pose",
		Duration:    10,
		Spawn:       &orientation.Pose{Pitch: -45, Yaw: -122},
	},
}

// ScenarioResult summarizes a run.
type ScenarioResult struct {
	Name          string
	Ticks         int
	Transitions   []flight.Event
	EventCounts   map[flight.EventKind]int
	MaxTilt       float64
	FinalTilt     float64
	FinalRegime   flight.Regime
	FinalThrust   float64
	EverInverted  bool
	FinalAltitude float64
}

// scenarioSink collects what the summary needs.
type scenarioSink struct {
	res *ScenarioResult
}

func (s scenarioSink) Emit(e flight.Event) {
	s.res.EventCounts[e.Kind]++
	if e.Kind == flight.EventRegimeChanged {
		s.res.Transitions = append(s.res.Transitions, e)
	}
	if e.Kind == flight.EventInversionLatched || e.Kind == flight.EventEmergencyFlip {
		s.res.EverInverted = true
	}
}

// Simulate flies a scenario against the rigid body with a fixed dt.
func Simulate(sc Scenario, fc flight.Config, mass, dt float64) (ScenarioResult, error) {
	if dt <= 0 {
		return ScenarioResult{}, fmt.Errorf("scenario %s: dt must be positive", sc.Name)
	}
	if sc.Tune != nil {
		sc.Tune(&fc)
	}

	res := ScenarioResult{Name: sc.Name, EventCounts: make(map[flight.EventKind]int)}
	sticks := link.NewLatest(time.Duration(math.MaxInt64))
	pilot, err := NewPilot(fc, mass, sticks, scenarioSink{res: &res}, nil)
	if err != nil {
		return res, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if sc.Spawn != nil {
		pilot.Body().Reset(*sc.Spawn)
	}

	ticks := int(math.Round(sc.Duration / dt))
	for i := 0; i < ticks; i++ {
		sticks.Put(sc.inputAt(float64(i) * dt))
		pilot.Tick(dt)
		res.MaxTilt = math.Max(res.MaxTilt, pilot.Controller().State().TiltDeg)
	}

	s := pilot.Controller().State()
	res.Ticks = ticks
	res.FinalTilt = s.TiltDeg
	res.FinalRegime = s.Regime
	res.FinalThrust = s.CurrentThrust
	res.FinalAltitude = pilot.Body().Position().Y()
	return res, nil
}

// WriteSummary prints a human-readable report.
func (r ScenarioResult) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "== %s (%d ticks)\n", r.Name, r.Ticks)
	for _, e := range r.Transitions {
		fmt.Fprintf(w, "  t=%6.2f  %-18s -> %-18s tilt=%6.1f mode=%s\n", e.Time, e.From, e.To, e.TiltDeg, e.Mode)
	}

	kinds := make([]string, 0, len(r.EventCounts))
	for k := range r.EventCounts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	counts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		counts = append(counts, fmt.Sprintf("%s=%d", k, r.EventCounts[flight.EventKind(k)]))
	}
	fmt.Fprintf(w, "  events: %s\n", strings.Join(counts, " "))
	fmt.Fprintf(w, "  final: regime=%s tilt=%.2f max_tilt=%.2f thrust=%.2f alt=%.2f inverted_seen=%t\n",
		r.FinalRegime, r.FinalTilt, r.MaxTilt, r.FinalThrust, r.FinalAltitude, r.EverInverted)
}

// ScenarioNames lists the built-in scenarios in order.
func ScenarioNames() []string {
	names := make([]string, 0, len(Scenarios))
	for n := range Scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunScenario runs the named scenarios (all when none are given) with the
// global config's tuning and tick, writing a summary per run to w. Without
// a loaded config the defaults are used.
func RunScenario(w io.Writer, names ...string) error {
	cfg := config.Get()
	if cfg == nil {
		cfg = config.Default()
	}
	fc, err := cfg.Controller()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = ScenarioNames()
	}

	dt := cfg.Tick().Seconds()
	for _, name := range names {
		sc, ok := Scenarios[name]
		if !ok {
			return fmt.Errorf("unknown scenario %q (have %s)", name, strings.Join(ScenarioNames(), ", "))
		}
		slog.Info("headless: running scenario", "name", name, "description", sc.Description, "dt", dt)
		res, err := Simulate(sc, fc, cfg.VehicleMass, dt)
		if err != nil {
			return err
		}
		res.WriteSummary(w)
	}
	return nil
}
