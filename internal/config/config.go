package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/orientation"
)

// ErrUnknownKey is returned for keys the loader does not know.
var ErrUnknownKey = errors.New("unknown config key")

// Stick sources.
const (
	StickSourceMQTT   = "mqtt"
	StickSourceSerial = "serial"
	StickSourceNone   = "none"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDPilot   string
	MQTTClientIDSticks  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicTelemetry string
	TopicEvents    string
	TopicSticks    string

	// Stick link
	StickSource     string // "mqtt", "serial" or "none"
	StickSerialPort string
	StickBaudRate   int
	StickStaleMS    int

	// Timing
	TickInterval    int     // milliseconds
	TelemetryRateHz float64 // frames per second, events are never throttled

	// Servers
	WebServerPort int
	MetricsPort   int

	// Logging: debug, info, warn or error
	LogLevel string

	// Vehicle
	VehicleMass float64

	// Controller tuning; unset keys keep flight.DefaultConfig values.
	Flight flight.Config
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages go through InitGlobal/Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex; write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a config with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDPilot:   "flight-pilot",
		MQTTClientIDSticks:  "flight-sticks",
		MQTTClientIDConsole: "flight-console",
		MQTTClientIDWeb:     "flight-web",

		TopicTelemetry: "flight/telemetry",
		TopicEvents:    "flight/events",
		TopicSticks:    "flight/sticks",

		StickSource:   StickSourceMQTT,
		StickBaudRate: 115200,
		StickStaleMS:  500,

		TickInterval:    20,
		TelemetryRateHz: 10,

		WebServerPort: 8080,
		MetricsPort:   9102,

		LogLevel: "info",

		VehicleMass: 1.2,

		Flight: flight.DefaultConfig(),
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	f := &c.Flight
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PILOT":
		c.MQTTClientIDPilot = value
	case "MQTT_CLIENT_ID_STICKS":
		c.MQTTClientIDSticks = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_TELEMETRY":
		c.TopicTelemetry = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_STICKS":
		c.TopicSticks = value

	// Stick link
	case "STICK_SOURCE":
		switch value {
		case StickSourceMQTT, StickSourceSerial, StickSourceNone:
			c.StickSource = value
		default:
			return fmt.Errorf("STICK_SOURCE must be mqtt, serial or none, got %q", value)
		}
	case "STICK_SERIAL_PORT":
		c.StickSerialPort = value
	case "STICK_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STICK_BAUD_RATE %q: %w", value, err)
		}
		c.StickBaudRate = rate
	case "STICK_STALE_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STICK_STALE_MS %q: %w", value, err)
		}
		c.StickStaleMS = ms

	// Timing
	case "TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL %q: %w", value, err)
		}
		c.TickInterval = interval
	case "TELEMETRY_RATE_HZ":
		return parseFloat(key, value, &c.TelemetryRateHz)

	// Servers
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "METRICS_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid METRICS_PORT %q: %w", value, err)
		}
		c.MetricsPort = port

	case "LOG_LEVEL":
		if _, err := ParseLevel(value); err != nil {
			return err
		}
		c.LogLevel = value

	// Vehicle
	case "VEHICLE_MASS":
		return parseFloat(key, value, &c.VehicleMass)
	case "GRAVITY":
		return parseFloat(key, value, &f.Gravity)
	case "INITIAL_ROTATION":
		pose, err := parsePose(value)
		if err != nil {
			return fmt.Errorf("invalid INITIAL_ROTATION %q: %w", value, err)
		}
		f.InitialRotation = pose

	// Drone physics
	case "MAX_THRUST_FORCE":
		return parseFloat(key, value, &f.MaxThrustForce)
	case "TILT_FORCE":
		return parseFloat(key, value, &f.TiltForce)
	case "YAW_FORCE":
		return parseFloat(key, value, &f.YawForce)
	case "MOVEMENT_SPEED":
		return parseFloat(key, value, &f.MovementSpeed)

	// Tilt limits
	case "MAX_FORWARD_TILT":
		return parseFloat(key, value, &f.MaxForwardTilt)
	case "MAX_BACKWARD_TILT":
		return parseFloat(key, value, &f.MaxBackwardTilt)
	case "MAX_SIDE_TILT":
		return parseFloat(key, value, &f.MaxSideTilt)

	// Auto leveling
	case "AUTO_LEVEL":
		return parseBool(key, value, &f.AutoLevel)
	case "LEVELING_STRENGTH":
		return parseFloat(key, value, &f.LevelingStrength)
	case "LEVELING_RESPONSE_SPEED":
		return parseFloat(key, value, &f.LevelingResponseSpeed)

	// Stabilization
	case "AUTO_STABILIZE":
		return parseBool(key, value, &f.AutoStabilize)
	case "STABILIZATION_STRENGTH":
		return parseFloat(key, value, &f.StabilizationStrength)
	case "YAW_STABILIZATION_MULTIPLIER":
		return parseFloat(key, value, &f.YawStabilizationMultiplier)

	// Emergency recovery
	case "EMERGENCY_RECOVERY":
		return parseBool(key, value, &f.EmergencyRecovery)
	case "RECOVERY_THRESHOLD":
		return parseFloat(key, value, &f.RecoveryThreshold)
	case "RECOVERY_STRENGTH":
		return parseFloat(key, value, &f.RecoveryStrength)
	case "USER_OVERRIDE_STRENGTH":
		return parseFloat(key, value, &f.UserOverrideStrength)
	case "NO_INPUT_TIMEOUT":
		return parseFloat(key, value, &f.NoInputTimeout)
	case "HOLD_HEADING_IN_RECOVERY":
		return parseBool(key, value, &f.HoldHeadingInRecovery)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	return nil
}

func parseFloat(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func parseBool(key, value string, dst *bool) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// parsePose reads "pitch,yaw,roll" in degrees, the order the reference
// rotation has always been written in.
func parsePose(value string) (orientation.Pose, error) {
	fields := strings.Split(value, ",")
	if len(fields) != 3 {
		return orientation.Pose{}, fmt.Errorf("want pitch,yaw,roll")
	}
	var v [3]float64
	for i, s := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return orientation.Pose{}, err
		}
		v[i] = x
	}
	return orientation.Pose{Pitch: v[0], Yaw: v[1], Roll: v[2]}, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" && c.StickSource == StickSourceMQTT {
		return fmt.Errorf("MQTT_BROKER is required for STICK_SOURCE=mqtt")
	}
	if c.StickSource == StickSourceSerial && c.StickSerialPort == "" {
		return fmt.Errorf("STICK_SERIAL_PORT is required for STICK_SOURCE=serial")
	}
	if c.StickBaudRate <= 0 {
		return fmt.Errorf("STICK_BAUD_RATE must be positive")
	}
	if c.StickStaleMS <= 0 {
		return fmt.Errorf("STICK_STALE_MS must be positive")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if c.TelemetryRateHz <= 0 {
		return fmt.Errorf("TELEMETRY_RATE_HZ must be positive")
	}
	if c.VehicleMass <= 0 {
		return fmt.Errorf("VEHICLE_MASS must be positive")
	}
	if err := c.Flight.Validate(); err != nil {
		return fmt.Errorf("controller tuning: %w", err)
	}
	return nil
}

// Controller returns the validated controller tuning.
func (c *Config) Controller() (flight.Config, error) {
	if err := c.Flight.Validate(); err != nil {
		return flight.Config{}, err
	}
	return c.Flight, nil
}

// Tick returns the fixed physics step.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

// StaleAfter returns how long a stick frame stays fresh.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StickStaleMS) * time.Millisecond
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return lvl, nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
