package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/SpiderGo/internal/hw/channel"
	"github.com/cjeanneret/SpiderGo/internal/logic/geometry"
	"github.com/cjeanneret/SpiderGo/internal/logic/motion"
)

// MaxConfigFileBytes is the largest configuration file Load accepts.
const MaxConfigFileBytes = 1 << 20

// SerialConfig describes the command channel to the winch controllers.
type SerialConfig struct {
	Device        string `yaml:"device"`          // e.g., "/dev/ttyUSB0"
	Baud          int    `yaml:"baud"`            // default 9600
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // query response timeout (default 5000)
}

// PowerConfig describes the optional relay switching the controller supply.
type PowerConfig struct {
	RelayPin  int  `yaml:"relay_pin"`  // BCM pin. 0 = no relay.
	ActiveLow bool `yaml:"active_low"` // relay board energizes on LOW
}

// PlatformConfig holds the platform position at power up.
type PlatformConfig struct {
	Start geometry.Point3 `yaml:"start"`
}

// AxisConfig describes one winch.
type AxisConfig struct {
	ID       int             `yaml:"id"`
	Placed   geometry.Point3 `yaml:"placed"`   // anchor position in meters
	Diameter float64         `yaml:"diameter"` // winch diameter in meters
	Attached geometry.Point3 `yaml:"attached"` // attachment offset on the platform
}

// MotionConfig tunes moves and the controller protocol.
type MotionConfig struct {
	Velocity          float64 `yaml:"velocity"`           // default cable speed in m/s
	Tolerance         float64 `yaml:"tolerance"`          // position tolerance in m
	Resolution        float64 `yaml:"resolution"`         // line segment length in m
	Profile           string  `yaml:"profile"`            // constant | parabolic
	NumberFormat      string  `yaml:"number_format"`      // integer | fixed2
	AwaitCompletion   bool    `yaml:"await_completion"`   // append ;*OPC? to commands
	QueryAttempts     int     `yaml:"query_attempts"`     // default 3
	StuckPolls        int     `yaml:"stuck_polls"`        // default 20
	UnreachablePolls  int     `yaml:"unreachable_polls"`  // default 200
	UnreachablePolicy string  `yaml:"unreachable_policy"` // warn | error
	PollIntervalMs    int     `yaml:"poll_interval_ms"`   // default 50
	CommandDelayMs    int     `yaml:"command_delay_ms"`   // default 10
	MinRate           float64 `yaml:"min_rate"`           // deg/s, default 1
	MaxRate           float64 `yaml:"max_rate"`           // deg/s, default 1000
	ResolutionDeg     float64 `yaml:"resolution_deg"`     // default 1
}

// WaypointConfig is one stop of a route.
type WaypointConfig struct {
	Pos      geometry.Point3 `yaml:"pos"`
	Velocity float64         `yaml:"velocity"` // 0 = route velocity
	DwellMs  int             `yaml:"dwell_ms"` // wait after arrival
}

// RouteConfig is an optional list of waypoints run with -route.
type RouteConfig struct {
	Velocity  float64          `yaml:"velocity"` // 0 = motion.velocity
	Waypoints []WaypointConfig `yaml:"waypoints"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockSerial bool `yaml:"mock_serial"` // use the simulated controller instead of the serial port
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Power    PowerConfig    `yaml:"power"`
	Platform PlatformConfig `yaml:"platform"`
	Axes     []AxisConfig   `yaml:"axes"`
	Motion   MotionConfig   `yaml:"motion"`
	Route    RouteConfig    `yaml:"route"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Ext(abs) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be inside a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial.Device == "" {
		c.Serial.Device = "/dev/ttyUSB0"
	}
	if c.Serial.Baud <= 0 {
		c.Serial.Baud = 9600
	}
	if c.Serial.ReadTimeoutMs <= 0 {
		c.Serial.ReadTimeoutMs = 5000
	}

	m := &c.Motion
	d := motion.DefaultOptions()
	if m.Velocity == 0 {
		m.Velocity = 0.05 // 5 cm/s
	}
	if m.Tolerance == 0 {
		m.Tolerance = 0.001 // 1 mm
	}
	if m.Resolution == 0 {
		m.Resolution = 0.1 // 10 cm segments
	}
	if m.QueryAttempts == 0 {
		m.QueryAttempts = d.QueryAttempts
	}
	if m.StuckPolls == 0 {
		m.StuckPolls = d.StuckPolls
	}
	if m.UnreachablePolls == 0 {
		m.UnreachablePolls = d.UnreachablePolls
	}
	if m.PollIntervalMs == 0 {
		m.PollIntervalMs = int(d.PollInterval / time.Millisecond)
	}
	if m.CommandDelayMs == 0 {
		m.CommandDelayMs = int(d.CommandDelay / time.Millisecond)
	}
	if m.MinRate == 0 {
		m.MinRate = d.MinRate
	}
	if m.MaxRate == 0 {
		m.MaxRate = d.MaxRate
	}
	if m.ResolutionDeg == 0 {
		m.ResolutionDeg = d.ResolutionDeg
	}
	if c.Route.Velocity == 0 {
		c.Route.Velocity = m.Velocity
	}
}

func (c *Config) validate() error {
	if len(c.Axes) == 0 {
		return errors.New("axes: at least one axis is required")
	}
	if !c.Platform.Start.IsFinite() {
		return fmt.Errorf("platform.start must be finite, got %v", c.Platform.Start)
	}
	seen := make(map[int]bool, len(c.Axes))
	for i, ax := range c.Axes {
		if seen[ax.ID] {
			return fmt.Errorf("axes[%d]: duplicate id %d", i, ax.ID)
		}
		seen[ax.ID] = true
		if !positiveFinite(ax.Diameter) {
			return fmt.Errorf("axes[%d].diameter must be a finite number > 0, got %g", i, ax.Diameter)
		}
		if !ax.Placed.IsFinite() || !ax.Attached.IsFinite() {
			return fmt.Errorf("axes[%d]: placed and attached must be finite", i)
		}
	}

	m := c.Motion
	if !positiveFinite(m.Velocity) {
		return fmt.Errorf("motion.velocity must be > 0, got %g", m.Velocity)
	}
	if !positiveFinite(m.Tolerance) {
		return fmt.Errorf("motion.tolerance must be > 0, got %g", m.Tolerance)
	}
	if !positiveFinite(m.Resolution) {
		return fmt.Errorf("motion.resolution must be > 0, got %g", m.Resolution)
	}
	if m.QueryAttempts < 1 || m.StuckPolls < 1 || m.UnreachablePolls < 1 {
		return errors.New("motion: query_attempts, stuck_polls and unreachable_polls must be >= 1")
	}
	if m.PollIntervalMs < 0 || m.CommandDelayMs < 0 {
		return errors.New("motion: poll_interval_ms and command_delay_ms must be >= 0")
	}
	if m.MinRate <= 0 || m.MinRate > m.MaxRate {
		return fmt.Errorf("motion: need 0 < min_rate <= max_rate, got %g and %g", m.MinRate, m.MaxRate)
	}
	if m.ResolutionDeg <= 0 {
		return fmt.Errorf("motion.resolution_deg must be > 0, got %g", m.ResolutionDeg)
	}
	if _, err := motion.ParseProfile(m.Profile); err != nil {
		return fmt.Errorf("motion.profile: %w", err)
	}
	if _, err := channel.ParseNumberFormat(m.NumberFormat); err != nil {
		return fmt.Errorf("motion.number_format: %w", err)
	}
	if _, err := motion.ParseUnreachablePolicy(m.UnreachablePolicy); err != nil {
		return fmt.Errorf("motion.unreachable_policy: %w", err)
	}

	if c.Route.Velocity < 0 {
		return fmt.Errorf("route.velocity must be >= 0, got %g", c.Route.Velocity)
	}
	for i, wp := range c.Route.Waypoints {
		if !wp.Pos.IsFinite() {
			return fmt.Errorf("route.waypoints[%d].pos must be finite", i)
		}
		if wp.Velocity < 0 || wp.DwellMs < 0 {
			return fmt.Errorf("route.waypoints[%d]: velocity and dwell_ms must be >= 0", i)
		}
	}

	if c.Power.RelayPin < 0 {
		return fmt.Errorf("power.relay_pin must be >= 0, got %d", c.Power.RelayPin)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// ReadTimeout returns the query response timeout of the serial line.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Serial.ReadTimeoutMs) * time.Millisecond
}

// PollInterval returns the wait between two polling rounds.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Motion.PollIntervalMs) * time.Millisecond
}

// CommandDelay returns the wait after each controller command.
func (c *Config) CommandDelay() time.Duration {
	return time.Duration(c.Motion.CommandDelayMs) * time.Millisecond
}

// NumberFormat returns the wire format of numeric arguments.
func (c *Config) NumberFormat() channel.NumberFormat {
	f, _ := channel.ParseNumberFormat(c.Motion.NumberFormat)
	return f
}

// PositionerOptions returns the positioner options described by the motion section.
func (c *Config) PositionerOptions() motion.Options {
	policy, _ := motion.ParseUnreachablePolicy(c.Motion.UnreachablePolicy)
	m := c.Motion
	return motion.Options{
		QueryAttempts:    m.QueryAttempts,
		StuckPolls:       m.StuckPolls,
		UnreachablePolls: m.UnreachablePolls,
		Unreachable:      policy,
		MinRate:          m.MinRate,
		MaxRate:          m.MaxRate,
		ResolutionDeg:    m.ResolutionDeg,
		PollInterval:     c.PollInterval(),
		CommandDelay:     c.CommandDelay(),
		Format:           c.NumberFormat(),
		AwaitCompletion:  m.AwaitCompletion,
	}
}

// LineParams returns the line motion parameters for a cable speed of vel m/s.
// A vel of 0 uses motion.velocity.
func (c *Config) LineParams(vel float64) motion.LineParams {
	if vel <= 0 {
		vel = c.Motion.Velocity
	}
	profile, _ := motion.ParseProfile(c.Motion.Profile)
	return motion.LineParams{
		Velocity:   vel,
		Resolution: c.Motion.Resolution,
		Tolerance:  c.Motion.Tolerance,
		Profile:    profile,
	}
}

// AxisSpecs returns the configured axes in file order.
func (c *Config) AxisSpecs() []motion.AxisSpec {
	specs := make([]motion.AxisSpec, len(c.Axes))
	for i, ax := range c.Axes {
		specs[i] = motion.AxisSpec{ID: ax.ID, Placed: ax.Placed, Diameter: ax.Diameter, Attached: ax.Attached}
	}
	return specs
}

// Dwell returns the wait after arrival at a waypoint.
func (w WaypointConfig) Dwell() time.Duration {
	return time.Duration(w.DwellMs) * time.Millisecond
}

// SerialChannel returns the settings used to open the command channel.
func (c *Config) SerialChannel() channel.SerialConfig {
	return channel.SerialConfig{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.ReadTimeout(),
	}
}
