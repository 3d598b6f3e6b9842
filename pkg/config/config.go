// Package config holds the constants that tune the motion controller and
// the hardware wiring, loaded from a YAML file over built-in defaults.
package config

import (
	"fmt"
	"io/ioutil"
	"math"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/mux"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/picobldc"
)

// Backends understood by the hardware package.
const (
	BackendGPIO  = "gpio"
	BackendBoard = "board"
	BackendSim   = "sim"
	BackendDummy = "dummy"
)

type Config struct {
	Control  Constants `yaml:"control"`
	Hardware Hardware  `yaml:"hardware"`
	Power    Power     `yaml:"power"`
	Sound    Sound     `yaml:"sound"`
	Screen   Screen    `yaml:"screen"`
}

// Constants are fixed at startup and never change while the control loop
// runs.
type Constants struct {
	FrequencyHz float64 `yaml:"frequency_hz"`

	// How far from the target is acceptable before stopping.
	StoppingError float64 `yaml:"stopping_error"`
	// How much the two wheels can differ before we compensate.
	DifferenceError float64 `yaml:"difference_error"`

	TurnDistance    float64 `yaml:"turn_distance"`
	TurnSpeed       float64 `yaml:"turn_speed"`
	CatchupModifier float64 `yaml:"catchup_modifier"`
	MoveSpeed       float64 `yaml:"move_speed"`

	Chassis Chassis `yaml:"chassis"`

	// Print a line per tick.
	Verbose bool `yaml:"verbose"`
}

type Chassis struct {
	WheelDiameterMM    float64 `yaml:"wheel_diameter_mm"`
	TravelPerCommandMM float64 `yaml:"travel_per_command_mm"`
}

type Hardware struct {
	Backend string `yaml:"backend"`
	GPIO    GPIO   `yaml:"gpio"`
	Board   Board  `yaml:"board"`
	Sim     Sim    `yaml:"sim"`
}

// GPIO describes phase/enable motor drivers and quadrature encoders wired
// straight to the Pi's header.  Pin names are anything periph's gpioreg
// understands, e.g. "GPIO19".
type GPIO struct {
	LeftMotor    MotorPins   `yaml:"left_motor"`
	RightMotor   MotorPins   `yaml:"right_motor"`
	LeftEncoder  EncoderPins `yaml:"left_encoder"`
	RightEncoder EncoderPins `yaml:"right_encoder"`
	PWMHz        int         `yaml:"pwm_hz"`
	// Encoder steps per controller step unit.  1 reports raw steps.
	CountsPerUnit float64 `yaml:"counts_per_unit"`
}

type MotorPins struct {
	Phase  string `yaml:"phase"`
	Enable string `yaml:"enable"`
}

type EncoderPins struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Board is an I2C motor controller board that does its own encoder
// counting, optionally behind an I2C multiplexer.
type Board struct {
	Device  string `yaml:"device"`
	Address int    `yaml:"address"`
	// Mux port the board sits behind, or -1 for no mux.
	MuxPort      int `yaml:"mux_port"`
	LeftChannel  int `yaml:"left_channel"`
	RightChannel int `yaml:"right_channel"`
	// Register value that corresponds to full speed.
	FullScale int `yaml:"full_scale"`
	// The board stops its motors if the bus goes quiet for this long.
	// 0 disables the watchdog.
	WatchdogMS int `yaml:"watchdog_ms"`
}

type Sim struct {
	// Encoder units per second at full speed.
	UnitsPerSecond float64 `yaml:"units_per_second"`
	// 1 or -1; -1 models a mirrored wheel.
	LeftPolarity  int `yaml:"left_polarity"`
	RightPolarity int `yaml:"right_polarity"`
}

type Power struct {
	Enabled    bool    `yaml:"enabled"`
	Device     string  `yaml:"device"`
	Address    int     `yaml:"address"`
	ShuntOhms  float64 `yaml:"shunt_ohms"`
	MaxCurrent float64 `yaml:"max_current"`
}

type Sound struct {
	Start   string `yaml:"start"`
	Reached string `yaml:"reached"`
	Fault   string `yaml:"fault"`
}

type Screen struct {
	Device string `yaml:"device"`
	PNG    string `yaml:"png"`
}

// Default returns the stock configuration: the control constants of the
// original motor module and its pin map.
func Default() Config {
	return Config{
		Control: DefaultConstants(),
		Hardware: Hardware{
			Backend: BackendGPIO,
			GPIO: GPIO{
				LeftMotor:     MotorPins{Phase: "GPIO19", Enable: "GPIO26"},
				RightMotor:    MotorPins{Phase: "GPIO6", Enable: "GPIO13"},
				LeftEncoder:   EncoderPins{A: "GPIO23", B: "GPIO24"},
				RightEncoder:  EncoderPins{A: "GPIO14", B: "GPIO15"},
				PWMHz:         100,
				CountsPerUnit: 1,
			},
			Board: Board{
				Device:       "/dev/i2c-1",
				Address:      0x42,
				MuxPort:      -1,
				LeftChannel:  0,
				RightChannel: 1,
				FullScale:    4096,
				WatchdogMS:   250,
			},
			Sim: Sim{
				UnitsPerSecond: 5,
				LeftPolarity:   1,
				RightPolarity:  1,
			},
		},
		Power: Power{
			Device:     "/dev/i2c-1",
			Address:    0x41,
			ShuntOhms:  0.1,
			MaxCurrent: 3.2,
		},
		Screen: Screen{
			Device: "/dev/fb1",
		},
	}
}

func DefaultConstants() Constants {
	return Constants{
		FrequencyHz:     100,
		StoppingError:   0.1,
		DifferenceError: 0.1,
		TurnDistance:    1.0,
		TurnSpeed:       1.0,
		CatchupModifier: 1.1,
		MoveSpeed:       1.0,
		Chassis: Chassis{
			WheelDiameterMM:    chassis.WheelDiameterMM,
			TravelPerCommandMM: chassis.TravelPerCommandMM,
		},
	}
}

// MoveRotations is the wheel rotations that one forward command adds to
// each wheel's target.
func (c Constants) MoveRotations() float64 {
	return chassis.MoveRotations(c.Chassis.TravelPerCommandMM, c.Chassis.WheelDiameterMM)
}

// TickPeriod is the control loop period, 1/FrequencyHz.
func (c Constants) TickPeriod() time.Duration {
	if c.FrequencyHz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.FrequencyHz)
}

// Error reports an invalid configuration value.
type Error struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config %s=%v: %s", e.Field, e.Value, e.Reason)
}

func nonNegative(field string, v float64) error {
	if math.IsNaN(v) || v < 0 {
		return &Error{Field: field, Value: v, Reason: "must not be negative"}
	}
	return nil
}

func unitRange(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &Error{Field: field, Value: v, Reason: "must be in [0, 1]"}
	}
	return nil
}

// Validate checks the invariants of the control constants.
func (c Constants) Validate() error {
	if math.IsNaN(c.FrequencyHz) || c.FrequencyHz <= 0 {
		return &Error{Field: "frequency_hz", Value: c.FrequencyHz, Reason: "must be positive"}
	}
	for _, check := range []error{
		nonNegative("stopping_error", c.StoppingError),
		nonNegative("difference_error", c.DifferenceError),
		nonNegative("turn_distance", c.TurnDistance),
		unitRange("turn_speed", c.TurnSpeed),
		unitRange("move_speed", c.MoveSpeed),
		nonNegative("chassis.travel_per_command_mm", c.Chassis.TravelPerCommandMM),
	} {
		if check != nil {
			return check
		}
	}
	if math.IsNaN(c.CatchupModifier) || c.CatchupModifier < 1.0 {
		return &Error{Field: "catchup_modifier", Value: c.CatchupModifier, Reason: "must be at least 1.0"}
	}
	if math.IsNaN(c.Chassis.WheelDiameterMM) || c.Chassis.WheelDiameterMM <= 0 {
		return &Error{Field: "chassis.wheel_diameter_mm", Value: c.Chassis.WheelDiameterMM, Reason: "must be positive"}
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Control.Validate(); err != nil {
		return err
	}
	hw := &c.Hardware
	switch hw.Backend {
	case BackendGPIO:
		if hw.GPIO.CountsPerUnit <= 0 {
			return &Error{Field: "hardware.gpio.counts_per_unit", Value: hw.GPIO.CountsPerUnit, Reason: "must be positive"}
		}
		if hw.GPIO.PWMHz <= 0 {
			return &Error{Field: "hardware.gpio.pwm_hz", Value: hw.GPIO.PWMHz, Reason: "must be positive"}
		}
	case BackendBoard:
		if hw.Board.FullScale <= 0 || hw.Board.FullScale > math.MaxInt16 {
			return &Error{Field: "hardware.board.full_scale", Value: hw.Board.FullScale, Reason: "must be in (0, 32767]"}
		}
		for _, ch := range []struct {
			field string
			value int
		}{
			{"hardware.board.left_channel", hw.Board.LeftChannel},
			{"hardware.board.right_channel", hw.Board.RightChannel},
		} {
			if ch.value < 0 || ch.value >= picobldc.NumMotors {
				return &Error{Field: ch.field, Value: ch.value, Reason: fmt.Sprintf("must be in [0, %d)", picobldc.NumMotors)}
			}
		}
		if hw.Board.LeftChannel == hw.Board.RightChannel {
			return &Error{Field: "hardware.board.right_channel", Value: hw.Board.RightChannel, Reason: "must differ from left_channel"}
		}
		if hw.Board.MuxPort < -1 || hw.Board.MuxPort >= mux.NumPorts {
			return &Error{Field: "hardware.board.mux_port", Value: hw.Board.MuxPort, Reason: fmt.Sprintf("must be -1 or in [0, %d)", mux.NumPorts)}
		}
		if hw.Board.WatchdogMS < 0 || hw.Board.WatchdogMS > math.MaxUint16 {
			return &Error{Field: "hardware.board.watchdog_ms", Value: hw.Board.WatchdogMS, Reason: "must be in [0, 65535]"}
		}
	case BackendSim:
		if hw.Sim.UnitsPerSecond <= 0 {
			return &Error{Field: "hardware.sim.units_per_second", Value: hw.Sim.UnitsPerSecond, Reason: "must be positive"}
		}
		for field, p := range map[string]int{
			"hardware.sim.left_polarity":  hw.Sim.LeftPolarity,
			"hardware.sim.right_polarity": hw.Sim.RightPolarity,
		} {
			if p != 1 && p != -1 {
				return &Error{Field: field, Value: p, Reason: "must be 1 or -1"}
			}
		}
	case BackendDummy:
	default:
		return &Error{Field: "hardware.backend", Value: hw.Backend, Reason: "unknown backend"}
	}
	return nil
}

// Parse reads YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads the config file at path.  An empty path gives the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Default(), errors.Wrapf(err, "reading config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return cfg, errors.WithMessage(err, path)
	}
	return cfg, nil
}

func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	return data, errors.Wrap(err, "marshalling config")
}

// WriteInUse writes out the config that we are actually running with.
func WriteInUse(cfg *Config, path string) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return errors.Wrapf(ioutil.WriteFile(path, data, 0666), "writing %s", path)
}
