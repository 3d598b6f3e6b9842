package hardware

import (
	"context"
	"fmt"
)

// Motor drives one wheel.  Speeds are magnitudes in [0, 1]; the direction
// is chosen by the method.  Calls are fire-and-forget and must return
// quickly.
type Motor interface {
	Forward(speed float64) error
	Backward(speed float64) error
	Stop() error
}

// EncoderFeed reports the cumulative, signed position of each wheel in
// step units.  Reads must not block.
type EncoderFeed interface {
	LeftSteps() (float64, error)
	RightSteps() (float64, error)
}

// SupplyMonitor is implemented by drives that can measure their own
// battery.
type SupplyMonitor interface {
	SupplyVolts() (float64, error)
}

var _ SupplyMonitor = (*Board)(nil)

// Interface is a complete two wheel drive: a motor per wheel and the
// encoders that measure them.
type Interface interface {
	EncoderFeed
	LeftMotor() Motor
	RightMotor() Motor

	// Start kicks off any background goroutines (edge watchers, bus
	// loops, simulation); they exit when ctx is cancelled.
	Start(ctx context.Context)
	// Shutdown stops both motors and releases the hardware.
	Shutdown()
}

type EncoderState struct {
	Left, Right float64
}

type Wheel int

const (
	LeftWheel Wheel = iota
	RightWheel
)

func (w Wheel) String() string {
	if w == LeftWheel {
		return "left"
	}
	return "right"
}

// Fault wraps an error returned by a motor or encoder driver.
type Fault struct {
	Op    string
	Wheel Wheel
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("hardware fault: %s %s: %v", f.Wheel, f.Op, f.Err)
}

func (f *Fault) Cause() error  { return f.Err }
func (f *Fault) Unwrap() error { return f.Err }

// ReadEncoders reads both wheels, wrapping any failure in a Fault.
func ReadEncoders(feed EncoderFeed) (EncoderState, error) {
	var s EncoderState
	var err error
	if s.Left, err = feed.LeftSteps(); err != nil {
		return s, &Fault{Op: "encoder read", Wheel: LeftWheel, Err: err}
	}
	if s.Right, err = feed.RightSteps(); err != nil {
		return s, &Fault{Op: "encoder read", Wheel: RightWheel, Err: err}
	}
	return s, nil
}

// clampSpeed keeps a requested speed inside the [0, 1] motor contract.
func clampSpeed(speed float64) float64 {
	if !(speed > 0) {
		return 0
	}
	if speed > 1 {
		return 1
	}
	return speed
}
