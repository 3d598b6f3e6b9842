// Package joystick reads a Linux joystick device (/dev/input/jsN) and turns
// D-pad and left stick pushes into direction commands.
package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

// Button and pad mappings:
//
// Buttons
//
//    Square    = 0
//    Cross     = 1
//    Circle    = 2
//    Triangle  = 3
//    L1        = 4
//    R1        = 5
//    L2        = 6 (also an axis)
//    R2        = 7 (also an axis)
//    Share     = 8
//    Options   = 9
//    L stick   = 10
//    R stick   = 11
//    PS        = 12
//    Pad click = 13
//
// Axes
//
//    D-pad   u/d = 7 (up = -32767; down = +32767)
//            l/r = 6 (left = -32767; right = +32767)
//    L stick u/d = 1 (up = -32767; down = +32767)
//            l/r = 0 (left = -32767; right = +32767)
//    R stick u/d = 4 (up = -32767; down = +32767)
//            l/r = 3 (left = -32767; right = +32767)
//    L2          = 2 (unpressed = -32767; fully-pressed = 32767)
//    R2          = 5 (unpressed = -32767; fully-pressed = 32767)

type EventType uint8

const (
	EventTypeButton = 1
	EventTypeAxis   = 2
)

const (
	ButtonSquare   = 3
	ButtonCross    = 0
	ButtonCircle   = 1
	ButtonTriangle = 2
	ButtonL1       = 4
	ButtonR1       = 5
	ButtonL2       = 6
	ButtonR2       = 7
	ButtonShare    = 8
	ButtonOptions  = 9
	ButtonLStick   = 11
	ButtonRStick   = 12
	ButtonPS       = 10
	//ButtonPadClick =

	AxisLStickX = 0
	AxisLStickY = 1
	AxisRStickX = 3
	AxisRStickY = 4
	AxisDPadX   = 6
	AxisDPadY   = 7
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type Joystick struct {
	device io.ReadCloser

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

func NewJoystick(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, err
	}
	return FromReader(f), nil
}

// FromReader reads raw joystick events from r.
func FromReader(r io.ReadCloser) *Joystick {
	return &Joystick{
		device: r,
	}
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var rawEvent rawEvent
	err := binary.Read(j.device, binary.LittleEndian, &rawEvent)
	if err != nil {
		return nil, err
	}

	if j.deviceEpoch == 0 {
		j.deviceEpoch = rawEvent.Time
		j.wallclockEpoch = time.Now()
	}

	return &Event{
		Time:   j.wallclockEpoch.Add(time.Duration(rawEvent.Time-j.deviceEpoch) * time.Millisecond),
		Value:  rawEvent.Value,
		Type:   EventType(rawEvent.Type & 0x7f),
		Number: rawEvent.Number,
	}, nil
}

func (j *Joystick) Close() error {
	return j.device.Close()
}

// Stick positions beyond this count as a push.
const pushThreshold = 16000

// Mapper turns axis events into direction commands.  A push only counts
// once; the axis has to return to centre before it can fire again.
type Mapper struct {
	pushed map[uint8]bool
}

func NewMapper() *Mapper {
	return &Mapper{pushed: map[uint8]bool{}}
}

// Map returns the direction e asks for, if any.
func (m *Mapper) Map(e *Event) (direction.Direction, bool) {
	if e.Type != EventTypeAxis {
		return direction.Forward, false
	}
	var negative, positive direction.Direction
	switch e.Number {
	case AxisDPadY, AxisLStickY:
		negative, positive = direction.Forward, direction.Backward
	case AxisDPadX, AxisLStickX:
		negative, positive = direction.Left, direction.Right
	default:
		return direction.Forward, false
	}

	if e.Value > -pushThreshold && e.Value < pushThreshold {
		m.pushed[e.Number] = false
		return direction.Forward, false
	}
	if m.pushed[e.Number] {
		return direction.Forward, false
	}
	m.pushed[e.Number] = true
	if e.Value < 0 {
		return negative, true
	}
	return positive, true
}

// Loop reads events until the device is closed or fails, queueing a
// command on sink for each push.
func (j *Joystick) Loop(ctx context.Context, sink controller.Sink) error {
	m := NewMapper()
	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading joystick")
		}
		if d, ok := m.Map(event); ok {
			fmt.Println("Joy:", event, "->", d)
			sink.Enqueue(d)
		}
	}
	return nil
}
