package hardware

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
)

const edgeTimeout = 100 * time.Millisecond

// GPIO drives phase/enable motor drivers and reads quadrature encoders
// wired to the Pi header.
type GPIO struct {
	left, right       *phaseEnableMotor
	leftEnc, rightEnc *rotaryEncoder

	wg sync.WaitGroup
}

func NewGPIO(cfg config.GPIO) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initialising periph")
	}

	g := &GPIO{}
	var err error
	freq := physic.Frequency(cfg.PWMHz) * physic.Hertz
	if g.left, err = newPhaseEnableMotor(LeftWheel, cfg.LeftMotor, freq); err != nil {
		return nil, err
	}
	if g.right, err = newPhaseEnableMotor(RightWheel, cfg.RightMotor, freq); err != nil {
		return nil, err
	}
	if g.leftEnc, err = newRotaryEncoder(cfg.LeftEncoder, cfg.CountsPerUnit); err != nil {
		return nil, err
	}
	if g.rightEnc, err = newRotaryEncoder(cfg.RightEncoder, cfg.CountsPerUnit); err != nil {
		return nil, err
	}
	return g, nil
}

var _ Interface = (*GPIO)(nil)

func (g *GPIO) Start(ctx context.Context) {
	for _, e := range []*rotaryEncoder{g.leftEnc, g.rightEnc} {
		for _, pin := range []gpio.PinIn{e.a, e.b} {
			g.wg.Add(1)
			go e.watch(ctx, &g.wg, pin)
		}
	}
}

func (g *GPIO) LeftMotor() Motor {
	return g.left
}

func (g *GPIO) RightMotor() Motor {
	return g.right
}

func (g *GPIO) LeftSteps() (float64, error) {
	return g.leftEnc.steps(), nil
}

func (g *GPIO) RightSteps() (float64, error) {
	return g.rightEnc.steps(), nil
}

// Shutdown stops the motors and waits for the edge watchers, which exit
// once the context passed to Start is cancelled.
func (g *GPIO) Shutdown() {
	for _, m := range []*phaseEnableMotor{g.left, g.right} {
		if err := m.Stop(); err != nil {
			fmt.Println("HW: Failed to stop", m.wheel, "motor:", err)
		}
	}
	g.wg.Wait()
}

func lookupPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no such GPIO pin %q", name)
	}
	return p, nil
}

// phaseEnableMotor drives an H-bridge with one pin choosing the direction
// and a PWM pin setting the speed.
type phaseEnableMotor struct {
	wheel         Wheel
	phase, enable gpio.PinIO
	freq          physic.Frequency
}

func newPhaseEnableMotor(w Wheel, pins config.MotorPins, freq physic.Frequency) (*phaseEnableMotor, error) {
	phase, err := lookupPin(pins.Phase)
	if err != nil {
		return nil, err
	}
	enable, err := lookupPin(pins.Enable)
	if err != nil {
		return nil, err
	}
	m := &phaseEnableMotor{wheel: w, phase: phase, enable: enable, freq: freq}
	if err := m.Stop(); err != nil {
		return nil, errors.Wrapf(err, "initialising %v motor", w)
	}
	return m, nil
}

func (m *phaseEnableMotor) Forward(speed float64) error {
	return m.drive(gpio.Low, speed)
}

func (m *phaseEnableMotor) Backward(speed float64) error {
	return m.drive(gpio.High, speed)
}

func (m *phaseEnableMotor) Stop() error {
	return m.enable.Out(gpio.Low)
}

func (m *phaseEnableMotor) drive(phase gpio.Level, speed float64) error {
	if err := m.phase.Out(phase); err != nil {
		return err
	}
	speed = clampSpeed(speed)
	if speed == 0 {
		return m.enable.Out(gpio.Low)
	}
	return m.enable.PWM(gpio.Duty(speed*float64(gpio.DutyMax)), m.freq)
}

// rotaryEncoder counts quadrature steps on two pulled-up input pins, which
// read low while active.
type rotaryEncoder struct {
	a, b          gpio.PinIO
	countsPerUnit float64

	lock    sync.Mutex
	decoder quadrature
	count   int64
}

func newRotaryEncoder(pins config.EncoderPins, countsPerUnit float64) (*rotaryEncoder, error) {
	e := &rotaryEncoder{countsPerUnit: countsPerUnit}
	var err error
	if e.a, err = lookupPin(pins.A); err != nil {
		return nil, err
	}
	if e.b, err = lookupPin(pins.B); err != nil {
		return nil, err
	}
	for _, p := range []gpio.PinIO{e.a, e.b} {
		if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return nil, errors.Wrapf(err, "configuring encoder pin %s", p)
		}
	}
	return e, nil
}

func (e *rotaryEncoder) watch(ctx context.Context, wg *sync.WaitGroup, pin gpio.PinIn) {
	defer wg.Done()
	for ctx.Err() == nil {
		if pin.WaitForEdge(edgeTimeout) {
			e.sample()
		}
	}
}

func (e *rotaryEncoder) sample() {
	e.lock.Lock()
	step := e.decoder.update(e.a.Read() == gpio.Low, e.b.Read() == gpio.Low)
	e.lock.Unlock()
	if step != 0 {
		atomic.AddInt64(&e.count, int64(step))
	}
}

func (e *rotaryEncoder) steps() float64 {
	return float64(atomic.LoadInt64(&e.count)) / e.countsPerUnit
}
