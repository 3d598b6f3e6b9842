package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
)

const simStep = time.Millisecond

// Sim is an idealised drive for running the controller without a robot.
// Each wheel's encoder moves at its commanded speed times UnitsPerSecond;
// Forward always counts up.  Polarity only affects the physical travel
// reported by Travel, modelling a wheel mounted mirrored.
type Sim struct {
	cfg config.Sim

	lock     sync.Mutex
	wheels   [2]simWheel
	readErr  error
	driveErr error

	left, right simMotor
}

type simWheel struct {
	speed    float64
	position float64
	travel   float64
	polarity float64
}

func NewSim(cfg config.Sim) *Sim {
	s := &Sim{cfg: cfg}
	s.wheels[LeftWheel].polarity = polarity(cfg.LeftPolarity)
	s.wheels[RightWheel].polarity = polarity(cfg.RightPolarity)
	s.left = simMotor{sim: s, wheel: LeftWheel}
	s.right = simMotor{sim: s, wheel: RightWheel}
	return s
}

func polarity(p int) float64 {
	if p < 0 {
		return -1
	}
	return 1
}

var _ Interface = (*Sim)(nil)

// Start advances the simulation in real time until ctx is cancelled.
// Tests usually call Advance directly instead.
func (s *Sim) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(simStep)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Advance(now.Sub(last))
				last = now
			}
		}
	}()
}

// Advance moves every wheel by its current speed for dt.
func (s *Sim) Advance(dt time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.wheels {
		w := &s.wheels[i]
		d := w.speed * s.cfg.UnitsPerSecond * dt.Seconds()
		w.position += d
		w.travel += d * w.polarity
	}
}

func (s *Sim) LeftMotor() Motor {
	return &s.left
}

func (s *Sim) RightMotor() Motor {
	return &s.right
}

func (s *Sim) LeftSteps() (float64, error) {
	return s.steps(LeftWheel)
}

func (s *Sim) RightSteps() (float64, error) {
	return s.steps(RightWheel)
}

func (s *Sim) steps(w Wheel) (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.wheels[w].position, nil
}

// Speeds returns the signed speed each wheel is currently driven at.
func (s *Sim) Speeds() (left, right float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.wheels[LeftWheel].speed, s.wheels[RightWheel].speed
}

// Travel returns how far each wheel has moved the chassis, forward
// positive.
func (s *Sim) Travel() (left, right float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.wheels[LeftWheel].travel, s.wheels[RightWheel].travel
}

// SetPosition jumps both encoders, e.g. to start a test at a known point.
func (s *Sim) SetPosition(left, right float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.wheels[LeftWheel].position = left
	s.wheels[RightWheel].position = right
}

// FailEncoders makes encoder reads return err until called with nil.
func (s *Sim) FailEncoders(err error) {
	s.lock.Lock()
	s.readErr = err
	s.lock.Unlock()
}

// FailMotors makes motor calls return err until called with nil.
func (s *Sim) FailMotors(err error) {
	s.lock.Lock()
	s.driveErr = err
	s.lock.Unlock()
}

func (s *Sim) Shutdown() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.wheels {
		s.wheels[i].speed = 0
	}
}

func (s *Sim) drive(w Wheel, speed float64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.driveErr != nil {
		return s.driveErr
	}
	s.wheels[w].speed = speed
	return nil
}

type simMotor struct {
	sim   *Sim
	wheel Wheel
}

func (m *simMotor) Forward(speed float64) error {
	return m.sim.drive(m.wheel, clampSpeed(speed))
}

func (m *simMotor) Backward(speed float64) error {
	return m.sim.drive(m.wheel, -clampSpeed(speed))
}

func (m *simMotor) Stop() error {
	return m.sim.drive(m.wheel, 0)
}
