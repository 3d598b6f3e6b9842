// Package controller runs the fixed-rate feedback loop that drives both
// wheels to the targets planned from the command queue.
package controller

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/cmdqueue"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/odometry"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/planner"
)

type State int

const (
	// Idle: target reached and nothing queued.
	Idle State = iota
	// Seeking: driving towards the current target.
	Seeking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Seeking:
		return "SEEKING"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Sink accepts direction commands.  Every command source writes to one.
type Sink interface {
	Enqueue(d direction.Direction)
}

// Command describes a queued direction once it has been planned.
type Command struct {
	Direction    direction.Direction
	QuarterTurns int
	From, Target planner.WheelTarget
	Position     odometry.Position
}

// Observer is told about progress.  Calls are made from the control loop
// goroutine after the controller's lock has been released, so they may call
// back into the controller but must not block for long.
type Observer interface {
	CommandStarted(cmd Command)
	TargetReached(target planner.WheelTarget)
	HardwareFault(err error)
}

// Status is a snapshot of the controller for display.
type Status struct {
	State    State
	Heading  direction.Direction
	Target   planner.WheelTarget
	Encoders hardware.EncoderState

	// Signed speeds last sent to the motors, forward positive.
	LeftSpeed, RightSpeed float64

	Queued    int
	Pending   []direction.Direction
	Position  odometry.Position
	Executed  int
	Faults    int
	LastFault string
}

type Controller struct {
	consts   config.Constants
	left     hardware.Motor
	right    hardware.Motor
	encoders hardware.EncoderFeed
	queue    *cmdqueue.Queue
	grid     *odometry.Grid

	lock      sync.Mutex
	planner   *planner.Planner
	state     State
	target    planner.WheelTarget
	last      hardware.EncoderState
	speeds    [2]float64
	executed  int
	faults    int
	lastFault error
	observers []Observer

	// Observer calls queued up during a tick.
	pending []func()
}

func New(consts config.Constants, left, right hardware.Motor, encoders hardware.EncoderFeed) (*Controller, error) {
	if err := consts.Validate(); err != nil {
		return nil, errors.WithMessage(err, "control constants")
	}
	return &Controller{
		consts:   consts,
		left:     left,
		right:    right,
		encoders: encoders,
		queue:    cmdqueue.New(),
		grid:     odometry.New(),
		planner:  planner.New(consts.TurnDistance, consts.MoveRotations()),
		state:    Idle,
	}, nil
}

// NewForDrive wires a controller to both motors and the encoders of hw.
func NewForDrive(consts config.Constants, hw hardware.Interface) (*Controller, error) {
	return New(consts, hw.LeftMotor(), hw.RightMotor(), hw)
}

func (c *Controller) AddObserver(o Observer) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.observers = append(c.observers, o)
}

// Enqueue adds a command to the back of the queue.  It is safe to call from
// any goroutine.
func (c *Controller) Enqueue(d direction.Direction) {
	c.queue.Enqueue(d)
	fmt.Printf("CTL: Queued %v (%d waiting)\n", d, c.queue.Len())
}

// ClearQueue drops every command that has not started yet.
func (c *Controller) ClearQueue() {
	c.queue.Clear()
}

func (c *Controller) Status() Status {
	c.lock.Lock()
	defer c.lock.Unlock()
	s := Status{
		State:      c.state,
		Heading:    c.planner.Heading(),
		Target:     c.target,
		Encoders:   c.last,
		LeftSpeed:  c.speeds[hardware.LeftWheel],
		RightSpeed: c.speeds[hardware.RightWheel],
		Queued:     c.queue.Len(),
		Pending:    c.queue.Snapshot(),
		Position:   c.grid.Position(),
		Executed:   c.executed,
		Faults:     c.faults,
	}
	if c.lastFault != nil {
		s.LastFault = c.lastFault.Error()
	}
	return s
}

// Loop runs Tick at the configured frequency until ctx is cancelled and
// then stops both motors.  Ticks that overrun are dropped by the ticker.
func (c *Controller) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer fmt.Println("CTL: Control loop exited")
	defer c.StopMotors()

	ticker := time.NewTicker(c.consts.TickPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		c.Tick()
	}
}

// StopMotors stops both wheels immediately.
func (c *Controller) StopMotors() {
	c.lock.Lock()
	c.stop()
	c.lock.Unlock()
	c.notify()
}

// Tick runs one iteration of the control loop and returns the resulting
// state.
func (c *Controller) Tick() State {
	c.lock.Lock()
	state := c.tick()
	c.lock.Unlock()
	c.notify()
	return state
}

func (c *Controller) tick() State {
	enc, err := hardware.ReadEncoders(c.encoders)
	if err != nil {
		// Keep the stale state; the next tick tries again.
		c.fault(err)
		return c.state
	}
	c.last = enc

	leftRemaining := math.Abs(c.target.Left - enc.Left)
	rightRemaining := math.Abs(c.target.Right - enc.Right)

	if leftRemaining < c.consts.StoppingError && rightRemaining < c.consts.StoppingError {
		c.stop()
		if c.state == Seeking {
			target := c.target
			fmt.Printf("CTL: Reached %v (encoders %.3f, %.3f)\n", target, enc.Left, enc.Right)
			c.each(func(o Observer) { o.TargetReached(target) })
		}
		if c.queue.Len() > 0 {
			if d, err := c.queue.Dequeue(); err == nil {
				c.startCommand(d)
				c.state = Seeking
				return c.state
			}
		}
		if c.state != Idle {
			fmt.Println("CTL: Idle")
		}
		c.state = Idle
		return c.state
	}
	c.state = Seeking

	leftSpeed := c.consts.MoveSpeed * sign(c.target.Left, enc.Left)
	rightSpeed := c.consts.MoveSpeed * sign(c.target.Right, enc.Right)

	// Note: this speeds up whichever wheel is *closer* to its target, not
	// the one that is lagging.  drive() clamps to 1, so with MoveSpeed at
	// 1 the boost does nothing; it only shows below full speed.
	if leftRemaining < rightRemaining-c.consts.DifferenceError {
		leftSpeed *= c.consts.CatchupModifier
	} else if rightRemaining < leftRemaining-c.consts.DifferenceError {
		rightSpeed *= c.consts.CatchupModifier
	}

	if c.consts.Verbose {
		fmt.Printf("CTL: enc=(%.3f, %.3f) target=%v speed=(%.2f, %.2f)\n",
			enc.Left, enc.Right, c.target, leftSpeed, rightSpeed)
	}

	c.drive(hardware.LeftWheel, c.left, c.target.Left, enc.Left, leftSpeed)
	c.drive(hardware.RightWheel, c.right, c.target.Right, enc.Right, rightSpeed)
	return c.state
}

func sign(target, steps float64) float64 {
	if target < steps {
		return -1
	}
	return 1
}

func (c *Controller) drive(w hardware.Wheel, m hardware.Motor, target, steps, speed float64) {
	magnitude := math.Min(math.Abs(speed), 1)
	var err error
	switch {
	case target > steps:
		err = m.Forward(magnitude)
		c.speeds[w] = magnitude
	case target < steps:
		err = m.Backward(magnitude)
		c.speeds[w] = -magnitude
	default:
		err = m.Stop()
		c.speeds[w] = 0
	}
	if err != nil {
		c.fault(&hardware.Fault{Op: "drive", Wheel: w, Err: err})
	}
}

func (c *Controller) stop() {
	for w, m := range [...]hardware.Motor{
		hardware.LeftWheel:  c.left,
		hardware.RightWheel: c.right,
	} {
		if err := m.Stop(); err != nil {
			c.fault(&hardware.Fault{Op: "stop", Wheel: hardware.Wheel(w), Err: err})
		}
		c.speeds[w] = 0
	}
}

func (c *Controller) startCommand(d direction.Direction) {
	from := c.target
	target, q := c.planner.Execute(d, from)
	c.target = target
	c.executed++
	cmd := Command{
		Direction:    d,
		QuarterTurns: q,
		From:         from,
		Target:       target,
		Position:     c.grid.Step(d),
	}
	fmt.Printf("CTL: Executing %v: %d quarter turns, target %v -> %v\n", d, q, from, target)
	c.each(func(o Observer) { o.CommandStarted(cmd) })
}

func (c *Controller) fault(err error) {
	c.faults++
	c.lastFault = err
	fmt.Println("CTL: WARNING: hardware fault:", err)
	c.each(func(o Observer) { o.HardwareFault(err) })
}

// each queues a call to every observer; they run once the lock is dropped.
func (c *Controller) each(f func(o Observer)) {
	for _, o := range c.observers {
		o := o
		c.pending = append(c.pending, func() { f(o) })
	}
}

func (c *Controller) notify() {
	c.lock.Lock()
	pending := c.pending
	c.pending = nil
	c.lock.Unlock()
	for _, f := range pending {
		f()
	}
}
