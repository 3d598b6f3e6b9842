package planner

import (
	"fmt"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

// WheelTarget is the cumulative encoder position, in step units, that each
// wheel is being driven towards.
type WheelTarget struct {
	Left, Right float64
}

func (t WheelTarget) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", t.Left, t.Right)
}

// PlanTurn spins the wheels in opposite senses to turn on the spot by the
// given number of quarter turns.
func PlanTurn(quarterTurns int, t WheelTarget, turnDistance float64) WheelTarget {
	d := turnDistance * float64(quarterTurns)
	t.Left += d
	t.Right -= d
	return t
}

// PlanForward advances both wheels by moveRotations.
//
// Forward is encoded exactly like a turn: opposite-signed increments on the
// two wheels.  That only gives straight-line motion when the wheels are
// mounted mirrored, so that opposite encoder signs mean the same direction
// of travel.  Check this on the real rig (see the hil tests in
// pkg/hardware) rather than changing the sign here.
func PlanForward(t WheelTarget, moveRotations float64) WheelTarget {
	t.Left += moveRotations
	t.Right -= moveRotations
	return t
}

// Planner turns queued directions into new wheel targets.
type Planner struct {
	heading       *direction.Tracker
	turnDistance  float64
	moveRotations float64
}

func New(turnDistance, moveRotations float64) *Planner {
	return &Planner{
		heading:       direction.NewTracker(),
		turnDistance:  turnDistance,
		moveRotations: moveRotations,
	}
}

// Heading returns the direction the robot will be facing once the most
// recently planned command completes.
func (p *Planner) Heading() direction.Direction {
	return p.heading.Current()
}

// Execute turns to face d and then moves one step forward, returning the
// resulting target and the number of quarter turns that were planned.
func (p *Planner) Execute(d direction.Direction, t WheelTarget) (WheelTarget, int) {
	q := p.heading.Turn(d)
	t = PlanTurn(q, t, p.turnDistance)
	t = PlanForward(t, p.moveRotations)
	return t, q
}
