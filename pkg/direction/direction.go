package direction

import (
	"fmt"
	"strings"
)

// Direction is one of the four cardinal headings, ordered so that each
// quarter turn moves one step along FORWARD, LEFT, BACKWARD, RIGHT and
// wraps back to FORWARD.  All arithmetic keeps the value in range.
type Direction uint8

const (
	Forward Direction = iota
	Left
	Backward
	Right

	numDirections = 4
)

// All lists the directions in cyclic order.
var All = [numDirections]Direction{Forward, Left, Backward, Right}

func (d Direction) String() string {
	switch d {
	case Forward:
		return "FORWARD"
	case Left:
		return "LEFT"
	case Backward:
		return "BACKWARD"
	case Right:
		return "RIGHT"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// Index returns the position of d in the cyclic ordering, 0..3.
func (d Direction) Index() int {
	return int(d) % numDirections
}

// Add rotates d by n quarter turns (positive or negative).
func (d Direction) Add(n int) Direction {
	return FromIndex(d.Index() + n)
}

// FromIndex converts an index of any magnitude into a Direction by
// calculating i mod 4 and shifting into range.
func FromIndex(i int) Direction {
	m := i % numDirections
	if m < 0 {
		m += numDirections
	}
	return Direction(m)
}

// Parse accepts the direction names (any case) and the WASD keys.
func Parse(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FORWARD", "W":
		return Forward, nil
	case "LEFT", "A":
		return Left, nil
	case "BACKWARD", "S":
		return Backward, nil
	case "RIGHT", "D":
		return Right, nil
	}
	return Forward, fmt.Errorf("unknown direction %q", s)
}

// TurnQuarterTurns returns the signed number of quarter turns needed to
// face requested when currently facing current.  The result is always
// one of -1, 0, 1 or 2; a reversal is reported as 2 whichever way round.
// One step along the cyclic order (e.g. FORWARD to LEFT) is +1.
func TurnQuarterTurns(current, requested Direction) int {
	switch requested.Index() - current.Index() {
	case 0:
		return 0
	case 2, -2:
		return 2
	case 1, -3:
		return 1
	default: // -1, 3
		return -1
	}
}

// Tracker remembers the heading the robot is facing.  It is not safe for
// concurrent use; the controller only touches it while holding its lock.
type Tracker struct {
	current Direction
}

// NewTracker returns a tracker facing FORWARD.
func NewTracker() *Tracker {
	return &Tracker{current: Forward}
}

func (t *Tracker) Current() Direction {
	return t.current
}

// Turn computes the quarter turns from the current heading to requested
// and then records requested as the new heading.
func (t *Tracker) Turn(requested Direction) int {
	q := TurnQuarterTurns(t.current, requested)
	t.current = requested
	return q
}
