// Package odometry dead-reckons which grid cell the robot is in by
// counting the moves it has been told to make.  Each move is one
// travel-per-command step in the direction the robot turned to face.
package odometry

import (
	"fmt"
	"math"
	"sync"

	"github.com/quartercastle/vector"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

// Unit steps on the grid.  The robot starts at the origin facing +y.
var headings = [...]vector.Vector{
	direction.Forward:  {0, 1},
	direction.Left:     {-1, 0},
	direction.Backward: {0, -1},
	direction.Right:    {1, 0},
}

// Heading returns the grid step for a move made facing d.
func Heading(d direction.Direction) vector.Vector {
	return headings[d.Index()]
}

type Position struct {
	X, Y int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

type Grid struct {
	lock  sync.Mutex
	pos   vector.Vector
	moves int
}

func New() *Grid {
	return &Grid{pos: vector.Vector{0, 0}}
}

// Step records one move made facing d.
func (g *Grid) Step(d direction.Direction) Position {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.pos = g.pos.Add(Heading(d))
	g.moves++
	return g.position()
}

func (g *Grid) Position() Position {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.position()
}

func (g *Grid) position() Position {
	return Position{X: int(math.Round(g.pos[0])), Y: int(math.Round(g.pos[1]))}
}

// Moves is the number of steps recorded.
func (g *Grid) Moves() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.moves
}

// Displacement is the straight-line distance from the start in mm.
func (g *Grid) Displacement(travelPerCommandMM float64) float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.pos.Magnitude() * travelPerCommandMM
}
