package direction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnQuarterTurnsRange(t *testing.T) {
	for _, cur := range All {
		for _, req := range All {
			q := TurnQuarterTurns(cur, req)
			assert.Contains(t, []int{-1, 0, 1, 2}, q, "%v -> %v", cur, req)
		}
	}
}

func TestTurnQuarterTurnsValues(t *testing.T) {
	expectTurn(t, Forward, Forward, 0)
	expectTurn(t, Forward, Left, 1)
	expectTurn(t, Forward, Backward, 2)
	expectTurn(t, Forward, Right, -1)

	expectTurn(t, Left, Forward, -1)
	expectTurn(t, Left, Backward, 1)
	expectTurn(t, Left, Right, 2)

	expectTurn(t, Backward, Forward, 2)
	expectTurn(t, Backward, Right, 1)
	expectTurn(t, Backward, Left, -1)

	expectTurn(t, Right, Forward, 1)
	expectTurn(t, Right, Left, 2)
	expectTurn(t, Right, Backward, -1)
}

func expectTurn(t *testing.T, cur, req Direction, expected int) {
	t.Helper()
	if q := TurnQuarterTurns(cur, req); q != expected {
		t.Errorf("Turn %v -> %v = %d, expected %d", cur, req, q, expected)
	}
}

func TestTrackerRepeatedRequestIsZero(t *testing.T) {
	for _, start := range All {
		for _, req := range All {
			tr := &Tracker{current: start}
			tr.Turn(req)
			require.Equal(t, req, tr.Current())
			assert.Equal(t, 0, tr.Turn(req), "second turn %v -> %v", start, req)
		}
	}
}

func TestTrackerStartsForward(t *testing.T) {
	tr := NewTracker()
	require.Equal(t, Forward, tr.Current())
	assert.Equal(t, 1, tr.Turn(Left))
	assert.Equal(t, Left, tr.Current())
}

func TestAddWraps(t *testing.T) {
	assert.Equal(t, Left, Forward.Add(1))
	assert.Equal(t, Right, Forward.Add(-1))
	assert.Equal(t, Backward, Right.Add(-1))
	assert.Equal(t, Forward, Right.Add(1))
	assert.Equal(t, Backward, Forward.Add(10))
	assert.Equal(t, Right, FromIndex(-5))
}

func TestParse(t *testing.T) {
	for in, expected := range map[string]Direction{
		"forward":  Forward,
		" LEFT ":   Left,
		"Backward": Backward,
		"right":    Right,
		"w":        Forward,
		"a":        Left,
		"S":        Backward,
		"d":        Right,
	} {
		d, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, d, in)
	}
	_, err := Parse("up")
	assert.Error(t, err)
}
