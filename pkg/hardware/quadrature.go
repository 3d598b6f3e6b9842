package hardware

// quadState is the state of a quadrature decoder that only counts a step
// once a full cycle of both channels has completed, so contact bounce on
// one channel cannot run the count away.
type quadState uint8

const (
	quadIdle quadState = iota
	quadCCW1
	quadCCW2
	quadCCW3
	quadCW1
	quadCW2
	quadCW3
	quadStepCCW
	quadStepCW
)

// Indexed by state, then by (a<<1 | b) where a channel is 1 while active.
var quadTransitions = [...][4]quadState{
	quadIdle:    {quadIdle, quadCCW1, quadCW1, quadIdle},
	quadCCW1:    {quadIdle, quadCCW1, quadCCW3, quadCCW2},
	quadCCW2:    {quadIdle, quadCCW1, quadCCW3, quadCCW2},
	quadCCW3:    {quadStepCCW, quadIdle, quadCCW3, quadCCW2},
	quadCW1:     {quadIdle, quadCW3, quadCW1, quadCW2},
	quadCW2:     {quadIdle, quadCW3, quadCW1, quadCW2},
	quadCW3:     {quadStepCW, quadCW3, quadIdle, quadCW2},
	quadStepCCW: {quadIdle, quadCCW1, quadCW1, quadIdle},
	quadStepCW:  {quadIdle, quadCCW1, quadCW1, quadIdle},
}

type quadrature struct {
	state quadState
}

// update feeds the current channel levels to the decoder and returns the
// step completed by this transition: +1, -1 or 0.
func (q *quadrature) update(a, b bool) int {
	idx := 0
	if a {
		idx |= 2
	}
	if b {
		idx |= 1
	}
	q.state = quadTransitions[q.state][idx]
	switch q.state {
	case quadStepCW:
		return 1
	case quadStepCCW:
		return -1
	}
	return 0
}
