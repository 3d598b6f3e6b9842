package picobldc

type counterReader interface {
	RawDistancesTraveled() (PerMotorVal[int16], error)
}

// DistanceTracker extends the board's 16-bit travel counters into running
// totals so a wheel's position survives counter wrap.  Poll at least once
// per half counter range of travel (128 rotations).
type DistanceTracker struct {
	board counterReader

	// Nil until the first poll, which only sets the baseline.
	prev   *PerMotorVal[int16]
	totals PerMotorVal[int64]
}

func NewDistanceTracker(board counterReader) *DistanceTracker {
	return &DistanceTracker{
		board: board,
	}
}

// Poll reads the counters and adds the change since the last poll.
func (d *DistanceTracker) Poll() error {
	raw, err := d.board.RawDistancesTraveled()
	if err != nil {
		return err
	}
	if d.prev != nil {
		for m := range raw {
			// Wrapping int16 subtraction gives the signed step.
			d.totals[m] += int64(raw[m] - d.prev[m])
		}
	}
	d.prev = &raw
	return nil
}

// AccumulatedRotations returns each channel's travel since the first poll.
func (d *DistanceTracker) AccumulatedRotations() (rotations PerMotorVal[float64]) {
	for m, counts := range d.totals {
		rotations[m] = float64(counts) / CountsPerRotation
	}
	return
}
