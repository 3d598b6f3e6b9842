package chassis

import "math"

const (
	MMPerInch = 25.4

	// Two wheel drive with 32mm wheels on mirrored gearboxes.
	WheelDiameterMM float64 = 32
	WheelCircumMM           = WheelDiameterMM * math.Pi

	// Each forward command moves the robot one grid cell.
	TravelPerCommandMM = 6 * MMPerInch
)

// MoveRotations returns the number of wheel rotations needed to travel
// travelMM on wheels of the given diameter.
func MoveRotations(travelMM, wheelDiameterMM float64) float64 {
	if wheelDiameterMM <= 0 {
		return 0
	}
	return travelMM / (wheelDiameterMM * math.Pi)
}
