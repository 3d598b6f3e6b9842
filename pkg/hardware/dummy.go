package hardware

import (
	"context"
	"fmt"
)

// Dummy prints what it would do and never moves.
type Dummy struct {
	left, right dummyMotor
}

func NewDummy() *Dummy {
	return &Dummy{
		left:  dummyMotor{LeftWheel},
		right: dummyMotor{RightWheel},
	}
}

func (d *Dummy) Start(ctx context.Context) {
	fmt.Println("DHW: Start")
}

func (d *Dummy) LeftMotor() Motor {
	return &d.left
}

func (d *Dummy) RightMotor() Motor {
	return &d.right
}

func (d *Dummy) LeftSteps() (float64, error) {
	return 0, nil
}

func (d *Dummy) RightSteps() (float64, error) {
	return 0, nil
}

func (d *Dummy) Shutdown() {
	fmt.Println("DHW: Shutdown")
}

var _ Interface = (*Dummy)(nil)

type dummyMotor struct {
	wheel Wheel
}

func (m *dummyMotor) Forward(speed float64) error {
	fmt.Printf("DHW: %v Forward speed=%.2f\n", m.wheel, speed)
	return nil
}

func (m *dummyMotor) Backward(speed float64) error {
	fmt.Printf("DHW: %v Backward speed=%.2f\n", m.wheel, speed)
	return nil
}

func (m *dummyMotor) Stop() error {
	fmt.Printf("DHW: %v Stop\n", m.wheel)
	return nil
}
