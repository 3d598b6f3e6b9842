package hardware

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
)

// New opens the drive selected by cfg.Backend.
func New(cfg config.Hardware) (Interface, error) {
	fmt.Println("HW: Opening", cfg.Backend, "drive")
	switch cfg.Backend {
	case config.BackendGPIO:
		g, err := NewGPIO(cfg.GPIO)
		if err != nil {
			return nil, errors.Wrap(err, "opening GPIO drive")
		}
		return g, nil
	case config.BackendBoard:
		return NewBoard(cfg.Board), nil
	case config.BackendSim:
		return NewSim(cfg.Sim), nil
	case config.BackendDummy:
		return NewDummy(), nil
	}
	return nil, errors.Errorf("unknown hardware backend %q", cfg.Backend)
}
