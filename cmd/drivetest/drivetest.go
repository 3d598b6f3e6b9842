// Command drivetest spins each wheel forward and then backward and prints
// the encoder readings, to check the wiring before running motorctl.
// Forward should always count up.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/hardware"
)

var CLI struct {
	Config   string        `short:"c" type:"path" help:"YAML config file."`
	Backend  string        `help:"Override hardware.backend."`
	Speed    float64       `default:"0.3" help:"Motor speed, 0 to 1."`
	Duration time.Duration `default:"1s" help:"How long to drive each way."`
}

func main() {
	fmt.Println("Drive test program")
	k := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	k.FatalIfErrorf(err)
	if CLI.Backend != "" {
		cfg.Hardware.Backend = CLI.Backend
		k.FatalIfErrorf(cfg.Validate())
	}

	hw, err := hardware.New(cfg.Hardware)
	k.FatalIfErrorf(err)
	ctx, cancel := context.WithCancel(context.Background())
	hw.Start(ctx)
	defer func() {
		cancel()
		hw.Shutdown()
	}()

	ok := true
	for _, w := range []struct {
		wheel hardware.Wheel
		motor hardware.Motor
		read  func() (float64, error)
	}{
		{hardware.LeftWheel, hw.LeftMotor(), hw.LeftSteps},
		{hardware.RightWheel, hw.RightMotor(), hw.RightSteps},
	} {
		for _, forward := range []bool{true, false} {
			start, err := w.read()
			k.FatalIfErrorf(err)
			if forward {
				err = w.motor.Forward(CLI.Speed)
			} else {
				err = w.motor.Backward(CLI.Speed)
			}
			k.FatalIfErrorf(err)
			time.Sleep(CLI.Duration)
			k.FatalIfErrorf(w.motor.Stop())
			time.Sleep(100 * time.Millisecond)
			end, err := w.read()
			k.FatalIfErrorf(err)

			moved := end - start
			good := (forward && moved > 0) || (!forward && moved < 0)
			ok = ok && good
			fmt.Printf("%-5v forward=%-5v %8.3f -> %8.3f (%+.3f) %s\n",
				w.wheel, forward, start, end, moved, verdict(good))
		}
	}
	if !ok {
		fmt.Println("Encoder and motor directions disagree; fix the wiring or pin config.")
	}
}

func verdict(good bool) string {
	if good {
		return "OK"
	}
	return "WRONG WAY"
}
