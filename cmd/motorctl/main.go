// Command motorctl drives a two wheeled robot around a grid, one square per
// command, taking directions from the keyboard, a joystick or a serial link.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/ina219"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/screen"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/sound"
)

var CLI struct {
	Config string `short:"c" type:"path" help:"YAML config file; built-in defaults if not set."`

	Run  RunCmd  `cmd:"" help:"Drive the robot."`
	Show ShowCmd `cmd:"" help:"Print the configuration that would be used."`
}

type RunCmd struct {
	Backend  string   `help:"Override hardware.backend (gpio, board, sim or dummy)."`
	Input    string   `enum:"keyboard,joystick,serial,none" default:"keyboard" help:"Where commands come from."`
	Joystick string   `default:"/dev/input/js0" env:"JOYSTICK_DEVICE" help:"Joystick device."`
	Serial   string   `default:"/dev/serial0" help:"Serial device for --input=serial."`
	Baud     int      `default:"115200" help:"Serial baud rate."`
	InUse    string   `type:"path" help:"Write the config in use to this file."`
	Verbose  bool     `short:"v" help:"Log every control loop tick."`
	Commands []string `arg:"" optional:"" help:"Directions to queue at startup, e.g. forward left w a."`
}

type ShowCmd struct{}

func main() {
	fmt.Println("---- motorctl ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	ctx := kong.Parse(&CLI,
		kong.Name("motorctl"),
		kong.Description("Grid-stepping differential drive controller."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

func loadConfig() (config.Config, error) {
	return config.Load(CLI.Config)
}

func (s *ShowCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := config.Marshal(&cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func (r *RunCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if r.Backend != "" {
		cfg.Hardware.Backend = r.Backend
	}
	if r.Verbose {
		cfg.Control.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if r.InUse != "" {
		if err := config.WriteInUse(&cfg, r.InUse); err != nil {
			fmt.Println("Failed to write in-use config:", err)
		}
	}

	var initial []direction.Direction
	for _, arg := range r.Commands {
		d, err := direction.Parse(arg)
		if err != nil {
			return err
		}
		initial = append(initial, d)
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel)

	hw, err := hardware.New(cfg.Hardware)
	if err != nil {
		return err
	}
	zeroMotors(hw)
	defer func() {
		fmt.Println("Zeroing motors for shut down")
		hw.Shutdown()
		time.Sleep(100 * time.Millisecond)
	}()
	hw.Start(ctx)

	c, err := controller.NewForDrive(cfg.Control, hw)
	if err != nil {
		return err
	}

	if cfg.Sound != (config.Sound{}) {
		c.AddObserver(sound.NewPlayer(cfg.Sound, sound.InitSound()))
	}

	power := startPowerMonitor(ctx, cfg.Power, hw)
	go screen.LoopUpdatingScreen(ctx, cfg.Screen.Device, cfg.Screen.PNG, func() screen.Frame {
		return screen.Frame{Status: c.Status(), Power: power.latest()}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go c.Loop(ctx, &wg)

	for _, d := range initial {
		c.Enqueue(d)
	}

	if err := startInput(ctx, cancel, r, c); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	<-ctx.Done()
	fmt.Println("Context done, shutting down")
	c.ClearQueue()
	wg.Wait()
	return nil
}

// zeroMotors makes sure nothing is left running from a previous crash.
func zeroMotors(hw hardware.Interface) {
	for _, m := range []hardware.Motor{hw.LeftMotor(), hw.RightMotor()} {
		if err := m.Stop(); err != nil {
			fmt.Println("Failed to zero motor:", err)
		}
	}
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}

type powerMonitor struct {
	lock    sync.Mutex
	reading *ina219.Reading
}

func (p *powerMonitor) latest() *ina219.Reading {
	if p == nil {
		return nil
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.reading
}

// startPowerMonitor samples the battery every few seconds for the screen,
// from the INA219 if one is configured or else from the drive itself.
// Returns nil if there is no way to measure it.
func startPowerMonitor(ctx context.Context, cfg config.Power, hw hardware.Interface) *powerMonitor {
	var sample func() (ina219.Reading, error)
	if cfg.Enabled {
		sensor, err := ina219.NewI2C(cfg.Device, cfg.Address)
		if err == nil {
			err = sensor.Configure(cfg.ShuntOhms, cfg.MaxCurrent)
		}
		if err != nil {
			fmt.Println("Failed to open power sensor; ignoring!", errors.Wrap(err, "ina219"))
			return nil
		}
		sample = func() (ina219.Reading, error) {
			return ina219.Sample(sensor)
		}
	} else if sm, ok := hw.(hardware.SupplyMonitor); ok {
		sample = func() (ina219.Reading, error) {
			v, err := sm.SupplyVolts()
			return ina219.Reading{Volts: v}, err
		}
	} else {
		return nil
	}

	p := &powerMonitor{}
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			r, err := sample()
			if err != nil {
				fmt.Println("Failed to read battery:", err)
			} else {
				p.lock.Lock()
				p.reading = &r
				p.lock.Unlock()
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return p
}
