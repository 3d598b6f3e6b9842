package hardware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/mux"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/picobldc"
)

var ErrBoardNotReady = errors.New("motor board not ready")

const (
	boardPollInterval = 5 * time.Millisecond
	// Battery voltage is read on every this many polls.
	supplyPollEvery = 200
)

// Board drives the wheels through a Pico-BLDC board.  A single goroutine
// owns the I2C bus: motor calls only record the desired speeds and encoder
// reads return the values from the most recent poll, so neither blocks.
type Board struct {
	cfg config.Board

	lock sync.Mutex

	// Desired signed speeds, forward positive.  Stored off in case we need
	// to re-initialise the hardware.
	speeds [2]float64
	// Position carried over from before the last bus failure.
	offset EncoderState
	steps  EncoderState
	busErr error
	// Zero until the first battery read.
	volts float64

	left, right boardMotor

	openBus func() (picobldc.Interface, error)
	openMux func() (mux.Interface, error)

	cancel context.CancelFunc
	done   chan struct{}
}

func NewBoard(cfg config.Board) *Board {
	b := &Board{
		cfg:    cfg,
		busErr: ErrBoardNotReady,
		openBus: func() (picobldc.Interface, error) {
			return picobldc.New(cfg.Device, cfg.Address)
		},
		openMux: func() (mux.Interface, error) {
			return mux.New(cfg.Device)
		},
	}
	b.left = boardMotor{board: b, wheel: LeftWheel}
	b.right = boardMotor{board: b, wheel: RightWheel}
	return b
}

var _ Interface = (*Board)(nil)

// Start runs the bus loop and waits for the first encoder poll (or the
// first failure) before returning.
func (b *Board) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	var initDone sync.WaitGroup
	initDone.Add(1)
	go func() {
		defer close(b.done)
		b.Loop(ctx, &initDone)
	}()
	initDone.Wait()
}

func (b *Board) LeftMotor() Motor {
	return &b.left
}

func (b *Board) RightMotor() Motor {
	return &b.right
}

func (b *Board) LeftSteps() (float64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.steps.Left, b.busErr
}

func (b *Board) RightSteps() (float64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.steps.Right, b.busErr
}

// SupplyVolts returns the board's most recent battery voltage reading.
func (b *Board) SupplyVolts() (float64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.busErr != nil {
		return 0, b.busErr
	}
	if b.volts == 0 {
		return 0, ErrBoardNotReady
	}
	return b.volts, nil
}

func (b *Board) Shutdown() {
	b.setSpeed(LeftWheel, 0)
	b.setSpeed(RightWheel, 0)
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
}

func (b *Board) setSpeed(w Wheel, speed float64) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.speeds[w] = speed
	if b.busErr == ErrBoardNotReady {
		// Picked up once the bus comes up.
		return nil
	}
	return b.busErr
}

func (b *Board) Loop(ctx context.Context, initDone *sync.WaitGroup) {
	fmt.Println("BOARD: I2C loop started")
	for {
		err := b.loopUntilSomethingBadHappens(ctx, initDone)
		initDone = nil
		if ctx.Err() != nil {
			return
		}
		fmt.Println("===== !!! WARNING !!! I2C FAILURE; TRYING TO RECOVER =====", err)
		b.lock.Lock()
		b.offset = b.steps
		b.busErr = err
		b.lock.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (b *Board) loopUntilSomethingBadHappens(ctx context.Context, initDone *sync.WaitGroup) (err error) {
	defer func() {
		if initDone != nil {
			initDone.Done()
		}
	}()

	if b.cfg.MuxPort >= 0 {
		mx, err := b.openMux()
		if err != nil {
			return errors.Wrap(err, "opening mux")
		}
		defer mx.Close()
		if err := mx.SelectSinglePort(b.cfg.MuxPort); err != nil {
			return errors.Wrap(err, "selecting mux port")
		}
	}

	pico, err := b.openBus()
	if err != nil {
		return errors.Wrap(err, "opening motor board")
	}
	defer func() {
		_ = pico.SetMotorSpeeds(picobldc.PerMotorVal[int16]{})
		_ = pico.Close()
	}()

	// If this goroutine stops talking to the board, the board stops the
	// wheels by itself.
	watchdog := time.Duration(b.cfg.WatchdogMS) * time.Millisecond
	if err := pico.SetWatchdog(watchdog); err != nil {
		return errors.Wrap(err, "setting watchdog")
	}

	tracker := picobldc.NewDistanceTracker(pico)
	var lastSpeeds picobldc.PerMotorVal[int16]
	var lastWrite time.Time
	first := true
	polls := 0

	ticker := time.NewTicker(boardPollInterval)
	defer ticker.Stop()

	for {
		b.lock.Lock()
		l, r := b.speeds[LeftWheel], b.speeds[RightWheel]
		b.lock.Unlock()

		var speeds picobldc.PerMotorVal[int16]
		speeds[b.cfg.LeftChannel] = b.toRegister(l)
		speeds[b.cfg.RightChannel] = b.toRegister(r)
		// Unchanged speeds are still rewritten often enough to feed the
		// watchdog.
		stale := watchdog > 0 && time.Since(lastWrite) > watchdog/2
		if first || stale || speeds != lastSpeeds {
			if err := pico.SetMotorSpeeds(speeds); err != nil {
				return errors.Wrap(err, "setting motor speeds")
			}
			lastSpeeds = speeds
			lastWrite = time.Now()
		}

		if err := tracker.Poll(); err != nil {
			return errors.Wrap(err, "reading distances")
		}
		rotations := tracker.AccumulatedRotations()

		var volts float32
		if polls%supplyPollEvery == 0 {
			if volts, err = pico.BattVolts(); err != nil {
				return errors.Wrap(err, "reading battery voltage")
			}
		}
		polls++

		b.lock.Lock()
		if volts > 0 {
			b.volts = float64(volts)
		}
		b.steps = EncoderState{
			Left:  b.offset.Left + rotations[b.cfg.LeftChannel],
			Right: b.offset.Right + rotations[b.cfg.RightChannel],
		}
		b.busErr = nil
		b.lock.Unlock()

		if first {
			first = false
			if initDone != nil {
				initDone.Done()
				initDone = nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (b *Board) toRegister(speed float64) int16 {
	v := math.Round(speed * float64(b.cfg.FullScale))
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < -math.MaxInt16 {
		return -math.MaxInt16
	}
	return int16(v)
}

type boardMotor struct {
	board *Board
	wheel Wheel
}

func (m *boardMotor) Forward(speed float64) error {
	return m.board.setSpeed(m.wheel, clampSpeed(speed))
}

func (m *boardMotor) Backward(speed float64) error {
	return m.board.setSpeed(m.wheel, -clampSpeed(speed))
}

func (m *boardMotor) Stop() error {
	return m.board.setSpeed(m.wheel, 0)
}
