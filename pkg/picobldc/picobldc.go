// Package picobldc drives the Pico-BLDC I2C motor controller board.  The
// board runs four motor channels and counts each motor's travel in
// 1/256ths of a rotation.
package picobldc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x42
	NumMotors   = 4

	// Distance register counts per wheel rotation.
	CountsPerRotation = 256
)

type Register byte

const (
	RegCtrl Register = iota
	RegStatus
	RegWatchdogTimeout
	RegFaultCount

	RegMot0V
	RegMot1V
	RegMot2V
	RegMot3V

	RegMot0Calib
	RegMot1Calib
	RegMot2Calib
	RegMot3Calib

	RegBattV // LSB=4mV
	RegCurrent
	RegPower

	RegTemperature // LSB = 0.01C

	// Free-running, wrapping travel counters.
	RegMot0Dist
	RegMot1Dist
	RegMot2Dist
	RegMot3Dist
)

// Battery voltage register LSB.
const BattVLSB = 0.004

const (
	RegCtrlEnableI2CControl uint16 = 1 << iota
	RegCtrlRun
	RegCtrlDoCalib
	RegCtrlReset
	RegCtrlWatchdogEnable
)

type StatusFlag uint16

const (
	RegStatusFault StatusFlag = 1 << iota
	RegStatusCalibDone
	RegStatusWatchdogExpired
)

// PerMotorVal holds one value per motor channel, indexed by channel.
type PerMotorVal[T any] [NumMotors]T

type Interface interface {
	// SetWatchdog makes the board stop its motors if it hears nothing over
	// I2C for timeout.  Zero disables it.
	SetWatchdog(timeout time.Duration) error
	SetMotorSpeeds(speeds PerMotorVal[int16]) error
	RawDistancesTraveled() (PerMotorVal[int16], error)
	BattVolts() (float32, error)
	Close() error
}

type port interface {
	ReadReg(reg byte, buf []byte) error
	Write(buf []byte) error
	Close() error
}

type PicoBLDC struct {
	dev    port
	reopen func() (port, error)

	lastConfigWord  uint16
	lastConfigTime  time.Time
	watchdogEnabled bool
}

func New(deviceFile string, addr int) (*PicoBLDC, error) {
	open := func() (port, error) {
		return i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	}
	dev, err := open()
	if err != nil {
		return nil, err
	}
	return &PicoBLDC{
		dev:    dev,
		reopen: open,
	}, nil
}

var _ Interface = (*PicoBLDC)(nil)

var ErrWriteFailed = errors.New("failed to write to Pico-BLDC")

func (p *PicoBLDC) Reset() error {
	return p.maybeConfigure(true, false)
}

func (p *PicoBLDC) SetWatchdog(timeout time.Duration) error {
	if timeout == 0 {
		// Disable.
		p.watchdogEnabled = false
		return p.maybeConfigure(false, false)
	}

	ms := timeout.Milliseconds()
	if ms > math.MaxUint16 {
		ms = math.MaxUint16
	}
	err := p.writeReg(RegWatchdogTimeout, uint16(ms))
	if err != nil {
		return err
	}

	p.watchdogEnabled = true
	return p.maybeConfigure(false, false)
}

// SetMotorSpeeds writes the signed speed of every channel.
func (p *PicoBLDC) SetMotorSpeeds(speeds PerMotorVal[int16]) error {
	if err := p.maybeConfigure(false, true); err != nil {
		return err
	}
	for m, v := range speeds {
		if err := p.writeReg(RegMot0V+Register(m), uint16(v)); err != nil {
			return err
		}
	}
	return nil
}

// RawDistancesTraveled reads the wrapping travel counters.  Use a
// DistanceTracker to accumulate them.
func (p *PicoBLDC) RawDistancesTraveled() (d PerMotorVal[int16], err error) {
	for m := range d {
		raw, err := p.readReg(RegMot0Dist + Register(m))
		if err != nil {
			return d, err
		}
		d[m] = int16(raw)
	}
	return d, nil
}

func (p *PicoBLDC) Close() error {
	_ = p.Reset()
	return p.dev.Close()
}

func (p *PicoBLDC) writeWithRetries(data []byte) error {
	for tries := 0; tries < 20; tries++ {
		err := p.dev.Write(data)
		if err == nil {
			if tries > 0 {
				fmt.Println("PICO: Successfully wrote to Pico-BLDC after retries")
			}
			return nil
		}
		fmt.Println("PICO: Failed to write to Pico-BLDC:", err)
		time.Sleep(1 * time.Millisecond)
		if p.reopen == nil {
			continue
		}
		_ = p.dev.Close()
		dev, err := p.reopen()
		if err != nil {
			continue
		}
		p.dev = dev
	}
	return ErrWriteFailed
}

func (p *PicoBLDC) maybeConfigure(resetMotorSpeeds bool, enableMotors bool) error {
	// Figure out if the config word has changed.
	var configWord uint16 = RegCtrlEnableI2CControl
	if resetMotorSpeeds {
		configWord |= RegCtrlReset
	}
	if enableMotors {
		configWord |= RegCtrlRun
	}
	if p.watchdogEnabled {
		configWord |= RegCtrlWatchdogEnable
	}

	if configWord == p.lastConfigWord && time.Since(p.lastConfigTime) < 100*time.Millisecond {
		// Skip writing config if we've done it recently.
		return nil
	}

	if p.lastConfigWord == 0 {
		// First time.  Figure out calibration...
		calib, err := p.readReg(RegMot3Calib)
		if err != nil {
			return err
		}
		if calib == 0 {
			// Needs the wheels off the ground.
			fmt.Println("PICO: Pico-BLDC not calibrated, running calibration...")
			configWord |= RegCtrlDoCalib
		}
	}

	if err := p.writeReg(RegCtrl, configWord); err != nil {
		return err
	}

	if configWord&RegCtrlDoCalib != 0 {
		if err := p.waitForCalibration(); err != nil {
			return err
		}
	}

	if err := p.writeReg(RegStatus, uint16(RegStatusCalibDone)); err != nil {
		return err
	}

	p.lastConfigTime = time.Now()
	p.lastConfigWord = configWord & (^RegCtrlReset) /* Reset flag is not persistent */
	return nil
}

func (p *PicoBLDC) waitForCalibration() error {
	var lastPrint time.Time
	for {
		status, err := p.readReg(RegStatus)
		if err != nil {
			fmt.Printf("PICO: failed to read status register: %v\n", err)
		}
		if status&uint16(RegStatusCalibDone) != 0 {
			break
		}
		if time.Since(lastPrint) > time.Second {
			fmt.Printf("PICO: Waiting for calibration to finish... Status=%x\n", status)
			lastPrint = time.Now()
		}
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("PICO: Calibration words:")
	for r := RegMot0Calib; r <= RegMot3Calib; r++ {
		v, err := p.readReg(r)
		if err != nil {
			return err
		}
		fmt.Printf(" %04x", v)
	}
	fmt.Print("\n")
	return nil
}

func (p *PicoBLDC) BattVolts() (float32, error) {
	raw, err := p.readReg(RegBattV)
	if err != nil {
		return 0, err
	}
	return float32(raw) * BattVLSB, nil
}

func (p *PicoBLDC) writeReg(reg Register, value uint16) error {
	return p.writeWithRetries([]byte{byte(reg), byte(value >> 8), byte(value)})
}

func (p *PicoBLDC) readReg(reg Register) (uint16, error) {
	var buf [2]byte
	err := p.dev.ReadReg(byte(reg), buf[:])
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}
