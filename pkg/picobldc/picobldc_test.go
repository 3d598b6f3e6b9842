package picobldc

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDistances struct {
	raw []PerMotorVal[int16]
	err error
}

func (f *fakeDistances) RawDistancesTraveled() (PerMotorVal[int16], error) {
	if f.err != nil {
		return PerMotorVal[int16]{}, f.err
	}
	v := f.raw[0]
	if len(f.raw) > 1 {
		f.raw = f.raw[1:]
	}
	return v, nil
}

func TestDistanceTrackerFirstPollIsBaseline(t *testing.T) {
	f := &fakeDistances{raw: []PerMotorVal[int16]{{1000, -1000, 5, 0}}}
	d := NewDistanceTracker(f)
	require.NoError(t, d.Poll())
	assert.Equal(t, PerMotorVal[float64]{}, d.AccumulatedRotations())
}

func TestDistanceTrackerAccumulatesAcrossWrap(t *testing.T) {
	f := &fakeDistances{raw: []PerMotorVal[int16]{
		{math.MaxInt16 - 10, math.MinInt16 + 10, 0, 0},
		{math.MinInt16 + 117, math.MaxInt16 - 117, 256, -512},
	}}
	d := NewDistanceTracker(f)
	require.NoError(t, d.Poll())
	require.NoError(t, d.Poll())

	r := d.AccumulatedRotations()
	assert.Equal(t, 128.0/CountsPerRotation, r[0])
	assert.Equal(t, -128.0/CountsPerRotation, r[1])
	assert.Equal(t, 1.0, r[2])
	assert.Equal(t, -2.0, r[3])
}

func TestDistanceTrackerPropagatesErrors(t *testing.T) {
	d := NewDistanceTracker(&fakeDistances{err: errors.New("nak")})
	assert.EqualError(t, d.Poll(), "nak")
}

type fakePort struct {
	regs   map[byte]uint16
	writes [][]byte
}

func (f *fakePort) ReadReg(reg byte, buf []byte) error {
	binary.BigEndian.PutUint16(buf, f.regs[reg])
	return nil
}

func (f *fakePort) Write(buf []byte) error {
	f.writes = append(f.writes, append([]byte(nil), buf...))
	if len(buf) == 3 {
		f.regs[buf[0]] = binary.BigEndian.Uint16(buf[1:])
	}
	return nil
}

func (f *fakePort) Close() error {
	return nil
}

func TestSetMotorSpeedsWritesEachChannel(t *testing.T) {
	f := &fakePort{regs: map[byte]uint16{byte(RegMot3Calib): 0x1234}}
	p := &PicoBLDC{dev: f}

	require.NoError(t, p.SetMotorSpeeds(PerMotorVal[int16]{100, -100, 0, 7}))
	assert.Equal(t, uint16(100), f.regs[byte(RegMot0V)])
	assert.Equal(t, uint16(0xff9c), f.regs[byte(RegMot1V)])
	assert.Equal(t, uint16(7), f.regs[byte(RegMot3V)])
	assert.NotZero(t, f.regs[byte(RegCtrl)]&RegCtrlRun)
}

func TestRawDistancesTraveled(t *testing.T) {
	f := &fakePort{regs: map[byte]uint16{
		byte(RegMot0Dist): 10,
		byte(RegMot1Dist): 0xfffe,
	}}
	p := &PicoBLDC{dev: f}
	d, err := p.RawDistancesTraveled()
	require.NoError(t, err)
	assert.Equal(t, PerMotorVal[int16]{10, -2, 0, 0}, d)
}

func TestSetWatchdogArmsBoard(t *testing.T) {
	f := &fakePort{regs: map[byte]uint16{byte(RegMot3Calib): 0x1234}}
	p := &PicoBLDC{dev: f}

	require.NoError(t, p.SetWatchdog(250*time.Millisecond))
	assert.Equal(t, uint16(250), f.regs[byte(RegWatchdogTimeout)])
	assert.NotZero(t, f.regs[byte(RegCtrl)]&RegCtrlWatchdogEnable)

	// Still armed once the motors are running.
	require.NoError(t, p.SetMotorSpeeds(PerMotorVal[int16]{1, 0, 0, 0}))
	assert.NotZero(t, f.regs[byte(RegCtrl)]&RegCtrlWatchdogEnable)
	assert.NotZero(t, f.regs[byte(RegCtrl)]&RegCtrlRun)

	require.NoError(t, p.SetWatchdog(0))
	assert.Zero(t, f.regs[byte(RegCtrl)]&RegCtrlWatchdogEnable)
}

func TestBattVolts(t *testing.T) {
	f := &fakePort{regs: map[byte]uint16{byte(RegBattV): 3000}}
	p := &PicoBLDC{dev: f}
	v, err := p.BattVolts()
	require.NoError(t, err)
	assert.InDelta(t, 12.0, v, 1e-4)
}
