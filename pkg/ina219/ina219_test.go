package ina219

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	regs map[byte][2]byte
}

func (f *fakePort) ReadReg(reg byte, buf []byte) error {
	r := f.regs[reg]
	copy(buf, r[:])
	return nil
}

func (f *fakePort) WriteReg(reg byte, buf []byte) error {
	f.regs[reg] = [2]byte{buf[0], buf[1]}
	return nil
}

func TestCalibrationValue(t *testing.T) {
	// 3.2A over a 0.1 ohm shunt is the stock battery monitor.
	assert.Equal(t, int16(4194), CalculateCalibrationValue(3.2/(1<<15), 0.1))
}

func TestSample(t *testing.T) {
	f := &fakePort{regs: map[byte][2]byte{
		// 12V: 3000 LSBs, shifted left 3.
		RegBusV: {0x5d, 0xc0},
		// -1 LSB of current.
		RegCurrent: {0xff, 0xff},
	}}
	m := &INA219{dev: f}
	require.NoError(t, m.Configure(0.1, 3.2))
	assert.Equal(t, [2]byte{0x10, 0x62}, f.regs[RegCalibration])

	r, err := Sample(m)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, r.Volts, 1e-9)
	assert.InDelta(t, -3.2/(1<<15), r.Amps, 1e-12)
}
