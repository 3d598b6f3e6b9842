package joystick

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

type sink []direction.Direction

func (s *sink) Enqueue(d direction.Direction) {
	*s = append(*s, d)
}

func encode(t *testing.T, events ...rawEvent) io.ReadCloser {
	var buf bytes.Buffer
	for _, e := range events {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, e))
	}
	return io.NopCloser(&buf)
}

func axis(ms uint32, number uint8, value int16) rawEvent {
	return rawEvent{Time: ms, Value: value, Type: EventTypeAxis, Number: number}
}

func TestReadEvent(t *testing.T) {
	j := FromReader(encode(t,
		rawEvent{Time: 1000, Value: 1, Type: 0x80 | EventTypeButton, Number: ButtonCross},
		axis(1250, AxisDPadX, -32767),
	))
	e, err := j.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, EventType(EventTypeButton), e.Type)
	assert.Equal(t, "button(0)=1", e.String())

	e2, err := j.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, uint8(AxisDPadX), e2.Number)
	assert.Equal(t, int16(-32767), e2.Value)
	assert.Equal(t, 250*1e6, float64(e2.Time.Sub(e.Time)))
}

func TestLoopMapsPushes(t *testing.T) {
	j := FromReader(encode(t,
		axis(0, AxisDPadY, -32767), // up
		axis(10, AxisDPadY, 0),
		axis(20, AxisDPadX, -32767), // left
		axis(30, AxisDPadX, 0),
		// Stick wobbling past the threshold only counts once.
		axis(40, AxisLStickX, 20000),
		axis(50, AxisLStickX, 30000),
		axis(60, AxisLStickX, 100),
		axis(70, AxisLStickY, 32767), // down
		axis(80, AxisRStickY, -32767),
		rawEvent{Time: 90, Value: 1, Type: EventTypeButton, Number: ButtonTriangle},
	))
	var s sink
	require.NoError(t, j.Loop(context.Background(), &s))
	assert.Equal(t, sink{direction.Forward, direction.Left, direction.Right, direction.Backward}, s)
}
