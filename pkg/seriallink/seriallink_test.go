package seriallink

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/hardware"
)

// port feeds canned input in small chunks, with empty reads in between
// like a serial port timing out.
type port struct {
	in  []string
	out bytes.Buffer
}

func (p *port) Read(b []byte) (int, error) {
	if len(p.in) == 0 {
		return 0, io.EOF
	}
	chunk := p.in[0]
	p.in = p.in[1:]
	return copy(b, chunk), nil
}

func (p *port) Write(b []byte) (int, error) {
	return p.out.Write(b)
}

type sink []direction.Direction

func (s *sink) Enqueue(d direction.Direction) {
	*s = append(*s, d)
}

func TestServeAcksCommands(t *testing.T) {
	p := &port{in: []string{"FORW", "", "ARD\nl", "eft\r\n\nw\n", "", "jump\n", "BACKWARD"}}
	var s sink
	require.NoError(t, Serve(context.Background(), p, &s))

	assert.Equal(t, sink{direction.Forward, direction.Left, direction.Forward}, s)
	assert.Equal(t, "ACK,FORWARD\nACK,LEFT\nACK,FORWARD\nERR,jump\n", p.out.String())
}

func TestServeStatus(t *testing.T) {
	c, err := controller.NewForDrive(config.DefaultConstants(), hardware.NewDummy())
	require.NoError(t, err)

	p := &port{in: []string{"d\nstatus\n"}}
	require.NoError(t, Serve(context.Background(), p, c))
	lines := strings.Split(strings.TrimSpace(p.out.String()), "\n")
	assert.Equal(t, []string{"ACK,RIGHT", "STATUS,IDLE,FORWARD,1,0,0"}, lines)

	var s sink
	p = &port{in: []string{"STATUS\n"}}
	require.NoError(t, Serve(context.Background(), p, &s))
	assert.Equal(t, "ERR,STATUS\n", p.out.String())
}

func TestServeStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &port{in: []string{"w\n"}}
	var s sink
	require.NoError(t, Serve(ctx, p, &s))
	assert.Empty(t, s)
}
