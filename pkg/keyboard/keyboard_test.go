package keyboard

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kr/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

type sink struct {
	lock sync.Mutex
	got  []direction.Direction
}

func (s *sink) Enqueue(d direction.Direction) {
	s.lock.Lock()
	s.got = append(s.got, d)
	s.lock.Unlock()
}

func (s *sink) commands() []direction.Direction {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]direction.Direction(nil), s.got...)
}

func TestLoopMapsWASD(t *testing.T) {
	s := &sink{}
	err := Loop(context.Background(), strings.NewReader("wx aS\nd"), s)
	require.NoError(t, err)
	assert.Equal(t, []direction.Direction{
		direction.Forward, direction.Left, direction.Backward, direction.Right,
	}, s.commands())
}

func TestLoopStopsAtQ(t *testing.T) {
	s := &sink{}
	require.NoError(t, Loop(context.Background(), strings.NewReader("wqd"), s))
	assert.Equal(t, []direction.Direction{direction.Forward}, s.commands())
}

func TestRawTerminalDeliversKeysWithoutEnter(t *testing.T) {
	master, tty, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	defer tty.Close()

	kb, err := Open(tty)
	require.NoError(t, err)
	defer kb.Close()

	s := &sink{}
	done := make(chan error, 1)
	go func() {
		done <- Loop(context.Background(), kb, s)
	}()

	// No newline: a cooked terminal would hold these back.
	_, err = master.Write([]byte("wd"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(s.commands()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []direction.Direction{direction.Forward, direction.Right}, s.commands())

	_, err = master.Write([]byte("q"))
	require.NoError(t, err)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not quit")
	}
}

func TestOpenRejectsNonTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "keys")
	require.NoError(t, err)
	defer f.Close()

	_, err = Open(f)
	assert.Error(t, err)
}
