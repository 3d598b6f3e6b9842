// Package keyboard reads WASD key presses from a terminal and queues the
// matching direction commands.  'q' (or Ctrl-C) quits.
package keyboard

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

const ctrlC = 3

// Terminal is a terminal switched into raw mode so that key presses arrive
// one at a time without waiting for enter.
type Terminal struct {
	f     *os.File
	state *term.State
}

// Open puts f into raw mode.  Close puts it back.
func Open(f *os.File) (*Terminal, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.Errorf("%s is not a terminal", f.Name())
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(err, "switching terminal to raw mode")
	}
	return &Terminal{f: f, state: state}, nil
}

func (t *Terminal) Read(p []byte) (int, error) {
	return t.f.Read(p)
}

func (t *Terminal) Close() error {
	return term.Restore(int(t.f.Fd()), t.state)
}

// Loop queues a command on sink for every WASD key read from in.  It returns
// nil when the user quits or in is exhausted.  The pending read is not
// interrupted by ctx; it is checked between keys.
func Loop(ctx context.Context, in io.Reader, sink controller.Sink) error {
	fmt.Print("KBD: WASD to move, q to quit\r\n")
	var buf [1]byte
	for ctx.Err() == nil {
		_, err := in.Read(buf[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading keyboard")
		}
		key := buf[0]
		if key == 'q' || key == 'Q' || key == ctrlC {
			fmt.Print("KBD: quit\r\n")
			return nil
		}
		d, err := direction.Parse(string(key))
		if err != nil {
			fmt.Printf("KBD: ignoring key %q\r\n", key)
			continue
		}
		sink.Enqueue(d)
	}
	return nil
}
