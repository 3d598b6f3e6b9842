// Package seriallink accepts direction commands as text lines over a serial
// port, e.g. from a radio modem or a companion microcontroller.
//
// Each line is a direction name (FORWARD, LEFT, BACKWARD, RIGHT) or a WASD
// key, in any case.  The link answers every line with "ACK,<DIRECTION>" or
// "ERR,<line>".  "STATUS" replies with the controller's state when the sink
// can report it.
package seriallink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	serial "go.bug.st/serial"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

const (
	DefaultBaud = 115200

	// How often a blocked read gives up so that cancellation is noticed.
	readTimeout = 200 * time.Millisecond
	maxLineLen  = 256
)

// StatusReporter is implemented by sinks that can describe themselves.
type StatusReporter interface {
	Status() controller.Status
}

// Open opens a serial device, e.g. /dev/serial0.
func Open(device string, baud int) (serial.Port, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", device)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, errors.Wrap(err, "setting read timeout")
	}
	return p, nil
}

// Serve reads lines from rw until EOF or ctx is cancelled.  A read that
// returns no data and no error (a timeout) just checks ctx again.
func Serve(ctx context.Context, rw io.ReadWriter, sink controller.Sink) error {
	var pending []byte
	buf := make([]byte, maxLineLen)
	for ctx.Err() == nil {
		n, err := rw.Read(buf)
		pending = append(pending, buf[:n]...)
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := string(pending[:i])
			pending = pending[i+1:]
			if werr := handleLine(rw, line, sink); werr != nil {
				return errors.Wrap(werr, "writing reply")
			}
		}
		if len(pending) > maxLineLen {
			fmt.Println("SER: Discarding overlong line")
			pending = pending[:0]
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading serial")
		}
	}
	return nil
}

func handleLine(w io.Writer, line string, sink controller.Sink) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var reply string
	if strings.EqualFold(line, "STATUS") {
		reply = statusLine(sink)
	} else if d, err := direction.Parse(line); err != nil {
		fmt.Printf("SER: Bad command %q\n", line)
		reply = "ERR," + line
	} else {
		sink.Enqueue(d)
		reply = "ACK," + d.String()
	}
	_, err := io.WriteString(w, reply+"\n")
	return err
}

func statusLine(sink controller.Sink) string {
	r, ok := sink.(StatusReporter)
	if !ok {
		return "ERR,STATUS"
	}
	s := r.Status()
	return fmt.Sprintf("STATUS,%v,%v,%d,%d,%d", s.State, s.Heading, s.Queued, s.Executed, s.Faults)
}
