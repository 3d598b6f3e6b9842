// Package sound plays short WAV cues as the robot starts and finishes
// moves.
package sound

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/config"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/planner"
)

// InitSound starts the speaker goroutine.  Send it the path of a WAV file
// to play; a new sound cuts off the one that is playing.
func InitSound() chan string {
	soundsToPlay := make(chan string)
	go func() {
		defer func() {
			recover()
			for s := range soundsToPlay {
				fmt.Println("SND: Unable to play", s)
			}
		}()
		sampleRate := beep.SampleRate(44100)
		err := speaker.Init(sampleRate, sampleRate.N(time.Second/5))
		if err != nil {
			fmt.Println("SND: Failed to open speaker", err)
			for s := range soundsToPlay {
				fmt.Println("SND: Unable to play", s)
			}
			return
		}
		var ctrl *beep.Ctrl
		var s beep.StreamSeekCloser
		for soundToPlay := range soundsToPlay {
			if ctrl != nil {
				speaker.Lock()
				ctrl.Paused = true
				ctrl.Streamer = nil
				speaker.Unlock()
				ctrl = nil
			}
			if s != nil {
				s.Close()
				s = nil
			}

			f, err := os.Open(soundToPlay)
			if err != nil {
				fmt.Println("SND: Failed to open sound", err)
				continue
			}
			s, _, err = wav.Decode(f)
			if err != nil {
				fmt.Println("SND: Failed to decode sound", err)
				f.Close()
				continue
			}
			ctrl = &beep.Ctrl{Streamer: s}
			speaker.Play(ctrl)
		}
	}()
	return soundsToPlay
}

// Fault cues are played at most this often.
const faultCueInterval = 2 * time.Second

// Player is a controller.Observer that plays the configured cues.  It never
// blocks the control loop: a cue is dropped if the speaker goroutine is busy.
type Player struct {
	cues  config.Sound
	sound chan<- string

	lock      sync.Mutex
	lastFault time.Time
	now       func() time.Time
}

func NewPlayer(cues config.Sound, sound chan<- string) *Player {
	return &Player{cues: cues, sound: sound, now: time.Now}
}

var _ controller.Observer = (*Player)(nil)

func (p *Player) CommandStarted(cmd controller.Command) {
	p.play(p.cues.Start)
}

func (p *Player) TargetReached(target planner.WheelTarget) {
	p.play(p.cues.Reached)
}

func (p *Player) HardwareFault(err error) {
	p.lock.Lock()
	now := p.now()
	tooSoon := now.Sub(p.lastFault) < faultCueInterval
	if !tooSoon {
		p.lastFault = now
	}
	p.lock.Unlock()
	if !tooSoon {
		p.play(p.cues.Fault)
	}
}

func (p *Player) play(path string) {
	if path == "" {
		return
	}
	select {
	case p.sound <- path:
	default:
	}
}
