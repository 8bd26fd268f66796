package midi

import (
	"fmt"
	"sync"
	"time"

	"go-metronome/audio"
	"go-metronome/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ClickConfig maps metronome sounds to notes on an external device
type ClickConfig struct {
	Channel    uint8 // 0-15
	AccentNote uint8
	NormalNote uint8
	Gate       time.Duration // note length
}

// DefaultClickConfig uses the General MIDI percussion channel: high and low
// wood block.
var DefaultClickConfig = ClickConfig{
	Channel:    9,
	AccentNote: 76,
	NormalNote: 77,
	Gate:       30 * time.Millisecond,
}

// ClickOutput mirrors metronome events to a MIDI output as short notes. It
// implements audio.Sink; timing follows the audio clock converted to wall
// time when the event is scheduled.
type ClickOutput struct {
	cfg   ClickConfig
	clock audio.Clock
	send  func(msg gomidi.Message) error
}

var _ audio.Sink = (*ClickOutput)(nil)

// OpenClickOutput opens the first output port whose name contains portName
func OpenClickOutput(portName string, clock audio.Clock, cfg ClickConfig) (*ClickOutput, error) {
	out, err := gomidi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("find output %q: %w", portName, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", out.String(), err)
	}
	debug.Log("midi", "click output on %s", out.String())
	return NewClickOutput(send, clock, cfg), nil
}

// NewClickOutput wraps an already open send function
func NewClickOutput(send func(msg gomidi.Message) error, clock audio.Clock, cfg ClickConfig) *ClickOutput {
	if cfg.Gate <= 0 {
		cfg.Gate = DefaultClickConfig.Gate
	}
	cfg.Channel &= 0x0F
	return &ClickOutput{cfg: cfg, clock: clock, send: send}
}

// Note returns the note and velocity for a sound id
func (c *ClickOutput) Note(soundID int) (note, velocity uint8, ok bool) {
	switch soundID {
	case 0:
		return c.cfg.AccentNote, AccentVelocity, true
	case 1:
		return c.cfg.NormalNote, NormalVelocity, true
	}
	return 0, 0, false
}

func (c *ClickOutput) Schedule(ev audio.Event, onDone func(audio.Handle)) (audio.Handle, error) {
	note, vel, ok := c.Note(ev.SoundID)
	if !ok {
		return nil, audio.ErrUnknownSound
	}

	delay := time.Duration((ev.FireTime - c.clock.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}

	n := &noteHandle{out: c, note: note, velocity: vel, onDone: onDone}
	n.mu.Lock()
	n.timer = time.AfterFunc(delay, n.fire)
	n.mu.Unlock()
	return n, nil
}

// noteHandle is one click: note-on at fire time, note-off after the gate
type noteHandle struct {
	out      *ClickOutput
	note     uint8
	velocity uint8
	onDone   func(audio.Handle)

	mu       sync.Mutex
	timer    *time.Timer
	sounding bool
	done     bool
}

func (n *noteHandle) fire() {
	n.mu.Lock()
	if n.done {
		n.mu.Unlock()
		return
	}
	defer n.mu.Unlock()

	if err := n.out.send(gomidi.NoteOn(n.out.cfg.Channel, n.note, n.velocity)); err != nil {
		debug.Log("midi", "note on: %v", err)
	}
	n.sounding = true
	n.timer = time.AfterFunc(n.out.cfg.Gate, n.release)
}

func (n *noteHandle) release() {
	n.mu.Lock()
	if n.done {
		n.mu.Unlock()
		return
	}
	n.done, n.sounding = true, false
	n.mu.Unlock()

	if err := n.out.send(gomidi.NoteOff(n.out.cfg.Channel, n.note)); err != nil {
		debug.Log("midi", "note off: %v", err)
	}
	if n.onDone != nil {
		n.onDone(n)
	}
}

// Stop cancels a pending click or cuts a sounding one. onDone is not called.
func (n *noteHandle) Stop() {
	n.mu.Lock()
	if n.done {
		n.mu.Unlock()
		return
	}
	n.done = true
	n.timer.Stop()
	sounding := n.sounding
	n.sounding = false
	n.mu.Unlock()

	if sounding {
		n.out.send(gomidi.NoteOff(n.out.cfg.Channel, n.note))
	}
}

func (n *noteHandle) Done() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done
}
