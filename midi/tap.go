package midi

import (
	"fmt"
	"sync"

	"go-metronome/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// TapInput turns every note-on from a MIDI input into a tap
type TapInput struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	mu       sync.Mutex // guards noteChan against sends after Close
	closed   bool
	noteChan chan NoteEvent
}

// NewTapInput opens inPort (input only)
func NewTapInput(id string, inPort drivers.In) (*TapInput, error) {
	ti := &TapInput{
		id:       id,
		inPort:   inPort,
		noteChan: make(chan NoteEvent, 32),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, ti.handle)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		ti.stopFunc = stop
	}

	return ti, nil
}

func (ti *TapInput) handle(msg gomidi.Message, timestampms int32) {
	var channel, note, velocity uint8
	if msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0 {
		ti.mu.Lock()
		defer ti.mu.Unlock()
		if ti.closed {
			return
		}
		select {
		case ti.noteChan <- NoteEvent{Note: note, Velocity: velocity, Channel: channel}:
		default:
			debug.Log("midi", "tap dropped on %s", ti.id)
		}
	}
}

func (ti *TapInput) ID() string {
	return ti.id
}

func (ti *TapInput) NoteEvents() <-chan NoteEvent {
	return ti.noteChan
}

func (ti *TapInput) Close() error {
	ti.mu.Lock()
	if ti.closed {
		ti.mu.Unlock()
		return nil
	}
	ti.closed = true
	close(ti.noteChan)
	ti.mu.Unlock()

	// a callback still in flight sees closed and drops its event
	if ti.stopFunc != nil {
		ti.stopFunc()
	}
	return nil
}
