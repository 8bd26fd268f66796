package sequencer

import "time"

type (
	// Broker is the message boundary between the UI and the worker that owns
	// the transport. ToWorker carries commands (PlayMsg, StopMsg,
	// UpdateTempoMsg); ToUI carries events (PlaybackStatus, ErrorMsg).
	//
	// Both channels are buffered; senders use TrySend so neither side can
	// stall the other.
	Broker struct {
		ToWorker chan any
		ToUI     chan any
	}

	// PlayMsg starts playback at Tempo (0 keeps the current tempo)
	PlayMsg struct {
		Tempo int
	}

	StopMsg struct{}

	UpdateTempoMsg struct {
		Tempo int
	}

	// PlaybackStatus reports the transport state after a command
	PlaybackStatus struct {
		Playing bool
		Tempo   int
	}

	// ErrorMsg reports a non-fatal failure (audio backend, sound loading)
	ErrorMsg struct {
		Err error
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToWorker: make(chan any, 64),
		ToUI:     make(chan any, 64),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
