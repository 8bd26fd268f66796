package sequencer

import (
	"context"
	"fmt"

	"go-metronome/debug"
)

// Worker owns a Manager and applies commands arriving through the broker on
// its own goroutine, so the UI never blocks on transport work.
type Worker struct {
	manager *Manager
	broker  *Broker
}

func NewWorker(m *Manager, b *Broker) *Worker {
	return &Worker{manager: m, broker: b}
}

// Run processes commands until ctx is done, then stops playback
func (w *Worker) Run(ctx context.Context) {
	defer w.manager.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.broker.ToWorker:
			w.handle(msg)
		}
	}
}

func (w *Worker) handle(msg any) {
	switch msg := msg.(type) {
	case PlayMsg:
		if msg.Tempo > 0 {
			w.manager.SetTempo(msg.Tempo)
		}
		w.manager.Play()
		w.status()
	case StopMsg:
		w.manager.Stop()
		w.status()
	case UpdateTempoMsg:
		w.manager.SetTempo(msg.Tempo)
		w.status()
	default:
		debug.Log("worker", "unknown message %T", msg)
		w.ReportError(fmt.Errorf("unknown worker message %T", msg))
	}
}

func (w *Worker) status() {
	TrySend[any](w.broker.ToUI, PlaybackStatus{
		Playing: w.manager.IsPlaying(),
		Tempo:   w.manager.Tempo(),
	})
}

// Play asks the worker to start at tempo (0 keeps the current one)
func (w *Worker) Play(tempo int) bool {
	return TrySend[any](w.broker.ToWorker, PlayMsg{Tempo: tempo})
}

func (w *Worker) Stop() bool {
	return TrySend[any](w.broker.ToWorker, StopMsg{})
}

func (w *Worker) UpdateTempo(tempo int) bool {
	return TrySend[any](w.broker.ToWorker, UpdateTempoMsg{Tempo: tempo})
}

// ReportError forwards a non-fatal error to the UI
func (w *Worker) ReportError(err error) {
	if err == nil {
		return
	}
	debug.Log("worker", "error: %v", err)
	TrySend[any](w.broker.ToUI, ErrorMsg{Err: err})
}

// Events returns the UI-bound event stream
func (w *Worker) Events() <-chan any {
	return w.broker.ToUI
}
