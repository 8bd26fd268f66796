package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"

	"go-metronome/debug"
)

// Backend pulls rendered audio from a streamer at the device's pace
type Backend interface {
	Start(src beep.Streamer) error
	Close() error
	Headless() bool
}

// Open returns an oto-backed output, or a headless one when headless is set
// or the device cannot be opened. A device failure is returned wrapped in
// ErrNoAudio alongside the working headless fallback.
func Open(sampleRate beep.SampleRate, headless bool) (Backend, error) {
	if headless {
		return NewHeadless(sampleRate), nil
	}
	b, err := NewOtoBackend(sampleRate)
	if err != nil {
		debug.Log("audio", "oto unavailable: %v", err)
		return NewHeadless(sampleRate), fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	return b, nil
}

// HeadlessBackend drains the streamer in real time without a device so the
// audio clock keeps moving in no-audio mode.
type HeadlessBackend struct {
	rate   beep.SampleRate
	period time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

func NewHeadless(sampleRate beep.SampleRate) *HeadlessBackend {
	return &HeadlessBackend{rate: sampleRate, period: 10 * time.Millisecond}
}

func (h *HeadlessBackend) Headless() bool {
	return true
}

func (h *HeadlessBackend) Start(src beep.Streamer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return nil
	}
	h.stop = make(chan struct{})
	h.stopped = make(chan struct{})
	go h.run(src, h.stop, h.stopped)
	return nil
}

func (h *HeadlessBackend) run(src beep.Streamer, stop, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	start := time.Now()
	var rendered int
	buf := make([][2]float64, h.rate.N(h.period)*4)

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			// render whatever wall time says is due, so ticker jitter never
			// accumulates into clock drift
			due := h.rate.N(now.Sub(start)) - rendered
			for due > 0 {
				n := min(due, len(buf))
				src.Stream(buf[:n])
				rendered += n
				due -= n
			}
		}
	}
}

func (h *HeadlessBackend) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop == nil {
		return nil
	}
	close(h.stop)
	<-h.stopped
	h.stop = nil
	return nil
}
