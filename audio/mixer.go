package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/faiface/beep"
)

// Mixer renders scheduled voices sample-accurately. Its frame counter is the
// audio clock: a voice whose FireTime maps to frame f starts exactly at f, no
// matter when the scheduler committed it.
type Mixer struct {
	bank  *Bank
	frame atomic.Int64 // frames rendered so far

	mu     sync.Mutex
	voices []*Voice
	tmp    [][2]float64
}

var _ beep.Streamer = (*Mixer)(nil)

func NewMixer(bank *Bank) *Mixer {
	return &Mixer{bank: bank}
}

// Now returns the audio clock in seconds
func (m *Mixer) Now() float64 {
	return float64(m.frame.Load()) / float64(m.bank.SampleRate())
}

// Voices returns the number of voices pending or sounding
func (m *Mixer) Voices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Schedule commits ev for playback. Sounds without a buffer return
// ErrUnknownSound and are never queued.
func (m *Mixer) Schedule(ev Event, onDone func(Handle)) (Handle, error) {
	buf, ok := m.bank.Buffer(ev.SoundID)
	if !ok {
		return nil, ErrUnknownSound
	}
	v := &Voice{
		start:  int64(math.Round(ev.FireTime * float64(m.bank.SampleRate()))),
		gain:   ev.Gain,
		src:    buf.Streamer(0, buf.Len()),
		onDone: onDone,
	}
	m.mu.Lock()
	m.voices = append(m.voices, v)
	m.mu.Unlock()
	return v, nil
}

// Stream implements beep.Streamer; it never runs dry
func (m *Mixer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		samples[i] = [2]float64{}
	}
	base := m.frame.Load()
	end := base + int64(len(samples))

	var finished []*Voice

	m.mu.Lock()
	if cap(m.tmp) < len(samples) {
		m.tmp = make([][2]float64, len(samples))
	}
	kept := m.voices[:0]
	for _, v := range m.voices {
		if v.stopped.Load() {
			v.finish()
			continue
		}
		if v.start >= end {
			kept = append(kept, v)
			continue
		}
		offset := 0
		if v.start > base {
			offset = int(v.start - base)
		}
		tmp := m.tmp[:len(samples)-offset]
		got, more := v.src.Stream(tmp)
		for i := 0; i < got; i++ {
			samples[offset+i][0] += tmp[i][0] * v.gain
			samples[offset+i][1] += tmp[i][1] * v.gain
		}
		if !more || got < len(tmp) {
			if v.finish() {
				finished = append(finished, v)
			}
			continue
		}
		kept = append(kept, v)
	}
	clear(m.voices[len(kept):])
	m.voices = kept
	m.mu.Unlock()

	m.frame.Store(end)

	for _, v := range finished {
		if v.onDone != nil {
			v.onDone(v)
		}
	}
	return len(samples), true
}

func (m *Mixer) Err() error {
	return nil
}

// Voice is a single scheduled buffer playback
type Voice struct {
	start  int64
	gain   float64
	src    beep.StreamSeeker
	onDone func(Handle)

	stopped atomic.Bool
	done    atomic.Bool
}

// Stop silences the voice; the mixer drops it on its next render
func (v *Voice) Stop() {
	v.stopped.Store(true)
	v.done.Store(true)
}

func (v *Voice) Done() bool {
	return v.done.Load()
}

// finish marks the voice done, reporting whether it completed naturally
func (v *Voice) finish() bool {
	return !v.done.Swap(true)
}
