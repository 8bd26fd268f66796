package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"

	"go-metronome/debug"
)

// resampleQuality is passed to beep.Resample when a file's rate differs
const resampleQuality = 4

// Bank holds decoded sample buffers indexed by sound id. It is filled once at
// startup and only read afterwards.
type Bank struct {
	format beep.Format

	mu      sync.RWMutex
	buffers map[int]*beep.Buffer
	loaded  atomic.Int32
}

// NewBank creates an empty bank whose buffers are all at sampleRate
func NewBank(sampleRate beep.SampleRate) *Bank {
	return &Bank{
		format:  beep.Format{SampleRate: sampleRate, NumChannels: 2, Precision: 2},
		buffers: make(map[int]*beep.Buffer),
	}
}

func (b *Bank) SampleRate() beep.SampleRate {
	return b.format.SampleRate
}

// Buffer returns the buffer for id; ok is false if it is not loaded (yet)
func (b *Bank) Buffer(id int) (*beep.Buffer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	buf, ok := b.buffers[id]
	return buf, ok
}

// Loaded returns how many sounds are ready
func (b *Bank) Loaded() int {
	return int(b.loaded.Load())
}

// Set installs a decoded buffer under id
func (b *Bank) Set(id int, buf *beep.Buffer) {
	b.mu.Lock()
	_, existed := b.buffers[id]
	b.buffers[id] = buf
	b.mu.Unlock()
	if !existed {
		b.loaded.Add(1)
	}
}

// Load decodes the wav files in order; path i becomes sound id i. A file
// that fails leaves its id silent, the rest still load.
func (b *Bank) Load(paths []string) error {
	var errs []error
	for id, path := range paths {
		buf, err := b.decodeFile(path)
		if err != nil {
			debug.Log("bank", "sound %d: %v", id, err)
			errs = append(errs, fmt.Errorf("sound %d: %w", id, err))
			continue
		}
		b.Set(id, buf)
		debug.Log("bank", "sound %d: %s (%d frames)", id, path, buf.Len())
	}
	return errors.Join(errs...)
}

// LoadAsync runs Load in the background and reports through done
func (b *Bank) LoadAsync(paths []string, done func(error)) {
	go func() {
		err := b.Load(paths)
		if done != nil {
			done(err)
		}
	}()
}

func (b *Bank) decodeFile(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	var src beep.Streamer = streamer
	if format.SampleRate != b.format.SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, b.format.SampleRate, streamer)
	}

	buf := beep.NewBuffer(b.format)
	buf.Append(src)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, nil
}

// Click describes a synthesized click sound
type Click struct {
	Freq     float64 // Hz
	Duration float64 // seconds
}

// DefaultClicks are used when no sound files are configured: a high accent
// click and a lower normal click.
var DefaultClicks = []Click{
	{Freq: 1760, Duration: 0.05},
	{Freq: 880, Duration: 0.05},
}

// Synthesize fills ids 0..n-1 with exponentially decaying sine clicks
func (b *Bank) Synthesize(clicks []Click) {
	for id, c := range clicks {
		b.Set(id, b.click(c))
	}
}

func (b *Bank) click(c Click) *beep.Buffer {
	rate := float64(b.format.SampleRate)
	total := int(c.Duration * rate)
	pos := 0
	gen := beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		for i := range samples {
			if pos >= total {
				return i, i > 0
			}
			t := float64(pos) / rate
			v := 0.25 * math.Sin(2*math.Pi*c.Freq*t) * math.Exp(-t*60)
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return len(samples), true
	})
	buf := beep.NewBuffer(b.format)
	buf.Append(gen)
	return buf
}
