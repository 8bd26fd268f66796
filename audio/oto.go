package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/faiface/beep"
)

// otoBufferSize is the device buffer; smaller means less output latency
const otoBufferSize = 20 * time.Millisecond

// OtoBackend plays through the system audio device
type OtoBackend struct {
	ctx    *oto.Context
	player *oto.Player
	mutex  sync.Mutex // only for setup/control operations
}

func NewOtoBackend(sampleRate beep.SampleRate) (*OtoBackend, error) {
	op := &oto.NewContextOptions{
		SampleRate:   int(sampleRate),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("oto context: %w", err)
	}
	return &OtoBackend{ctx: ctx}, nil
}

func (o *OtoBackend) Headless() bool {
	return false
}

func (o *OtoBackend) Start(src beep.Streamer) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.player != nil {
		return nil
	}
	o.player = o.ctx.NewPlayer(&streamReader{src: src})
	o.player.Play()
	return nil
}

func (o *OtoBackend) Close() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	if err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// streamReader adapts a beep.Streamer to the interleaved float32 little
// endian stream oto pulls from its audio thread.
type streamReader struct {
	src     beep.Streamer
	samples [][2]float64
}

const bytesPerFrame = 2 * 4

func (r *streamReader) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if cap(r.samples) < frames {
		r.samples = make([][2]float64, frames)
	}
	samples := r.samples[:frames]
	r.src.Stream(samples)

	for i, s := range samples {
		off := i * bytesPerFrame
		binary.LittleEndian.PutUint32(p[off:], math.Float32bits(float32(s[0])))
		binary.LittleEndian.PutUint32(p[off+4:], math.Float32bits(float32(s[1])))
	}
	return frames * bytesPerFrame, nil
}
