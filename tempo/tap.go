package tempo

import (
	"math"
	"sync"
	"time"

	"go-metronome/debug"
)

// TrackerConfig configures tap tempo detection
type TrackerConfig struct {
	Bounds     Bounds
	History    int           // taps kept, oldest evicted
	Inactivity time.Duration // longer gaps restart the sequence
}

var DefaultTrackerConfig = TrackerConfig{
	Bounds:     DefaultBounds,
	History:    4,
	Inactivity: 3000 * time.Millisecond,
}

// Tracker turns tap timestamps into a BPM estimate
type Tracker struct {
	cfg TrackerConfig

	mu   sync.Mutex
	taps []int64 // ring buffer, milliseconds
	head int     // index of the oldest tap
	n    int
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.History < 2 {
		cfg.History = 2
	}
	return &Tracker{
		cfg:  cfg,
		taps: make([]int64, cfg.History),
	}
}

// RecordTap adds a tap at nowMs (monotonic milliseconds). ok is true when
// enough recent taps exist to report a tempo.
func (t *Tracker) RecordTap(nowMs int64) (bpm int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.n > 0 {
		gap := nowMs - t.at(t.n-1)
		if gap > t.cfg.Inactivity.Milliseconds() || gap < 0 {
			debug.Log("tap", "gap %dms, restarting sequence", gap)
			t.n = 0
			t.head = 0
		}
	}
	t.push(nowMs)

	if t.n < 2 {
		return 0, false
	}

	// consecutive gaps telescope to last-first
	mean := float64(t.at(t.n-1)-t.at(0)) / float64(t.n-1)
	if mean <= 0 {
		return 0, false
	}
	bpm = t.cfg.Bounds.Clamp(int(math.Round(60000 / mean)))
	debug.Log("tap", "taps=%d mean=%.1fms bpm=%d", t.n, mean, bpm)
	return bpm, true
}

// Len returns the number of taps in the active sequence
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Reset forgets all taps
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.n = 0
	t.head = 0
	t.mu.Unlock()
}

func (t *Tracker) at(i int) int64 {
	return t.taps[(t.head+i)%len(t.taps)]
}

func (t *Tracker) push(ms int64) {
	if t.n == len(t.taps) {
		t.taps[t.head] = ms
		t.head = (t.head + 1) % len(t.taps)
		return
	}
	t.taps[(t.head+t.n)%len(t.taps)] = ms
	t.n++
}
