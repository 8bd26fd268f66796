package sequencer

import (
	"go-metronome/audio"
	"go-metronome/debug"
	"go-metronome/pattern"
	"go-metronome/tempo"
)

// DefaultLookahead is how far ahead of the audio clock events are committed
const DefaultLookahead = 0.1

// DefaultMaxLag is how far the next tick may fall behind the audio clock
// before the schedule resyncs to now instead of emitting every missed tick
const DefaultMaxLag = 1.0

// AccentGain boosts accented ticks over normal ones
const AccentGain = 4.0

// Sound ids of the two-sound bank. Muted ticks use an id that has no buffer,
// which the sink treats as silence.
const (
	SoundAccent = 0
	SoundNormal = 1
	SoundMuted  = 2
)

// Position is a cursor into a pattern
type Position struct {
	Beat, Tick int
}

// Voicing maps a tick state to the sound and gain it plays with
func Voicing(t pattern.Tick) (soundID int, gain float64) {
	switch t {
	case pattern.Accent:
		return SoundAccent, AccentGain
	case pattern.Muted:
		return SoundMuted, 1
	}
	return SoundNormal, 1
}

// Scheduler walks the pattern on a virtual clock. Each Pass commits every
// tick due before now+Lookahead, reading tempo and pattern fresh so edits
// only ever affect ticks not yet emitted.
type Scheduler struct {
	Lookahead float64
	MaxLag    float64

	next float64 // audio time of the next unemitted tick
	pos  Position
}

func NewScheduler(lookahead float64) *Scheduler {
	return &Scheduler{Lookahead: lookahead, MaxLag: DefaultMaxLag}
}

// Reset rewinds to the first tick, due at now
func (s *Scheduler) Reset(now float64) {
	s.next = now
	s.pos = Position{}
}

// Next returns the fire time and position of the next tick to be emitted
func (s *Scheduler) Next() (float64, Position) {
	return s.next, s.pos
}

// Pass emits all ticks due within the look-ahead window and returns how many
// were emitted.
func (s *Scheduler) Pass(now float64, p pattern.Pattern, bpm int, emit func(audio.Event, Position)) int {
	if p.Len() == 0 || bpm <= 0 {
		return 0
	}
	// clock jumped (suspend, stalled loop): drop the missed ticks
	if s.MaxLag > 0 && now-s.next > s.MaxLag {
		debug.Log("sched", "%.3fs behind at %.3fs, resync", now-s.next, now)
		s.next = now
	}

	n := 0
	for s.next <= now+s.Lookahead {
		s.normalize(p)

		tick, _ := p.Tick(s.pos.Beat, s.pos.Tick)
		id, gain := Voicing(tick)
		emit(audio.Event{FireTime: s.next, SoundID: id, Gain: gain}, s.pos)
		n++

		ticks := p.TicksInBeat(s.pos.Beat)
		s.next += tempo.TickSeconds(bpm, ticks)

		s.pos.Tick++
		if s.pos.Tick >= ticks {
			s.pos.Tick = 0
			s.pos.Beat = (s.pos.Beat + 1) % p.Len()
		}
	}
	return n
}

// normalize pulls the cursor back inside a pattern that shrank since the
// last pass.
func (s *Scheduler) normalize(p pattern.Pattern) {
	if s.pos.Beat >= p.Len() {
		s.pos = Position{Beat: s.pos.Beat % p.Len()}
	}
	if s.pos.Tick >= p.TicksInBeat(s.pos.Beat) {
		s.pos.Tick = 0
		s.pos.Beat = (s.pos.Beat + 1) % p.Len()
	}
}
