package sequencer

import (
	"math"
	"testing"

	"go-metronome/audio"
	"go-metronome/pattern"
)

const eps = 1e-9

type emitted struct {
	ev  audio.Event
	pos Position
}

// run advances the clock in small steps, calling Pass each time, until n
// events have been emitted.
func run(s *Scheduler, p pattern.Pattern, bpm, n int, start float64) []emitted {
	var out []emitted
	for now := start; len(out) < n; now += 0.01 {
		s.Pass(now, p, bpm, func(ev audio.Event, pos Position) {
			out = append(out, emitted{ev, pos})
		})
	}
	return out[:n]
}

func mustParse(t *testing.T, s string) pattern.Pattern {
	t.Helper()
	p, err := pattern.Parse(s, pattern.DefaultLimits)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultPatternAt60(t *testing.T) {
	s := NewScheduler(DefaultLookahead)
	s.Reset(0)
	got := run(s, pattern.Default(), 60, 8, 0)

	wantTimes := []float64{0, 0.25, 0.5, 0.75, 1.0, 1.25, 1.5, 1.75}
	wantGains := []float64{4, 1, 1, 1, 4, 1, 1, 1}
	for i, e := range got {
		if math.Abs(e.ev.FireTime-wantTimes[i]) > eps {
			t.Errorf("event %d at %v, want %v", i, e.ev.FireTime, wantTimes[i])
		}
		if e.ev.Gain != wantGains[i] {
			t.Errorf("event %d gain %v, want %v", i, e.ev.Gain, wantGains[i])
		}
		wantPos := Position{Beat: i / 4, Tick: i % 4}
		if e.pos != wantPos {
			t.Errorf("event %d at %+v, want %+v", i, e.pos, wantPos)
		}
	}
}

func TestTickSpacingWithinBeat(t *testing.T) {
	patterns := []string{"Xooo Xooo", "Xo X.o Xoooooo", "X", "Xooooooooooooooo Xo"}
	for _, bpm := range []int{15, 60, 97, 120, 233, 300} {
		for _, ps := range patterns {
			p := mustParse(t, ps)
			s := NewScheduler(DefaultLookahead)
			s.Reset(3.5)

			total := 0
			for b := 0; b < p.Len(); b++ {
				total += p.TicksInBeat(b)
			}
			got := run(s, p, bpm, total*2, 3.5)

			for i := 1; i < len(got); i++ {
				prev, cur := got[i-1], got[i]
				if cur.ev.FireTime < prev.ev.FireTime {
					t.Fatalf("%d bpm %q: time went backwards at %d", bpm, ps, i)
				}
				if cur.pos.Beat != prev.pos.Beat {
					continue
				}
				want := 60 / float64(bpm) / float64(p.TicksInBeat(cur.pos.Beat))
				if d := cur.ev.FireTime - prev.ev.FireTime; math.Abs(d-want) > eps {
					t.Errorf("%d bpm %q beat %d: spacing %v, want %v", bpm, ps, cur.pos.Beat, d, want)
				}
			}
		}
	}
}

func TestBeatsLastOneBeatPeriod(t *testing.T) {
	p := mustParse(t, "Xo Xoo X")
	s := NewScheduler(DefaultLookahead)
	s.Reset(0)
	got := run(s, p, 120, 7, 0)

	// downbeats every 0.5s regardless of subdivision
	for _, i := range []int{0, 2, 5} {
		if got[i].pos.Tick != 0 {
			t.Fatalf("event %d not a downbeat: %+v", i, got[i].pos)
		}
	}
	for n, i := range []int{0, 2, 5} {
		if want := 0.5 * float64(n); math.Abs(got[i].ev.FireTime-want) > eps {
			t.Errorf("beat %d at %v, want %v", n, got[i].ev.FireTime, want)
		}
	}
	if got[6].pos != (Position{}) {
		t.Errorf("pattern did not wrap: %+v", got[6].pos)
	}
}

func TestTempoChangeOnlyAffectsLaterTicks(t *testing.T) {
	s := NewScheduler(DefaultLookahead)
	s.Reset(0)
	p := pattern.Default()

	var got []audio.Event
	emit := func(ev audio.Event, _ Position) { got = append(got, ev) }

	s.Pass(0, p, 60, emit)
	if len(got) != 1 {
		t.Fatalf("first pass emitted %d", len(got))
	}
	next, _ := s.Next()
	if math.Abs(next-0.25) > eps {
		t.Fatalf("next = %v, want 0.25", next)
	}

	// tempo change between passes: the already computed next tick stays put
	s.Pass(0.2, p, 90, emit)
	if len(got) != 2 || math.Abs(got[1].FireTime-0.25) > eps {
		t.Fatalf("tick after change at %v, want 0.25", got[1].FireTime)
	}
	next, _ = s.Next()
	if want := 0.25 + 60.0/90/4; math.Abs(next-want) > eps {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestPatternEditKeepsClock(t *testing.T) {
	s := NewScheduler(DefaultLookahead)
	s.Reset(0)
	emit := func(audio.Event, Position) {}

	p := mustParse(t, "Xooo Xooo Xooo")
	for now := 0.0; now < 2.3; now += 0.01 {
		s.Pass(now, p, 60, emit)
	}
	before, pos := s.Next()
	if pos.Beat != 2 {
		t.Fatalf("expected to be in beat 2, at %+v", pos)
	}

	// drop the beat the cursor is in
	shrunk := p.RemoveBeat()
	var got []emitted
	s.Pass(before, shrunk, 60, func(ev audio.Event, pos Position) { got = append(got, emitted{ev, pos}) })
	if len(got) == 0 {
		t.Fatal("nothing emitted")
	}
	if math.Abs(got[0].ev.FireTime-before) > eps {
		t.Errorf("edit moved the clock: %v -> %v", before, got[0].ev.FireTime)
	}
	if got[0].pos.Beat >= shrunk.Len() {
		t.Errorf("cursor outside pattern: %+v", got[0].pos)
	}
}

func TestPassResyncsAfterClockJump(t *testing.T) {
	s := NewScheduler(DefaultLookahead)
	s.Reset(0)
	p := pattern.Default()

	var got []emitted
	emit := func(ev audio.Event, pos Position) { got = append(got, emitted{ev, pos}) }

	s.Pass(0, p, 60, emit)
	got = got[:0]

	// a short stall is caught up tick by tick
	s.Pass(0.6, p, 60, emit)
	if len(got) != 2 || math.Abs(got[1].ev.FireTime-0.5) > eps {
		t.Fatalf("catch-up emitted %d events", len(got))
	}
	got = got[:0]

	// a jump past MaxLag emits one tick at now and keeps the pattern position
	s.Pass(20, p, 60, emit)
	if len(got) != 1 {
		t.Fatalf("jump emitted %d events, want 1", len(got))
	}
	if math.Abs(got[0].ev.FireTime-20) > eps {
		t.Errorf("resynced tick at %v, want 20", got[0].ev.FireTime)
	}
	if got[0].pos != (Position{Beat: 0, Tick: 3}) {
		t.Errorf("resynced at %+v, want beat 0 tick 3", got[0].pos)
	}
	if next, _ := s.Next(); math.Abs(next-20.25) > eps {
		t.Errorf("next = %v, want 20.25", next)
	}
}

func TestPassGuards(t *testing.T) {
	s := NewScheduler(DefaultLookahead)
	s.Reset(0)
	called := false
	emit := func(audio.Event, Position) { called = true }
	if n := s.Pass(10, pattern.Pattern{}, 60, emit); n != 0 || called {
		t.Error("empty pattern emitted")
	}
	if n := s.Pass(10, pattern.Default(), 0, emit); n != 0 || called {
		t.Error("zero tempo emitted")
	}
}

func TestVoicing(t *testing.T) {
	tests := []struct {
		tick pattern.Tick
		id   int
		gain float64
	}{
		{pattern.Accent, SoundAccent, 4},
		{pattern.Normal, SoundNormal, 1},
		{pattern.Muted, SoundMuted, 1},
	}
	for _, tt := range tests {
		id, gain := Voicing(tt.tick)
		if id != tt.id || gain != tt.gain {
			t.Errorf("%v: got (%d, %v), want (%d, %v)", tt.tick, id, gain, tt.id, tt.gain)
		}
	}
}
