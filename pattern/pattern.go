package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// Tick is the sound state of a single pattern position
type Tick uint8

const (
	Accent Tick = iota
	Normal
	Muted

	numTickStates = 3
)

// Next cycles Accent -> Normal -> Muted -> Accent
func (t Tick) Next() Tick {
	return (t + 1) % numTickStates
}

func (t Tick) Valid() bool {
	return t < numTickStates
}

func (t Tick) String() string {
	switch t {
	case Accent:
		return "accent"
	case Normal:
		return "normal"
	case Muted:
		return "muted"
	}
	return fmt.Sprintf("Tick(%d)", uint8(t))
}

// Rune returns the text notation symbol for a tick
func (t Tick) Rune() rune {
	switch t {
	case Accent:
		return 'X'
	case Muted:
		return '.'
	}
	return 'o'
}

// Beat is an ordered group of ticks sharing one beat period
type Beat []Tick

// Limits bounds the shape of a pattern
type Limits struct {
	MaxBeats        int
	MaxTicksPerBeat int
}

// DefaultLimits matches the stock metronome: 16 beats of up to 16 ticks
var DefaultLimits = Limits{MaxBeats: 16, MaxTicksPerBeat: 16}

var ErrInvalid = errors.New("invalid pattern")

// Pattern is an immutable sequence of beats. Every edit returns a new value
// and never shares backing arrays with the receiver, so a snapshot handed to
// the scheduler stays consistent while the UI keeps editing.
type Pattern struct {
	beats []Beat
}

// New builds a pattern from beats, validating it against limits
func New(l Limits, beats ...Beat) (Pattern, error) {
	if len(beats) == 0 || len(beats) > l.MaxBeats {
		return Pattern{}, fmt.Errorf("%w: %d beats (want 1..%d)", ErrInvalid, len(beats), l.MaxBeats)
	}
	for i, b := range beats {
		if len(b) == 0 || len(b) > l.MaxTicksPerBeat {
			return Pattern{}, fmt.Errorf("%w: beat %d has %d ticks (want 1..%d)", ErrInvalid, i+1, len(b), l.MaxTicksPerBeat)
		}
		for j, t := range b {
			if !t.Valid() {
				return Pattern{}, fmt.Errorf("%w: beat %d tick %d: %v", ErrInvalid, i+1, j+1, t)
			}
		}
	}
	return Pattern{beats: cloneBeats(beats)}, nil
}

// Default returns two beats of four ticks with the first tick of each accented
func Default() Pattern {
	return Pattern{beats: []Beat{
		{Accent, Normal, Normal, Normal},
		{Accent, Normal, Normal, Normal},
	}}
}

// Len returns the number of beats
func (p Pattern) Len() int {
	return len(p.beats)
}

// TicksInBeat returns the tick count of beat b (0 if out of range)
func (p Pattern) TicksInBeat(b int) int {
	if b < 0 || b >= len(p.beats) {
		return 0
	}
	return len(p.beats[b])
}

// Tick returns the tick at (b, t); ok is false when out of range
func (p Pattern) Tick(b, t int) (Tick, bool) {
	if b < 0 || b >= len(p.beats) || t < 0 || t >= len(p.beats[b]) {
		return 0, false
	}
	return p.beats[b][t], true
}

// Beats returns a deep copy of the beats
func (p Pattern) Beats() []Beat {
	return cloneBeats(p.beats)
}

// Equal reports whether two patterns have identical shape and ticks
func (p Pattern) Equal(o Pattern) bool {
	if len(p.beats) != len(o.beats) {
		return false
	}
	for i := range p.beats {
		if len(p.beats[i]) != len(o.beats[i]) {
			return false
		}
		for j := range p.beats[i] {
			if p.beats[i][j] != o.beats[i][j] {
				return false
			}
		}
	}
	return true
}

// AddBeat appends a beat with the last beat's tick count, accented on its
// first tick. No-op at the beat limit.
func (p Pattern) AddBeat(l Limits) Pattern {
	if len(p.beats) == 0 || len(p.beats) >= l.MaxBeats {
		return p
	}
	n := len(p.beats[len(p.beats)-1])
	b := make(Beat, n)
	b[0] = Accent
	for i := 1; i < n; i++ {
		b[i] = Normal
	}
	beats := cloneBeats(p.beats)
	return Pattern{beats: append(beats, b)}
}

// RemoveBeat drops the last beat. No-op with a single beat left.
func (p Pattern) RemoveBeat() Pattern {
	if len(p.beats) <= 1 {
		return p
	}
	return Pattern{beats: cloneBeats(p.beats[:len(p.beats)-1])}
}

// AddTick appends a Normal tick to beat b. No-op at the tick limit.
func (p Pattern) AddTick(l Limits, b int) Pattern {
	if b < 0 || b >= len(p.beats) || len(p.beats[b]) >= l.MaxTicksPerBeat {
		return p
	}
	beats := cloneBeats(p.beats)
	beats[b] = append(beats[b], Normal)
	return Pattern{beats: beats}
}

// RemoveTick drops the last tick of beat b. No-op with a single tick left.
func (p Pattern) RemoveTick(b int) Pattern {
	if b < 0 || b >= len(p.beats) || len(p.beats[b]) <= 1 {
		return p
	}
	beats := cloneBeats(p.beats)
	beats[b] = beats[b][:len(beats[b])-1]
	return Pattern{beats: beats}
}

// CycleTick advances the tick at (b, t) to its next state
func (p Pattern) CycleTick(b, t int) Pattern {
	if _, ok := p.Tick(b, t); !ok {
		return p
	}
	beats := cloneBeats(p.beats)
	beats[b][t] = beats[b][t].Next()
	return Pattern{beats: beats}
}

// String renders the text notation, e.g. "Xooo Xooo"
func (p Pattern) String() string {
	var sb strings.Builder
	for i, b := range p.beats {
		if i > 0 {
			sb.WriteByte(' ')
		}
		for _, t := range b {
			sb.WriteRune(t.Rune())
		}
	}
	return sb.String()
}

// Parse reads the text notation: X accent, o normal, . muted. Beats are
// separated by whitespace or '|'.
func Parse(s string, l Limits) (Pattern, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ' ' || r == '\t' || r == '\n' || r == ','
	})
	beats := make([]Beat, 0, len(fields))
	for _, f := range fields {
		b := make(Beat, 0, len(f))
		for _, r := range f {
			switch r {
			case 'X', 'x', '0':
				b = append(b, Accent)
			case 'o', 'O', '1':
				b = append(b, Normal)
			case '.', '-', '2':
				b = append(b, Muted)
			default:
				return Pattern{}, fmt.Errorf("%w: unexpected %q in %q", ErrInvalid, r, f)
			}
		}
		beats = append(beats, b)
	}
	return New(l, beats...)
}

func cloneBeats(beats []Beat) []Beat {
	out := make([]Beat, len(beats))
	for i, b := range beats {
		out[i] = append(Beat(nil), b...)
	}
	return out
}
