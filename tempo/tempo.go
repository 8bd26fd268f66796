package tempo

import "math"

// Bounds is the accepted BPM range
type Bounds struct {
	Min, Max int
}

// DefaultBounds matches the stock metronome range
var DefaultBounds = Bounds{Min: 15, Max: 300}

// Clamp forces bpm into range. Out of range tempos are never rejected.
func (b Bounds) Clamp(bpm int) int {
	if bpm < b.Min {
		return b.Min
	}
	if bpm > b.Max {
		return b.Max
	}
	return bpm
}

// TickSeconds is the length of one tick when a beat at bpm is split evenly
// into ticks subdivisions.
func TickSeconds(bpm, ticks int) float64 {
	if bpm <= 0 || ticks <= 0 {
		return math.Inf(1)
	}
	return 60 / float64(bpm) / float64(ticks)
}
