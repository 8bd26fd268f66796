package midi

// Click velocities
const (
	AccentVelocity uint8 = 127
	NormalVelocity uint8 = 90
)

// NoteEvent is sent when a note is played on a tap input
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
}
