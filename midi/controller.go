package midi

// Controller is the interface for MIDI input devices
type Controller interface {
	ID() string

	// Note-on events with non-zero velocity
	NoteEvents() <-chan NoteEvent

	// Lifecycle
	Close() error
}
