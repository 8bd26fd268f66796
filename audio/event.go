package audio

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrUnknownSound means no decoded buffer exists for a sound id. The
	// event is skipped; it is never queued for later.
	ErrUnknownSound = errors.New("no buffer for sound")

	// ErrNoAudio means the output device could not be opened
	ErrNoAudio = errors.New("audio output unavailable")
)

// Event is one tick committed to the output at an exact clock time
type Event struct {
	FireTime float64 // audio clock seconds
	SoundID  int
	Gain     float64
}

// Handle is a sounding (or pending) emission. Stop silences it at once and
// must not invoke the completion callback synchronously.
type Handle interface {
	Stop()
	Done() bool
}

// Sink turns events into trackable handles. onDone fires once when the
// emission completes on its own.
type Sink interface {
	Schedule(ev Event, onDone func(Handle)) (Handle, error)
}

// Clock is the audio clock the scheduler plans against
type Clock interface {
	Now() float64
}

// Tee schedules every event on all sinks. A sink that has no sound for the
// event is skipped; the event fails only if every sink fails.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Schedule(ev Event, onDone func(Handle)) (Handle, error) {
	g := &group{}
	var firstErr error
	for _, s := range t {
		h, err := s.Schedule(ev, g.childDone)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		g.add(h)
	}
	if len(g.children) == 0 {
		if firstErr == nil {
			firstErr = ErrUnknownSound
		}
		return nil, firstErr
	}
	g.arm(onDone)
	return g, nil
}

// group completes when all of its children complete
type group struct {
	mu       sync.Mutex
	children []Handle
	pending  int
	armed    bool
	onDone   func(Handle)
	stopped  atomic.Bool
}

func (g *group) add(h Handle) {
	g.mu.Lock()
	g.children = append(g.children, h)
	g.pending++
	g.mu.Unlock()
}

func (g *group) arm(onDone func(Handle)) {
	g.mu.Lock()
	g.onDone = onDone
	g.armed = true
	// children that finished before arming already decremented pending
	fire := g.pending <= 0
	g.mu.Unlock()
	if fire && onDone != nil {
		onDone(g)
	}
}

func (g *group) childDone(Handle) {
	g.mu.Lock()
	g.pending--
	fire := g.armed && g.pending == 0
	onDone := g.onDone
	g.mu.Unlock()
	if fire && onDone != nil {
		onDone(g)
	}
}

func (g *group) Stop() {
	g.stopped.Store(true)
	g.mu.Lock()
	children := append([]Handle(nil), g.children...)
	g.mu.Unlock()
	for _, h := range children {
		h.Stop()
	}
}

func (g *group) Done() bool {
	if g.stopped.Load() {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending <= 0
}
