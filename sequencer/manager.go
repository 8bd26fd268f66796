package sequencer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go-metronome/audio"
	"go-metronome/debug"
	"go-metronome/pattern"
	"go-metronome/tempo"
)

// Options configures the transport
type Options struct {
	Bounds    tempo.Bounds
	Tempo     int           // initial BPM
	Lookahead float64       // seconds committed ahead of the audio clock
	Rearm     time.Duration // delay between scheduling passes
	Tap       tempo.TrackerConfig
}

// DefaultOptions returns the stock metronome settings
func DefaultOptions() Options {
	return Options{
		Bounds:    tempo.DefaultBounds,
		Tempo:     60,
		Lookahead: DefaultLookahead,
		Rearm:     25 * time.Millisecond,
		Tap:       tempo.DefaultTrackerConfig,
	}
}

// Pulse is the visual cue for the first tick of a beat
type Pulse struct {
	Beat     int
	Downbeat bool    // first beat of the pattern
	FireTime float64 // audio clock time the tick sounds
}

// Manager is the transport: it owns the scheduler and playback session and
// glues tempo, tap tempo and pattern edits together.
type Manager struct {
	opts    Options
	store   *pattern.Store
	taps    *tempo.Tracker
	clock   audio.Clock
	sink    audio.Sink
	session *audio.Session
	sched   *Scheduler // owned by the loop goroutine while playing

	bpm     atomic.Int64
	playing atomic.Bool

	mu     sync.Mutex // serializes Play/Stop; never taken by the loop
	cancel context.CancelFunc
	done   chan struct{}

	cursorMu sync.Mutex
	cursor   Position

	epoch time.Time
	now   func() time.Time

	// Pulses carries beat cues; dropped when nobody is listening
	Pulses chan Pulse

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates a stopped transport
func NewManager(store *pattern.Store, clock audio.Clock, sink audio.Sink, opts Options) *Manager {
	if opts.Rearm <= 0 {
		opts.Rearm = DefaultOptions().Rearm
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	opts.Tap.Bounds = opts.Bounds

	m := &Manager{
		opts:       opts,
		store:      store,
		taps:       tempo.NewTracker(opts.Tap),
		clock:      clock,
		sink:       sink,
		session:    audio.NewSession(),
		sched:      NewScheduler(opts.Lookahead),
		epoch:      time.Now(),
		now:        time.Now,
		Pulses:     make(chan Pulse, 16),
		UpdateChan: make(chan struct{}, 1),
	}
	m.bpm.Store(int64(opts.Bounds.Clamp(opts.Tempo)))
	store.SetOnChange(func(pattern.Pattern) { m.notifyUpdate() })
	return m
}

// Play starts playback from the first tick. Any running session is fully
// stopped first.
func (m *Manager) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	m.sched.Reset(m.clock.Now())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	m.playing.Store(true)

	debug.Log("sched", "play at %.3fs, %d bpm, pattern %q", m.clock.Now(), m.Tempo(), m.store.Snapshot())
	go m.schedulerLoop(ctx, done)
	m.notifyUpdate()
}

// Stop cancels the scheduling loop and silences every live emission. Calling
// it again is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	wasPlaying := m.cancel != nil
	if m.cancel != nil {
		m.cancel()
		<-m.done // the loop may be mid-pass; wait so its handles get stopped below
		m.cancel, m.done = nil, nil
	}
	silenced := m.session.StopAll()
	m.sched.Reset(0)
	m.setCursor(Position{})
	m.playing.Store(false)

	if wasPlaying {
		debug.Log("sched", "stop, silenced %d", silenced)
		m.notifyUpdate()
	}
}

// TogglePlay starts or stops playback
func (m *Manager) TogglePlay() {
	if m.IsPlaying() {
		m.Stop()
	} else {
		m.Play()
	}
}

// Close stops playback
func (m *Manager) Close() {
	m.Stop()
}

// IsPlaying reports whether the scheduling loop is running
func (m *Manager) IsPlaying() bool {
	return m.playing.Load()
}

// schedulerLoop runs one pass, then re-arms a fresh timer. Variable callback
// latency only delays the next pass; timing error stays within Lookahead.
func (m *Manager) schedulerLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.schedulePass()
			timer.Reset(m.opts.Rearm)
		}
	}
}

func (m *Manager) schedulePass() {
	p := m.store.Snapshot()
	bpm := int(m.bpm.Load())
	now := m.clock.Now()

	if n := m.sched.Pass(now, p, bpm, m.emit); n > 0 {
		debug.LogEvery(20, "sched", "pass at %.3fs emitted %d, active %d", now, n, m.session.Len())
		m.notifyUpdate()
	}
}

func (m *Manager) emit(ev audio.Event, pos Position) {
	h, err := m.sink.Schedule(ev, m.session.Remove)
	switch {
	case errors.Is(err, audio.ErrUnknownSound):
		// unloaded or muted sound: silence
	case err != nil:
		debug.Log("sched", "schedule %+v: %v", ev, err)
	default:
		m.session.Add(h)
	}

	m.setCursor(pos)
	if pos.Tick == 0 {
		TrySend(m.Pulses, Pulse{Beat: pos.Beat, Downbeat: pos.Beat == 0, FireTime: ev.FireTime})
	}
}

// Active returns how many emissions may still be sounding
func (m *Manager) Active() int {
	return m.session.Len()
}

// Cursor returns the most recently scheduled position
func (m *Manager) Cursor() Position {
	m.cursorMu.Lock()
	defer m.cursorMu.Unlock()
	return m.cursor
}

func (m *Manager) setCursor(p Position) {
	m.cursorMu.Lock()
	m.cursor = p
	m.cursorMu.Unlock()
}

// Clock returns the audio clock the transport schedules against
func (m *Manager) Clock() audio.Clock {
	return m.clock
}

// Tempo

// Tempo returns the current BPM
func (m *Manager) Tempo() int {
	return int(m.bpm.Load())
}

// Bounds returns the accepted tempo range
func (m *Manager) Bounds() tempo.Bounds {
	return m.opts.Bounds
}

// SetTempo sets the BPM, clamped to bounds. Ticks already scheduled keep
// their times; only later spacing changes.
func (m *Manager) SetTempo(bpm int) int {
	bpm = m.opts.Bounds.Clamp(bpm)
	if old := m.bpm.Swap(int64(bpm)); old != int64(bpm) {
		debug.Log("sched", "tempo %d -> %d", old, bpm)
		m.notifyUpdate()
	}
	return bpm
}

// NudgeTempo changes the BPM by delta
func (m *Manager) NudgeTempo(delta int) int {
	return m.SetTempo(m.Tempo() + delta)
}

// RecordTap registers a tap now and applies the detected tempo, if any
func (m *Manager) RecordTap() (int, bool) {
	return m.RecordTapAt(m.now().Sub(m.epoch).Milliseconds())
}

// RecordTapAt registers a tap at ms on the caller's monotonic clock
func (m *Manager) RecordTapAt(ms int64) (int, bool) {
	bpm, ok := m.taps.RecordTap(ms)
	if !ok {
		return 0, false
	}
	return m.SetTempo(bpm), true
}

// Pattern editing

// Pattern returns the current pattern snapshot
func (m *Manager) Pattern() pattern.Pattern {
	return m.store.Snapshot()
}

// SetPattern replaces the pattern
func (m *Manager) SetPattern(p pattern.Pattern) error {
	return m.store.Set(p)
}

func (m *Manager) AddBeat() pattern.Pattern {
	return m.store.AddBeat()
}

func (m *Manager) RemoveBeat() pattern.Pattern {
	return m.store.RemoveBeat()
}

func (m *Manager) AddTick(beat int) pattern.Pattern {
	return m.store.AddTick(beat)
}

func (m *Manager) RemoveTick(beat int) pattern.Pattern {
	return m.store.RemoveTick(beat)
}

func (m *Manager) CycleTick(beat, tick int) pattern.Pattern {
	return m.store.CycleTick(beat, tick)
}

// notifyUpdate wakes the TUI without blocking
func (m *Manager) notifyUpdate() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
