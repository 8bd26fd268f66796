package pattern

import (
	"sync"
	"sync/atomic"
)

// Store publishes the current pattern to concurrent readers. Writers are
// serialized; readers load an immutable snapshot without locking.
type Store struct {
	limits  Limits
	current atomic.Pointer[Pattern]
	mu      sync.Mutex // serializes read-modify-write edits

	onChange func(Pattern)
}

// NewStore creates a store holding p, which must fit l
func NewStore(l Limits, p Pattern) (*Store, error) {
	p, err := New(l, p.beats...)
	if err != nil {
		return nil, err
	}
	s := &Store{limits: l}
	s.current.Store(&p)
	return s, nil
}

// SetOnChange registers a callback fired after every effective edit
func (s *Store) SetOnChange(fn func(Pattern)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) Limits() Limits {
	return s.limits
}

// Snapshot returns the current pattern
func (s *Store) Snapshot() Pattern {
	return *s.current.Load()
}

// Set replaces the pattern after validating it
func (s *Store) Set(p Pattern) error {
	p, err := New(s.limits, p.beats...)
	if err != nil {
		return err
	}
	s.update(func(Pattern) Pattern { return p })
	return nil
}

func (s *Store) AddBeat() Pattern {
	return s.update(func(p Pattern) Pattern { return p.AddBeat(s.limits) })
}

func (s *Store) RemoveBeat() Pattern {
	return s.update(Pattern.RemoveBeat)
}

func (s *Store) AddTick(beat int) Pattern {
	return s.update(func(p Pattern) Pattern { return p.AddTick(s.limits, beat) })
}

func (s *Store) RemoveTick(beat int) Pattern {
	return s.update(func(p Pattern) Pattern { return p.RemoveTick(beat) })
}

func (s *Store) CycleTick(beat, tick int) Pattern {
	return s.update(func(p Pattern) Pattern { return p.CycleTick(beat, tick) })
}

func (s *Store) update(edit func(Pattern) Pattern) Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := *s.current.Load()
	next := edit(old)
	if next.Equal(old) {
		return old
	}
	s.current.Store(&next)
	if s.onChange != nil {
		s.onChange(next)
	}
	return next
}
