package audio

import "sync"

// Session is the set of emissions that may still be sounding. Handles leave
// the set when they complete; StopAll silences whatever is left.
type Session struct {
	mu     sync.Mutex
	active map[Handle]struct{}
}

func NewSession() *Session {
	return &Session{active: make(map[Handle]struct{})}
}

// Add tracks h. A handle that already completed is dropped straight away.
func (s *Session) Add(h Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	s.active[h] = struct{}{}
	s.mu.Unlock()

	// completion may have raced ahead of Add
	if h.Done() {
		s.Remove(h)
	}
}

// Remove forgets h; used as the completion callback
func (s *Session) Remove(h Handle) {
	s.mu.Lock()
	delete(s.active, h)
	s.mu.Unlock()
}

// StopAll force-stops every tracked handle, including ones committed for a
// future time, and clears the set.
func (s *Session) StopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.active)
	for h := range s.active {
		h.Stop()
	}
	clear(s.active)
	return n
}

// Len returns the number of tracked handles
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
