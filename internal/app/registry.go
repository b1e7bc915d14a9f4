package app

import (
	"sync"
	"time"
)

// Registry is the process-wide table of live sessions keyed by room code.
// It is the only structure touched by more than one session's logic, so it
// carries its own lock. Lifecycle is injected: tests build isolated
// registries instead of sharing a package-level singleton.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	return s, ok
}

// Put registers a session, reporting false when the code is already taken.
func (r *Registry) Put(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.code]; ok {
		return false
	}
	r.sessions[s.code] = s
	return true
}

func (r *Registry) Delete(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, code)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Idle returns sessions whose last activity is older than cutoff. The caller
// decides what to do with them; the registry never reaches into a session
// beyond reading its activity timestamp.
func (r *Registry) Idle(cutoff time.Time) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var idle []*Session
	for _, s := range r.sessions {
		s.mu.Lock()
		stale := s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if stale {
			idle = append(idle, s)
		}
	}
	return idle
}
