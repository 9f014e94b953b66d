package session

import (
	"errors"
	"sync"
	"time"
)

// ErrStoreFull means the session cap is reached and no idle session could
// be evicted.
var ErrStoreFull = errors.New("too many active sessions")

// Store is a thread-safe in-memory session registry with TTL eviction.
// Sessions are independently owned: nothing is shared between entries, so
// concurrent sessions (multiple tabs, multiple users) never interfere.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	max      int
}

type entry struct {
	sess    *Session
	touched time.Time
}

func NewStore(ttl time.Duration, max int) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if max <= 0 {
		max = 100
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		max:      max,
	}
}

// Put registers a session. When the store is at capacity it first evicts
// expired entries; if none expired, the put is refused.
func (s *Store) Put(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.max {
		s.evictExpired(time.Now())
	}
	if len(s.sessions) >= s.max {
		return ErrStoreFull
	}
	s.sessions[sess.ID] = &entry{sess: sess, touched: time.Now()}
	return nil
}

// Get returns a session by ID, refreshing its TTL, or nil.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.sessions[id]
	if e == nil {
		return nil
	}
	e.touched = time.Now()
	return e.sess
}

// Delete discards a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup evicts sessions idle past the TTL. Called periodically from main.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired(time.Now())
}

func (s *Store) evictExpired(now time.Time) {
	for id, e := range s.sessions {
		if now.Sub(e.touched) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
