// Package history keeps recent practice attempts per session.
package history

import (
	"sync"
	"time"
)

// Attempt is one scored capture.
type Attempt struct {
	Letter    string    `json:"letter"`
	Alignment int       `json:"alignment"`
	Form      int       `json:"form"`
	Overall   int       `json:"overall"`
	Supported bool      `json:"supported"`
	Timestamp time.Time `json:"timestamp"`
	Thumbnail []byte    `json:"thumbnail,omitempty"` // PNG
}

// Event announces a recorded attempt.
type Event struct {
	SessionID string
	Attempt   Attempt
	Duplicate bool
}

// Store interface for attempt history.
type Store interface {
	Add(sessionID string, a Attempt)
	Recent(sessionID string) []Attempt
	Latest(sessionID string) (Attempt, bool)
	Total(sessionID string) int
	Delete(sessionID string)
	Events() <-chan Event
	Emit(event Event)
}

type sessionLog struct {
	attempts []Attempt // newest first
	total    int
}

// MemoryStore keeps up to capacity attempts per session in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	capacity int
	eventsCh chan Event
}

// NewStore creates a store keeping capacity attempts per session.
func NewStore(capacity, eventBuffer int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		sessions: make(map[string]*sessionLog),
		capacity: capacity,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add records a as the newest attempt of the session, evicting the oldest beyond
// capacity.
func (s *MemoryStore) Add(sessionID string, a Attempt) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.sessions[sessionID]
	if !ok {
		l = &sessionLog{attempts: make([]Attempt, 0, s.capacity)}
		s.sessions[sessionID] = l
	}
	if len(l.attempts) < s.capacity {
		l.attempts = append(l.attempts, Attempt{})
	}
	copy(l.attempts[1:], l.attempts)
	l.attempts[0] = a
	l.total++
}

// Recent returns a copy of the session's kept attempts, newest first.
func (s *MemoryStore) Recent(sessionID string) []Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.sessions[sessionID]
	if !ok {
		return []Attempt{}
	}
	out := make([]Attempt, len(l.attempts))
	copy(out, l.attempts)
	return out
}

// Latest returns the newest attempt of the session.
func (s *MemoryStore) Latest(sessionID string) (Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.sessions[sessionID]
	if !ok || len(l.attempts) == 0 {
		return Attempt{}, false
	}
	return l.attempts[0], true
}

// Total returns how many attempts the session ever recorded, evicted ones included.
func (s *MemoryStore) Total(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.sessions[sessionID]; ok {
		return l.total
	}
	return 0
}

// Delete drops the session's history.
func (s *MemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Events returns the channel for attempt events.
func (s *MemoryStore) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends an attempt event (non-blocking).
func (s *MemoryStore) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
