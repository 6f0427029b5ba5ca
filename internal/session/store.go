package session

import "sync"

// state holds one user's dialogue state behind its own lock, so one user's
// transitions are serialized while different users proceed concurrently.
type state struct {
	mu      sync.Mutex
	current DialogueState
}

// Store keeps volatile per-user sessions. Loss on restart is acceptable:
// the durable truth lives in storage, a restarted user simply lands in
// Unauthenticated again.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*state
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*state)}
}

// Do runs fn with exclusive access to the user's dialogue state and commits
// whatever state fn returns. New users start Unauthenticated.
func (s *Store) Do(userID int64, fn func(current DialogueState) DialogueState) {
	s.mu.Lock()
	entry, ok := s.sessions[userID]
	if !ok {
		entry = &state{current: Unauthenticated{}}
		s.sessions[userID] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.current = fn(entry.current)
}

// Peek returns the user's current state without holding the session lock
// afterwards. Intended for tests and introspection, not for transitions.
func (s *Store) Peek(userID int64) DialogueState {
	s.mu.Lock()
	entry, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return Unauthenticated{}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.current
}
