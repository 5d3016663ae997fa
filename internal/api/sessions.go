package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/taxquarter/backend/internal/filing"
)

// sessionTTL bounds how long an abandoned filing session is kept. Sessions
// are cheap in-memory state; a user who walks away simply starts over.
const sessionTTL = 2 * time.Hour

type sessionEntry struct {
	wizard    *filing.Wizard
	expiresAt time.Time
}

// sessionStore keeps live filing sessions in memory, keyed by session ID.
// Sessions never survive a restart; the aggregation they were seeded from is
// re-runnable at any time.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	nowFunc  func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]sessionEntry),
		nowFunc:  time.Now,
	}
}

func (s *sessionStore) put(w *filing.Wizard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	s.sessions[w.ID()] = sessionEntry{
		wizard:    w,
		expiresAt: s.nowFunc().Add(sessionTTL),
	}
}

// get returns the session only when it belongs to userID. A foreign session
// ID looks identical to a missing one.
func (s *sessionStore) get(id, userID string) (*filing.Wizard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || s.nowFunc().After(entry.expiresAt) {
		return nil, false
	}
	if entry.wizard.UserID() != userID {
		return nil, false
	}
	return entry.wizard, true
}

func (s *sessionStore) delete(id, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[id]; ok && entry.wizard.UserID() == userID {
		delete(s.sessions, id)
	}
}

func (s *sessionStore) evictExpired() {
	now := s.nowFunc()
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// stateTTL bounds the OAuth connect round trip.
const stateTTL = 15 * time.Minute

type stateEntry struct {
	userID    string
	expiresAt time.Time
}

// stateStore issues and redeems one-time OAuth state values, tying each
// callback to the user who started the connect flow.
type stateStore struct {
	mu      sync.Mutex
	states  map[string]stateEntry
	nowFunc func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{
		states:  make(map[string]stateEntry),
		nowFunc: time.Now,
	}
}

func (s *stateStore) issue(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	for state, entry := range s.states {
		if now.After(entry.expiresAt) {
			delete(s.states, state)
		}
	}
	state := uuid.NewString()
	s.states[state] = stateEntry{userID: userID, expiresAt: now.Add(stateTTL)}
	return state
}

// redeem consumes the state value. Each state is single-use regardless of
// outcome.
func (s *stateStore) redeem(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[state]
	delete(s.states, state)
	if !ok || s.nowFunc().After(entry.expiresAt) {
		return "", false
	}
	return entry.userID, true
}
