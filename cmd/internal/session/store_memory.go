package session

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is the fallback Store when no database is configured.
// It is also what the unit tests run against.
//
// Get and Save copy the document so callers never alias stored state.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewInMemoryStore constructs an in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// Get returns a copy of the stored document for id.
func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return copySession(stored), nil
}

// Ensure creates an empty document if absent and returns the current one.
func (s *InMemoryStore) Ensure(ctx context.Context, sessionID string, now time.Time) (Session, error) {
	if sessionID == "" {
		return Session{}, ErrMissingSessionID
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.sessions[sessionID]; ok {
		return copySession(stored), nil
	}

	stored := &Session{
		SessionID: sessionID,
		Devices:   []Device{},
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = stored
	return copySession(stored), nil
}

// Delete removes the document for id.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Save persists the full document and refreshes UpdatedAt (also on the
// caller's copy, so the returned state matches what was stored).
func (s *InMemoryStore) Save(ctx context.Context, sess *Session, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[sess.SessionID]
	if !ok {
		return ErrSessionNotFound
	}

	sess.CreatedAt = stored.CreatedAt
	sess.UpdatedAt = now

	cp := copySession(sess)
	s.sessions[sess.SessionID] = &cp
	return nil
}

func copySession(src *Session) Session {
	cp := *src
	cp.Devices = append([]Device{}, src.Devices...)
	cp.Messages = append([]Message{}, src.Messages...)
	return cp
}
