package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vitrine/api/internal/auth"
	"vitrine/api/internal/util"
)

// MemoryStore keeps sessions in process memory. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

func (s *MemoryStore) Create(_ context.Context, authenticated bool) (Session, error) {
	id, err := util.NewToken("sid")
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)

	sess := Session{
		ID:            id,
		Authenticated: authenticated,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	s.sessions[auth.HashToken(id)] = sess
	return sess, nil
}

func (s *MemoryStore) Lookup(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := auth.HashToken(id)
	sess, ok := s.sessions[key]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, key)
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, auth.HashToken(id))
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, key)
		}
	}
}
