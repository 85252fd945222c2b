package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Load(_ context.Context, phone string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Session{}, fmt.Errorf("memory store is closed")
	}
	if existing, ok := s.sessions[phone]; ok {
		return existing.Clone(), nil
	}
	return New(phone), nil
}

func (s *MemoryStore) Save(_ context.Context, phone string, sess Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Session{}, fmt.Errorf("memory store is closed")
	}
	current := s.sessions[phone].Version
	if current != sess.Version {
		return Session{}, fmt.Errorf("save session %s (have %d, stored %d): %w", phone, sess.Version, current, ErrVersionConflict)
	}
	saved := sess.Clone()
	saved.Phone = phone
	saved.Version = current + 1
	saved.UpdatedAt = time.Now().UTC()
	s.sessions[phone] = saved
	return saved.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("memory store is closed")
	}
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
