package session

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 1024

// CachedStore is a read-through LRU in front of a Store. Entries are replaced
// after every successful save and evicted on a version conflict, so a stale
// entry costs at most one retry.
type CachedStore struct {
	inner Store
	cache *lru.Cache[string, Session]
}

func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Session](size)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

func (s *CachedStore) Load(ctx context.Context, phone string) (Session, error) {
	if cached, ok := s.cache.Get(phone); ok {
		return cached.Clone(), nil
	}
	sess, err := s.inner.Load(ctx, phone)
	if err != nil {
		return Session{}, err
	}
	if sess.Version > 0 {
		s.cache.Add(phone, sess.Clone())
	}
	return sess, nil
}

func (s *CachedStore) Save(ctx context.Context, phone string, sess Session) (Session, error) {
	saved, err := s.inner.Save(ctx, phone, sess)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.cache.Remove(phone)
		}
		return Session{}, err
	}
	s.cache.Add(phone, saved.Clone())
	return saved, nil
}

// Invalidate drops a cached entry.
func (s *CachedStore) Invalidate(phone string) {
	s.cache.Remove(phone)
}

func (s *CachedStore) List(ctx context.Context) ([]Session, error) {
	return s.inner.List(ctx)
}

func (s *CachedStore) Len() int {
	return s.cache.Len()
}

func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}
