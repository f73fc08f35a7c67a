package repository

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/pkg/metrics"
)

// CachedStore puts an LRU cache in front of per-user lookups of another
// store. Writes go to the inner store and refresh or drop the cached entry.
// Writes and cache fills hold mu so a fill never stores a record older than
// a committed write.
type CachedStore struct {
	inner Store
	cache *lru.Cache[string, model.LocationRecord]
	mu    sync.Mutex
}

var (
	_ Store   = (*CachedStore)(nil)
	_ Flusher = (*CachedStore)(nil)
)

// NewCachedStore wraps inner with a cache holding up to size users.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, model.LocationRecord](size)
	if err != nil {
		return nil, fmt.Errorf("create record cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

// Upsert implements Store.Upsert.
func (s *CachedStore) Upsert(ctx context.Context, rec model.LocationRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// the stored tag may differ from rec.Tag, so the next Get reloads it
	created, err := s.inner.Upsert(ctx, rec)
	s.cache.Remove(rec.UserID)
	return created, err
}

// UpdateTag implements Store.UpdateTag.
func (s *CachedStore) UpdateTag(ctx context.Context, userID, tag string) (model.LocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.inner.UpdateTag(ctx, userID, tag)
	if err != nil {
		s.cache.Remove(userID)
		return model.LocationRecord{}, err
	}
	s.cache.Add(userID, rec)
	return rec, nil
}

// Get implements Store.Get.
func (s *CachedStore) Get(ctx context.Context, userID string) (model.LocationRecord, error) {
	if rec, ok := s.cache.Get(userID); ok {
		metrics.RecordCacheLookup(true)
		return rec, nil
	}
	metrics.RecordCacheLookup(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.cache.Get(userID); ok {
		return rec, nil
	}
	rec, err := s.inner.Get(ctx, userID)
	if err != nil {
		return model.LocationRecord{}, err
	}
	s.cache.Add(userID, rec)
	return rec, nil
}

// List implements Store.List. Snapshots always come from the inner store.
func (s *CachedStore) List(ctx context.Context) ([]model.LocationRecord, error) {
	return s.inner.List(ctx)
}

// Count implements Store.Count.
func (s *CachedStore) Count(ctx context.Context) int {
	return s.inner.Count(ctx)
}

// Len returns the number of cached users.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}

// Flush flushes the inner store when it buffers writes.
func (s *CachedStore) Flush(ctx context.Context) error {
	if f, ok := s.inner.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Close drops the cache and closes the inner store.
func (s *CachedStore) Close() error {
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return s.inner.Close()
}
