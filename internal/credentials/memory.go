package credentials

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store using ttlcache.
type MemoryStore struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemoryStore creates an empty in-memory store. Entries expire lazily on
// access, so no cleanup goroutine is started.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

// Set implements Store.Set.
func (s *MemoryStore) Set(_ context.Context, key, value string, opts SetOptions) error {
	if opts.Expires.IsZero() {
		s.cache.Set(key, value, ttlcache.NoTTL)
		return nil
	}

	ttl := time.Until(opts.Expires)
	if ttl <= 0 {
		s.cache.Delete(key)
		return nil
	}
	s.cache.Set(key, value, ttl)
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return "", false, nil
	}
	return item.Value(), true, nil
}

// Remove implements Store.Remove.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Keys implements Store.Keys.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.cache.DeleteExpired()
	return s.cache.Keys(), nil
}

// RemoveMatching implements Store.RemoveMatching.
func (s *MemoryStore) RemoveMatching(ctx context.Context, prefix string) (int, error) {
	keys, _ := s.Keys(ctx)
	removed := 0
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
			removed++
		}
	}
	return removed, nil
}

// Close implements io.Closer.
func (s *MemoryStore) Close() error {
	s.cache.DeleteAll()
	return nil
}
