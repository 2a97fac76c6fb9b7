package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryIdempotencyStore is an in-process IdempotencyStore for single-instance runs and tests.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryIdempotencyStore creates an idempotency store whose entries live for ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}}
}

// get returns a live entry, dropping it when expired. Callers hold mu.
func (s *MemoryIdempotencyStore) get(k string) (memoryEntry, bool) {
	e, ok := s.entries[k]
	if ok && !s.now().Before(e.expiresAt) {
		delete(s.entries, k)
		return memoryEntry{}, false
	}
	return e, ok
}

func (s *MemoryIdempotencyStore) set(k, v string) {
	s.entries[k] = memoryEntry{value: v, expiresAt: s.now().Add(s.ttl)}
}

func (s *MemoryIdempotencyStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := lockKey(scope, key)
	if _, ok := s.get(k); ok {
		return false, nil
	}
	s.set(k, "1")
	return true, nil
}

func (s *MemoryIdempotencyStore) Unlock(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, lockKey(scope, key))
	return nil
}

func (s *MemoryIdempotencyStore) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(resultKey(scope, key), value)
	return nil
}

func (s *MemoryIdempotencyStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(resultKey(scope, key))
	return e.value, ok, nil
}

var _ IdempotencyStore = (*MemoryIdempotencyStore)(nil)
