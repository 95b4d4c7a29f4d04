package blocklist

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a map-backed registry for tests and registry-less demo runs.
// Production deployments use BadgerStore (single device) or RedisStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemoryStore creates an empty in-memory block registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

func (s *MemoryStore) IsBlocked(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[fingerprint]
	return ok, nil
}

func (s *MemoryStore) SetBlocked(ctx context.Context, fingerprint string, blocked bool) error {
	if fingerprint == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if blocked {
		if _, ok := s.entries[fingerprint]; !ok {
			s.entries[fingerprint] = time.Now()
		}
		return nil
	}
	delete(s.entries, fingerprint)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.entries))
	for fp, at := range s.entries {
		entries = append(entries, Entry{Fingerprint: fp, CreatedAt: at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Fingerprint < entries[j].Fingerprint })
	return entries, nil
}
