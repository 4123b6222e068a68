package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryBackend keeps entries in process memory. Expired entries are dropped
// lazily on access and during prefix sweeps.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	sets    map[string]map[string]struct{}
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		sets:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = memoryEntry{value: stored, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
		delete(m.sets, key)
	}
	return nil
}

func (m *MemoryBackend) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *MemoryBackend) AddToSet(ctx context.Context, set string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sets[set]
	if !ok {
		s = make(map[string]struct{}, len(members))
		m.sets[set] = s
	}
	for _, member := range members {
		s[member] = struct{}{}
	}
	return nil
}

func (m *MemoryBackend) SetMembers(ctx context.Context, set string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]string, 0, len(m.sets[set]))
	for member := range m.sets[set] {
		members = append(members, member)
	}
	return members, nil
}

// Len returns the number of live entries.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	now := m.now()
	for _, entry := range m.entries {
		if now.Before(entry.expires) {
			n++
		}
	}
	return n
}
