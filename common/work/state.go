package work

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/Glyph8/navermapCrawling/common/redis"
)

// StateStore is the key-value store holding run state. RedisClient implements
// it; MemoryState serves single-process runs without Redis.
type StateStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

var _ StateStore = (*redis.RedisClient)(nil)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryState is a process-local StateStore
type MemoryState struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryState() *MemoryState {
	return &MemoryState{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryState) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, ok
}

func (m *MemoryState) entry(value interface{}, expiration time.Duration) memoryEntry {
	e := memoryEntry{value: toString(value)}
	if expiration > 0 {
		e.expires = m.now().Add(expiration)
	}
	return e
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (m *MemoryState) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.entries[key] = m.entry(value, expiration)
	return true, nil
}

func (m *MemoryState) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.entry(value, expiration)
	return nil
}

func (m *MemoryState) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", redis.ErrNil
	}
	return e.value, nil
}

func (m *MemoryState) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Keys matches with path.Match, which agrees with Redis globs for the
// patterns used here
func (m *MemoryState) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.entries {
		if _, ok := m.live(key); !ok {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
