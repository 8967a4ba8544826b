package limiter

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRecord struct {
	events    []int64 // millisecond timestamps, sorted ascending, deduplicated
	expiresAt time.Time
}

// MemoryStore is an in-process Store with the same sorted-set semantics as
// RedisStore, including member deduplication per millisecond and TTL expiry.
//
// It is safe for concurrent use, but its state is local to the process and
// is not shared across replicas. Use RedisStore when you need a single
// global budget; use MemoryStore in tests and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord

	// Now overrides the time source used for TTL checks. Tests set it;
	// the zero value means time.Now.
	Now func() time.Time
}

// NewMemoryStore constructs a MemoryStore with empty state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (m *MemoryStore) clock() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// live returns the record for key, dropping it first if its TTL has passed.
// Callers must hold m.mu.
func (m *MemoryStore) live(key string) *memoryRecord {
	rec, ok := m.records[key]
	if !ok {
		return nil
	}
	if !rec.expiresAt.IsZero() && !m.clock().Before(rec.expiresAt) {
		delete(m.records, key)
		return nil
	}
	return rec
}

func (m *MemoryStore) Window(ctx context.Context, key string) (time.Time, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.live(key)
	if rec == nil || len(rec.events) == 0 {
		return time.Time{}, 0, nil
	}
	return time.UnixMilli(rec.events[0]), int64(len(rec.events)), nil
}

func (m *MemoryStore) Append(ctx context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.live(key)
	if rec == nil {
		rec = &memoryRecord{}
		m.records[key] = rec
	}
	ms := at.UnixMilli()
	idx := sort.Search(len(rec.events), func(i int) bool { return rec.events[i] >= ms })
	if idx < len(rec.events) && rec.events[idx] == ms {
		return nil // same-millisecond events collapse, as in the sorted set
	}
	rec.events = append(rec.events, 0)
	copy(rec.events[idx+1:], rec.events[idx:])
	rec.events[idx] = ms
	return nil
}

func (m *MemoryStore) Restart(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = &memoryRecord{
		events:    []int64{at.UnixMilli()},
		expiresAt: m.clock().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}
