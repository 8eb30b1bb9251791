package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	payload []byte
	expires time.Time
}

// Memory is the in-process [Store]. Entries are grouped by namespace so invalidation is a single map delete.
type Memory struct {
	mu    sync.Mutex
	items map[Namespace]map[string]entry
	gens  map[Namespace]uint64
	epoch uint64 // advanced by Clear
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[Namespace]map[string]entry), gens: make(map[Namespace]uint64), now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func subkey(k Key) string {
	return k.ID + "\x00" + k.Params
}

func (m *Memory) Get(_ context.Context, k Key) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.items[k.Namespace]
	e, ok := bucket[subkey(k)]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(bucket, subkey(k))
		return nil, false, nil
	}
	return append([]byte(nil), e.payload...), true, nil
}

func (m *Memory) Set(_ context.Context, k Key, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(k, payload, ttl)
	return nil
}

// Generation sums the namespace and global counters. Both only grow, so an equal sum means neither moved.
func (m *Memory) Generation(_ context.Context, ns Namespace) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch + m.gens[ns], nil
}

func (m *Memory) SetIfGeneration(_ context.Context, k Key, payload []byte, ttl time.Duration, gen uint64) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch+m.gens[k.Namespace] != gen {
		return nil
	}
	m.set(k, payload, ttl)
	return nil
}

func (m *Memory) set(k Key, payload []byte, ttl time.Duration) {
	bucket, ok := m.items[k.Namespace]
	if !ok {
		bucket = make(map[string]entry)
		m.items[k.Namespace] = bucket
	}
	bucket[subkey(k)] = entry{payload: append([]byte(nil), payload...), expires: m.now().Add(ttl)}
}

func (m *Memory) Delete(_ context.Context, k Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[k.Namespace], subkey(k))
	return nil
}

func (m *Memory) InvalidateNamespace(_ context.Context, ns Namespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, ns)
	m.gens[ns]++
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[Namespace]map[string]entry)
	m.epoch++
	return nil
}

// Len counts physically present entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, bucket := range m.items {
		n += len(bucket)
	}
	return n
}
