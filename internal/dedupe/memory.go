package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key   string
	until time.Time
}

// Memory is a bounded LRU of recent keys.
type Memory struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front is most recent
	entries  map[string]*list.Element
	now      func() time.Time
}

func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if el, ok := m.entries[key]; ok {
		e := el.Value.(*memoryEntry)
		if now.Before(e.until) {
			m.order.MoveToFront(el)
			return true, nil
		}
		e.until = now.Add(m.ttl)
		m.order.MoveToFront(el)
		return false, nil
	}

	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, until: now.Add(m.ttl)})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
	return false, nil
}

func (m *Memory) Prune(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*memoryEntry)
		if !now.Before(e.until) {
			m.order.Remove(el)
			delete(m.entries, e.key)
		}
		el = prev
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory) Close() error { return nil }
