package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// NewMemory returns an in-process store. A capacity of zero keeps every entry
// for the life of the process, so memory grows with the number of distinct
// content ids; a positive capacity evicts the least recently used entry.
func NewMemory(capacity int) Store {
	if capacity > 0 {
		// lru.New only fails on a non-positive size.
		l, _ := lru.New[string, Entry](capacity)
		return &LRU{entries: l}
	}
	return &Memory{entries: make(map[string]Entry)}
}

// Memory is an unbounded map guarded by a mutex.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func (m *Memory) Get(_ context.Context, contentID string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[contentID]
	return e, ok, nil
}

func (m *Memory) Put(_ context.Context, contentID string, e Entry) error {
	e.ContentID = contentID
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[contentID] = e
	return nil
}

// Len returns the number of entries held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }

// LRU is a size-bounded store.
type LRU struct {
	entries *lru.Cache[string, Entry]
}

func (l *LRU) Get(_ context.Context, contentID string) (Entry, bool, error) {
	e, ok := l.entries.Get(contentID)
	return e, ok, nil
}

func (l *LRU) Put(_ context.Context, contentID string, e Entry) error {
	e.ContentID = contentID
	l.entries.Add(contentID, e)
	return nil
}

// Len returns the number of entries held.
func (l *LRU) Len() int { return l.entries.Len() }

func (l *LRU) Close() error { return nil }
