package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	payload   SavedState
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are rejected lazily
// on Load; Sweep reclaims their memory and is meant to be driven by a
// periodic scheduler in the caller.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a memory store whose entries live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Save(_ context.Context, s SavedState) (string, error) {
	key := uuid.NewString()

	m.mu.Lock()
	m.entries[key] = memoryEntry{
		payload:   s,
		expiresAt: m.now().Add(m.ttl),
	}
	m.mu.Unlock()

	return key, nil
}

func (m *Memory) Load(_ context.Context, key string) (SavedState, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.now().After(e.expiresAt) {
		return SavedState{}, false, nil
	}
	return e.payload, true, nil
}

// Sweep deletes expired entries and reports how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live plus not-yet-swept entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
