package store

import (
	"context"
	"sync"
	"time"
)

// memEntry holds one value plus its expiry; a zero expiresAt never expires.
type memEntry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

// Memory is a process-local KV implementation guarded by a mutex, with
// opportunistic eviction of expired entries during writes. Suitable for
// single-instance deployments and tests.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*memEntry
	sweepN   int
	nowFn    func() time.Time // overridable in tests
}

// NewMemory constructs an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*memEntry),
		nowFn:   time.Now,
	}
}

func (m *Memory) expired(e *memEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// sweep evicts expired entries every ~1000 writes to bound memory.
// Callers must hold the mutex.
func (m *Memory) sweep(now time.Time) {
	m.sweepN++
	if m.sweepN < 1000 {
		return
	}
	m.sweepN = 0
	for k, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, k)
		}
	}
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e, m.nowFn()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	m.sweep(now)
	e := &memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// SetNX implements KV.
func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	m.sweep(now)
	if e, ok := m.entries[key]; ok && !m.expired(e, now) {
		return false, nil
	}
	e := &memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.entries[key] = e
	return true, nil
}

// Delete implements KV.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// IncrWindow implements KV. The counter resets to zero exactly when the
// current window elapses, matching the fixed-window limiter contract.
func (m *Memory) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	m.sweep(now)
	e, ok := m.entries[key]
	if !ok || m.expired(e, now) {
		e = &memEntry{count: 0, expiresAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++
	return e.count, e.expiresAt.Sub(now), nil
}
