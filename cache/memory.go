// Package cache provides caching implementations for keeper permission
// snapshots.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/permission"
)

// Compile-time interface check.
var _ keeper.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	snap      permission.Snapshot
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of a cached snapshot.
func (m *Memory) Get(_ context.Context, key keeper.SnapshotKey) (*permission.Snapshot, bool) {
	k := key.String()
	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, k)
		m.mu.Unlock()
		return nil, false
	}
	snap := e.snap
	return &snap, true
}

// Set stores a snapshot in the cache.
func (m *Memory) Set(_ context.Context, key keeper.SnapshotKey, snap *permission.Snapshot) {
	if snap == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict if at capacity.
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[key.String()] = &entry{
		snap:      *snap,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateSpace removes all cached snapshots of a space.
func (m *Memory) InvalidateSpace(_ context.Context, tenantID, spaceID string) {
	m.dropPrefix(keeper.SpacePrefix(tenantID, spaceID))
}

// InvalidateTenant removes all cached snapshots of a tenant.
func (m *Memory) InvalidateTenant(_ context.Context, tenantID string) {
	m.dropPrefix(keeper.TenantPrefix(tenantID))
}

// Len reports the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) dropPrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
