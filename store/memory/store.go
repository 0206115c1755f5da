// Package memory provides an in-memory implementation of the keeper composite
// store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/settings"
)

// Compile-time interface checks.
var (
	_ settings.Store = (*Store)(nil)
	_ override.Store = (*Store)(nil)
	_ audit.Store    = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all keeper entities.
type Store struct {
	mu sync.RWMutex

	settings  map[string]*settings.Settings
	overrides map[string]*override.SpaceOverrides
	events    map[string]*audit.Event
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		settings:  make(map[string]*settings.Settings),
		overrides: make(map[string]*override.SpaceOverrides),
		events:    make(map[string]*audit.Event),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Settings Store
// ──────────────────────────────────────────────────

func (s *Store) GetSettings(_ context.Context, tenantID, spaceID string) (*settings.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[settings.Key(tenantID, spaceID)]
	if !ok {
		return nil, fmt.Errorf("space %s: %w", spaceID, settings.ErrNotFound)
	}
	return copySettings(st), nil
}

func (s *Store) SaveSettings(_ context.Context, st *settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := settings.Key(st.TenantID, st.SpaceID)
	c := copySettings(st)
	if prev, ok := s.settings[key]; ok {
		c.CreatedAt = prev.CreatedAt
	}
	s.settings[key] = c
	return nil
}

func (s *Store) DeleteSettings(_ context.Context, tenantID, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := settings.Key(tenantID, spaceID)
	if _, ok := s.settings[key]; !ok {
		return fmt.Errorf("space %s: %w", spaceID, settings.ErrNotFound)
	}
	delete(s.settings, key)
	return nil
}

func (s *Store) DeleteSettingsByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, st := range s.settings {
		if st.TenantID == tenantID {
			delete(s.settings, k)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Override Store
// ──────────────────────────────────────────────────

func (s *Store) GetOverrides(_ context.Context, tenantID, spaceID string) (*override.SpaceOverrides, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[override.Key(tenantID, spaceID)]
	if !ok {
		return nil, fmt.Errorf("space %s: %w", spaceID, override.ErrNotFound)
	}
	return copyOverrides(o), nil
}

func (s *Store) SaveOverrides(_ context.Context, o *override.SpaceOverrides) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := override.Key(o.TenantID, o.SpaceID)
	c := copyOverrides(o)
	if prev, ok := s.overrides[key]; ok {
		c.CreatedAt = prev.CreatedAt
	}
	s.overrides[key] = c
	return nil
}

func (s *Store) DeleteOverrides(_ context.Context, tenantID, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := override.Key(tenantID, spaceID)
	if _, ok := s.overrides[key]; !ok {
		return fmt.Errorf("space %s: %w", spaceID, override.ErrNotFound)
	}
	delete(s.overrides, key)
	return nil
}

func (s *Store) DeleteOverridesByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, o := range s.overrides {
		if o.TenantID == tenantID {
			delete(s.overrides, k)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEvent(_ context.Context, e *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.events[e.ID.String()] = &c
	return nil
}

func (s *Store) GetAuditEvent(_ context.Context, eventID id.AuditID) (*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID.String()]
	if !ok {
		return nil, fmt.Errorf("audit event %s: %w", eventID, audit.ErrNotFound)
	}
	c := *e
	return &c, nil
}

func (s *Store) ListAuditEvents(_ context.Context, filter *audit.QueryFilter) ([]*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.matchEvents(filter)
	if filter == nil {
		return result, nil
	}
	return paginate(result, filter.Offset, filter.Limit), nil
}

func (s *Store) CountAuditEvents(_ context.Context, filter *audit.QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matchEvents(filter))), nil
}

func (s *Store) TrimAuditEvents(_ context.Context, tenantID, spaceID string, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.matchEvents(&audit.QueryFilter{TenantID: tenantID, SpaceID: spaceID})
	if keep < 0 {
		keep = 0
	}
	if len(all) <= keep {
		return 0, nil
	}
	var count int64
	for _, e := range all[keep:] {
		delete(s.events, e.ID.String())
		count++
	}
	return count, nil
}

func (s *Store) PurgeAuditEvents(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, e := range s.events {
		if e.CreatedAt.Before(before) {
			delete(s.events, k)
			count++
		}
	}
	return count, nil
}

func (s *Store) DeleteAuditEventsByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.events {
		if e.TenantID == tenantID {
			delete(s.events, k)
		}
	}
	return nil
}

// matchEvents returns copies of the events matching filter, newest first.
// Callers must hold s.mu.
func (s *Store) matchEvents(filter *audit.QueryFilter) []*audit.Event {
	result := make([]*audit.Event, 0, len(s.events))
	for _, e := range s.events {
		if filter != nil {
			if filter.TenantID != "" && e.TenantID != filter.TenantID {
				continue
			}
			if filter.SpaceID != "" && e.SpaceID != filter.SpaceID {
				continue
			}
			if filter.ActorID != "" && e.ActorID != filter.ActorID {
				continue
			}
			if filter.Action != "" && e.Action != filter.Action {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		c := *e
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return strings.Compare(result[i].ID.String(), result[j].ID.String()) > 0
	})
	return result
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func copySettings(st *settings.Settings) *settings.Settings {
	c := *st
	c.Roles = st.Roles.Clone()
	return &c
}

func copyOverrides(o *override.SpaceOverrides) *override.SpaceOverrides {
	c := *o
	c.Rules = o.Rules.Clone()
	return &c
}
