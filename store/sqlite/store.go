// Package sqlite provides a SQLite implementation of the keeper composite
// store using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/settings"
	"github.com/xraph/keeper/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite keeper store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("keeper/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("keeper/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// Settings operations
// ──────────────────────────────────────────────────

func (s *Store) GetSettings(ctx context.Context, tenantID, spaceID string) (*settings.Settings, error) {
	m := new(settingsModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("space_id = ?", spaceID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("settings %s: %w", spaceID, settings.ErrNotFound)
		}
		return nil, fmt.Errorf("keeper: get settings: %w", err)
	}
	return settingsFromModel(m), nil
}

func (s *Store) SaveSettings(ctx context.Context, st *settings.Settings) error {
	m, err := settingsToModel(st)
	if err != nil {
		return fmt.Errorf("keeper: save settings: %w", err)
	}
	_, err = s.sdb.NewInsert(m).
		OnConflict("(tenant_id, space_id) DO UPDATE SET app_id = excluded.app_id, roles = excluded.roles, updated_at = excluded.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: save settings: %w", err)
	}
	return nil
}

func (s *Store) DeleteSettings(ctx context.Context, tenantID, spaceID string) error {
	res, err := s.sdb.NewDelete((*settingsModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("space_id = ?", spaceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows
		return fmt.Errorf("settings %s: %w", spaceID, settings.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteSettingsByTenant(ctx context.Context, tenantID string) error {
	_, err := s.sdb.NewDelete((*settingsModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete settings by tenant: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Override operations
// ──────────────────────────────────────────────────

func (s *Store) GetOverrides(ctx context.Context, tenantID, spaceID string) (*override.SpaceOverrides, error) {
	m := new(overridesModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("space_id = ?", spaceID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("overrides %s: %w", spaceID, override.ErrNotFound)
		}
		return nil, fmt.Errorf("keeper: get overrides: %w", err)
	}
	return overridesFromModel(m), nil
}

func (s *Store) SaveOverrides(ctx context.Context, o *override.SpaceOverrides) error {
	m, err := overridesToModel(o)
	if err != nil {
		return fmt.Errorf("keeper: save overrides: %w", err)
	}
	_, err = s.sdb.NewInsert(m).
		OnConflict("(tenant_id, space_id) DO UPDATE SET app_id = excluded.app_id, rules = excluded.rules, updated_at = excluded.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: save overrides: %w", err)
	}
	return nil
}

func (s *Store) DeleteOverrides(ctx context.Context, tenantID, spaceID string) error {
	res, err := s.sdb.NewDelete((*overridesModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("space_id = ?", spaceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete overrides: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows
		return fmt.Errorf("overrides %s: %w", spaceID, override.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteOverridesByTenant(ctx context.Context, tenantID string) error {
	_, err := s.sdb.NewDelete((*overridesModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete overrides by tenant: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEvent(ctx context.Context, e *audit.Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := s.sdb.NewInsert(auditEventToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("keeper: create audit event: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEvent(ctx context.Context, eventID id.AuditID) (*audit.Event, error) {
	m := new(auditEventModel)
	err := s.sdb.NewSelect(m).Where("id = ?", eventID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("audit event %s: %w", eventID, audit.ErrNotFound)
		}
		return nil, fmt.Errorf("keeper: get audit event: %w", err)
	}
	return auditEventFromModel(m), nil
}

func (s *Store) ListAuditEvents(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Event, error) {
	var models []auditEventModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.SpaceID != "" {
			q = q.Where("space_id = ?", filter.SpaceID)
		}
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("keeper: list audit events: %w", err)
	}
	result := make([]*audit.Event, len(models))
	for i := range models {
		result[i] = auditEventFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAuditEvents(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*auditEventModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.SpaceID != "" {
			q = q.Where("space_id = ?", filter.SpaceID)
		}
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: count audit events: %w", err)
	}
	return count, nil
}

func (s *Store) TrimAuditEvents(ctx context.Context, tenantID, spaceID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.sdb.NewDelete((*auditEventModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("space_id = ?", spaceID).
		Where(`id NOT IN (
			SELECT id FROM keeper_audit_events
			WHERE tenant_id = ? AND space_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?)`, tenantID, spaceID, keep).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: trim audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("keeper: trim audit events rows: %w", err)
	}
	return n, nil
}

func (s *Store) PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*auditEventModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: purge audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("keeper: purge audit events rows: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteAuditEventsByTenant(ctx context.Context, tenantID string) error {
	_, err := s.sdb.NewDelete((*auditEventModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete audit events by tenant: %w", err)
	}
	return nil
}
