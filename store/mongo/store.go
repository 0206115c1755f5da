package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/settings"
	"github.com/xraph/keeper/store"
)

// Collection name constants.
const (
	colSettings    = "keeper_settings"
	colOverrides   = "keeper_overrides"
	colAuditEvents = "keeper_audit_events"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite keeper store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all keeper collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("keeper/mongo: migrate %s indexes: %w", col, err)
		}
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

func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all keeper collections.
// Settings and overrides are keyed by "<tenant>/<space>" in _id, so they only
// need a tenant index for tenant-wide deletes.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colSettings: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
		},
		colOverrides: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
		},
		colAuditEvents: {
			{
				Keys: bson.D{
					{Key: "tenant_id", Value: 1},
					{Key: "space_id", Value: 1},
					{Key: "created_at", Value: -1},
				},
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "actor_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}
}

// upsert sets fields on the document with the given _id, inserting it when
// absent. created_at is only written on insert.
func (s *Store) upsert(ctx context.Context, col, key string, created time.Time, fields bson.M) error {
	_, err := s.mdb.Collection(col).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": fields, "$setOnInsert": bson.M{"created_at": created}},
		options.UpdateOne().SetUpsert(true))
	return err
}

// ──────────────────────────────────────────────────
// Settings operations
// ──────────────────────────────────────────────────

func (s *Store) GetSettings(ctx context.Context, tenantID, spaceID string) (*settings.Settings, error) {
	var m settingsModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": settings.Key(tenantID, spaceID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("settings %s: %w", spaceID, settings.ErrNotFound)
		}
		return nil, fmt.Errorf("keeper: get settings: %w", err)
	}
	return settingsFromModel(&m), nil
}

func (s *Store) SaveSettings(ctx context.Context, st *settings.Settings) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now()
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = st.CreatedAt
	}
	m := settingsToModel(st)
	fields := bson.M{
		"tenant_id":  m.TenantID,
		"app_id":     m.AppID,
		"space_id":   m.SpaceID,
		"roles":      m.Roles,
		"updated_at": m.UpdatedAt,
	}
	if err := s.upsert(ctx, colSettings, m.ID, m.CreatedAt, fields); err != nil {
		return fmt.Errorf("keeper: save settings: %w", err)
	}
	return nil
}

func (s *Store) DeleteSettings(ctx context.Context, tenantID, spaceID string) error {
	res, err := s.mdb.NewDelete((*settingsModel)(nil)).
		Filter(bson.M{"_id": settings.Key(tenantID, spaceID)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete settings: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("settings %s: %w", spaceID, settings.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteSettingsByTenant(ctx context.Context, tenantID string) error {
	_, err := s.mdb.NewDelete((*settingsModel)(nil)).
		Many().
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete settings by tenant: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Override operations
// ──────────────────────────────────────────────────

func (s *Store) GetOverrides(ctx context.Context, tenantID, spaceID string) (*override.SpaceOverrides, error) {
	var m overridesModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": override.Key(tenantID, spaceID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("overrides %s: %w", spaceID, override.ErrNotFound)
		}
		return nil, fmt.Errorf("keeper: get overrides: %w", err)
	}
	return overridesFromModel(&m), nil
}

func (s *Store) SaveOverrides(ctx context.Context, o *override.SpaceOverrides) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	m := overridesToModel(o)
	fields := bson.M{
		"tenant_id":  m.TenantID,
		"app_id":     m.AppID,
		"space_id":   m.SpaceID,
		"rules":      m.Rules,
		"updated_at": m.UpdatedAt,
	}
	if err := s.upsert(ctx, colOverrides, m.ID, m.CreatedAt, fields); err != nil {
		return fmt.Errorf("keeper: save overrides: %w", err)
	}
	return nil
}

func (s *Store) DeleteOverrides(ctx context.Context, tenantID, spaceID string) error {
	res, err := s.mdb.NewDelete((*overridesModel)(nil)).
		Filter(bson.M{"_id": override.Key(tenantID, spaceID)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete overrides: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("overrides %s: %w", spaceID, override.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteOverridesByTenant(ctx context.Context, tenantID string) error {
	_, err := s.mdb.NewDelete((*overridesModel)(nil)).
		Many().
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx)
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
		e.CreatedAt = now()
	}
	if _, err := s.mdb.NewInsert(auditEventToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("keeper: create audit event: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEvent(ctx context.Context, eventID id.AuditID) (*audit.Event, error) {
	var m auditEventModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": eventID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("audit event %s: %w", eventID, audit.ErrNotFound)
		}
		return nil, fmt.Errorf("keeper: get audit event: %w", err)
	}
	return auditEventFromModel(&m), nil
}

func auditFilter(filter *audit.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.SpaceID != "" {
		f["space_id"] = filter.SpaceID
	}
	if filter.ActorID != "" {
		f["actor_id"] = filter.ActorID
	}
	if filter.Action != "" {
		f["action"] = filter.Action
	}
	if filter.After != nil || filter.Before != nil {
		span := bson.M{}
		if filter.After != nil {
			span["$gte"] = *filter.After
		}
		if filter.Before != nil {
			span["$lte"] = *filter.Before
		}
		f["created_at"] = span
	}
	return f
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

func (s *Store) ListAuditEvents(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Event, error) {
	var models []auditEventModel
	q := s.mdb.NewFind(&models).
		Filter(auditFilter(filter)).
		Sort(newestFirst)
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*auditEventModel)(nil)).
		Filter(auditFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: count audit events: %w", err)
	}
	return count, nil
}

func (s *Store) TrimAuditEvents(ctx context.Context, tenantID, spaceID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var stale []auditEventModel
	err := s.mdb.NewFind(&stale).
		Filter(bson.M{"tenant_id": tenantID, "space_id": spaceID}).
		Sort(newestFirst).
		Skip(int64(keep)).
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: trim audit events: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	ids := make([]string, len(stale))
	for i := range stale {
		ids[i] = stale[i].ID
	}
	res, err := s.mdb.NewDelete((*auditEventModel)(nil)).
		Many().
		Filter(bson.M{"_id": bson.M{"$in": ids}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: trim audit events: %w", err)
	}
	return res.DeletedCount(), nil
}

func (s *Store) PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*auditEventModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: purge audit events: %w", err)
	}
	return res.DeletedCount(), nil
}

func (s *Store) DeleteAuditEventsByTenant(ctx context.Context, tenantID string) error {
	_, err := s.mdb.NewDelete((*auditEventModel)(nil)).
		Many().
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper: delete audit events by tenant: %w", err)
	}
	return nil
}
