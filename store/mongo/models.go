package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/permission"
	"github.com/xraph/keeper/settings"
)

// ──────────────────────────────────────────────────
// Settings model
// ──────────────────────────────────────────────────

type settingsModel struct {
	grove.BaseModel `grove:"table:keeper_settings"`
	ID              string                  `grove:"id,pk"      bson:"_id"`
	TenantID        string                  `grove:"tenant_id"  bson:"tenant_id"`
	AppID           string                  `grove:"app_id"     bson:"app_id"`
	SpaceID         string                  `grove:"space_id"   bson:"space_id"`
	Roles           permission.RoleSettings `grove:"roles"      bson:"roles"`
	CreatedAt       time.Time               `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time               `grove:"updated_at" bson:"updated_at"`
}

func settingsToModel(st *settings.Settings) *settingsModel {
	return &settingsModel{
		ID:        settings.Key(st.TenantID, st.SpaceID),
		TenantID:  st.TenantID,
		AppID:     st.AppID,
		SpaceID:   st.SpaceID,
		Roles:     st.Roles,
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}
}

func settingsFromModel(m *settingsModel) *settings.Settings {
	return &settings.Settings{
		TenantID:  m.TenantID,
		AppID:     m.AppID,
		SpaceID:   m.SpaceID,
		Roles:     permission.NormalizeRoleSettings(m.Roles),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Override model
// ──────────────────────────────────────────────────

type overridesModel struct {
	grove.BaseModel `grove:"table:keeper_overrides"`
	ID              string               `grove:"id,pk"      bson:"_id"`
	TenantID        string               `grove:"tenant_id"  bson:"tenant_id"`
	AppID           string               `grove:"app_id"     bson:"app_id"`
	SpaceID         string               `grove:"space_id"   bson:"space_id"`
	Rules           permission.Overrides `grove:"rules"      bson:"rules"`
	CreatedAt       time.Time            `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time            `grove:"updated_at" bson:"updated_at"`
}

func overridesToModel(o *override.SpaceOverrides) *overridesModel {
	return &overridesModel{
		ID:        override.Key(o.TenantID, o.SpaceID),
		TenantID:  o.TenantID,
		AppID:     o.AppID,
		SpaceID:   o.SpaceID,
		Rules:     o.Rules,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func overridesFromModel(m *overridesModel) *override.SpaceOverrides {
	return &override.SpaceOverrides{
		TenantID:  m.TenantID,
		AppID:     m.AppID,
		SpaceID:   m.SpaceID,
		Rules:     permission.NormalizeOverrides(m.Rules),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Audit event model
// ──────────────────────────────────────────────────

type auditEventModel struct {
	grove.BaseModel `grove:"table:keeper_audit_events"`
	ID              string    `grove:"id,pk"           bson:"_id"`
	TenantID        string    `grove:"tenant_id"       bson:"tenant_id"`
	AppID           string    `grove:"app_id"          bson:"app_id"`
	SpaceID         string    `grove:"space_id"        bson:"space_id"`
	Action          string    `grove:"action"          bson:"action"`
	ActorID         string    `grove:"actor_id"        bson:"actor_id"`
	Target          string    `grove:"target"          bson:"target"`
	SourceEventID   string    `grove:"source_event_id" bson:"source_event_id,omitempty"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
}

func auditEventToModel(e *audit.Event) *auditEventModel {
	return &auditEventModel{
		ID:            e.ID.String(),
		TenantID:      e.TenantID,
		AppID:         e.AppID,
		SpaceID:       e.SpaceID,
		Action:        e.Action,
		ActorID:       e.ActorID,
		Target:        e.Target,
		SourceEventID: e.SourceEventID,
		CreatedAt:     e.CreatedAt,
	}
}

func auditEventFromModel(m *auditEventModel) *audit.Event {
	eid, _ := id.ParseAuditID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &audit.Event{
		ID:            eid,
		TenantID:      m.TenantID,
		AppID:         m.AppID,
		SpaceID:       m.SpaceID,
		Action:        m.Action,
		ActorID:       m.ActorID,
		Target:        m.Target,
		SourceEventID: m.SourceEventID,
		CreatedAt:     m.CreatedAt,
	}
}
