package postgres

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
	TenantID        string                  `grove:"tenant_id,pk"`
	SpaceID         string                  `grove:"space_id,pk"`
	AppID           string                  `grove:"app_id,notnull"`
	Roles           permission.RoleSettings `grove:"roles,type:jsonb"`
	CreatedAt       time.Time               `grove:"created_at,notnull"`
	UpdatedAt       time.Time               `grove:"updated_at,notnull"`
}

func settingsToModel(st *settings.Settings) *settingsModel {
	return &settingsModel{
		TenantID:  st.TenantID,
		SpaceID:   st.SpaceID,
		AppID:     st.AppID,
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
	TenantID        string               `grove:"tenant_id,pk"`
	SpaceID         string               `grove:"space_id,pk"`
	AppID           string               `grove:"app_id,notnull"`
	Rules           permission.Overrides `grove:"rules,type:jsonb"`
	CreatedAt       time.Time            `grove:"created_at,notnull"`
	UpdatedAt       time.Time            `grove:"updated_at,notnull"`
}

func overridesToModel(o *override.SpaceOverrides) *overridesModel {
	return &overridesModel{
		TenantID:  o.TenantID,
		SpaceID:   o.SpaceID,
		AppID:     o.AppID,
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
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	AppID           string    `grove:"app_id,notnull"`
	SpaceID         string    `grove:"space_id,notnull"`
	Action          string    `grove:"action,notnull"`
	ActorID         string    `grove:"actor_id"`
	Target          string    `grove:"target"`
	SourceEventID   string    `grove:"source_event_id"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
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
