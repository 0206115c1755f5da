// Package audit defines the moderation audit Event entity.
package audit

import (
	"errors"
	"time"

	"github.com/xraph/keeper/id"
)

// ErrNotFound is returned when an audit event does not exist.
var ErrNotFound = errors.New("keeper: audit event not found")

// Audit actions recorded by the engine.
const (
	ActionCategoryRuleUpdate = "permission.category.update"
	ActionRoomRuleUpdate     = "permission.room.update"
	ActionRolesUpdate        = "roles.update"
	ActionRolesAssign        = "roles.assign"
	ActionMessageRedact      = "message.redact"
)

// Event is a single moderation audit record.
type Event struct {
	ID            id.AuditID `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	AppID         string     `json:"app_id" db:"app_id"`
	SpaceID       string     `json:"space_id" db:"space_id"`
	Action        string     `json:"action" db:"action"`
	ActorID       string     `json:"actor_id" db:"actor_id"`
	Target        string     `json:"target" db:"target"`
	SourceEventID string     `json:"source_event_id,omitempty" db:"source_event_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying audit events. Results are
// ordered newest first.
type QueryFilter struct {
	TenantID string     `json:"tenant_id,omitempty"`
	SpaceID  string     `json:"space_id,omitempty"`
	ActorID  string     `json:"actor_id,omitempty"`
	Action   string     `json:"action,omitempty"`
	After    *time.Time `json:"after,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

// RuleTarget formats the target of a rule change: "<scope id>:<action>:<rule>".
func RuleTarget(scopeID, action, rule string) string {
	return scopeID + ":" + action + ":" + rule
}

// RedactionTarget formats the target of a redaction: "<author>:<event id>".
// Without an author the event id alone is used.
func RedactionTarget(authorID, eventID string) string {
	if authorID == "" {
		return eventID
	}
	return authorID + ":" + eventID
}
