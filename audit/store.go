package audit

import (
	"context"
	"time"

	"github.com/xraph/keeper/id"
)

// Store defines persistence operations for moderation audit events.
type Store interface {
	// CreateAuditEvent persists a new audit event.
	CreateAuditEvent(ctx context.Context, e *Event) error

	// GetAuditEvent retrieves an audit event by ID.
	GetAuditEvent(ctx context.Context, eventID id.AuditID) (*Event, error)

	// ListAuditEvents returns events matching the filter, newest first.
	ListAuditEvents(ctx context.Context, filter *QueryFilter) ([]*Event, error)

	// CountAuditEvents returns the number of events matching the filter.
	CountAuditEvents(ctx context.Context, filter *QueryFilter) (int64, error)

	// TrimAuditEvents keeps the newest keep events of a space and deletes the rest.
	TrimAuditEvents(ctx context.Context, tenantID, spaceID string, keep int) (int64, error)

	// PurgeAuditEvents removes events created before the given time.
	PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error)

	// DeleteAuditEventsByTenant removes all audit events for a tenant.
	DeleteAuditEventsByTenant(ctx context.Context, tenantID string) error
}
