package override

import "context"

// Store defines persistence operations for space permission overrides.
type Store interface {
	// GetOverrides returns the overrides of a space, or ErrNotFound.
	GetOverrides(ctx context.Context, tenantID, spaceID string) (*SpaceOverrides, error)

	// SaveOverrides creates or replaces the overrides of a space.
	SaveOverrides(ctx context.Context, o *SpaceOverrides) error

	// DeleteOverrides removes the overrides of a space.
	DeleteOverrides(ctx context.Context, tenantID, spaceID string) error

	// DeleteOverridesByTenant removes every space's overrides for a tenant.
	DeleteOverridesByTenant(ctx context.Context, tenantID string) error
}
