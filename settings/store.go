package settings

import "context"

// Store defines persistence operations for space role settings.
type Store interface {
	// GetSettings returns the settings of a space, or ErrNotFound.
	GetSettings(ctx context.Context, tenantID, spaceID string) (*Settings, error)

	// SaveSettings creates or replaces the settings of a space.
	SaveSettings(ctx context.Context, s *Settings) error

	// DeleteSettings removes the settings of a space.
	DeleteSettings(ctx context.Context, tenantID, spaceID string) error

	// DeleteSettingsByTenant removes every space's settings for a tenant.
	DeleteSettingsByTenant(ctx context.Context, tenantID string) error
}
