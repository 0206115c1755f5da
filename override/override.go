// Package override defines the per-space permission overrides entity and its
// store interface.
package override

import (
	"errors"
	"time"

	"github.com/xraph/keeper/permission"
)

// ErrNotFound is returned when a space has no stored overrides.
var ErrNotFound = errors.New("keeper: overrides not found")

// SpaceOverrides holds the category and room rules of one space
// (the content of com.fray.permission_overrides).
type SpaceOverrides struct {
	TenantID  string               `json:"tenant_id" db:"tenant_id"`
	AppID     string               `json:"app_id" db:"app_id"`
	SpaceID   string               `json:"space_id" db:"space_id"`
	Rules     permission.Overrides `json:"rules" db:"rules"`
	CreatedAt time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt time.Time            `json:"updated_at" db:"updated_at"`
}

// Key is the storage key for a space's overrides.
func Key(tenantID, spaceID string) string { return tenantID + "/" + spaceID }
