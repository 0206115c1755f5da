// Package settings defines the per-space role settings entity and its store
// interface.
package settings

import (
	"errors"
	"time"

	"github.com/xraph/keeper/permission"
)

// ErrNotFound is returned when a space has no stored settings.
var ErrNotFound = errors.New("keeper: settings not found")

// Settings is the role configuration a space persists alongside its Matrix
// state (the roles section of com.fray.server_settings).
type Settings struct {
	TenantID  string                  `json:"tenant_id" db:"tenant_id"`
	AppID     string                  `json:"app_id" db:"app_id"`
	SpaceID   string                  `json:"space_id" db:"space_id"`
	Roles     permission.RoleSettings `json:"roles" db:"roles"`
	CreatedAt time.Time               `json:"created_at" db:"created_at"`
	UpdatedAt time.Time               `json:"updated_at" db:"updated_at"`
}

// Key is the storage key for a space's settings.
func Key(tenantID, spaceID string) string { return tenantID + "/" + spaceID }
