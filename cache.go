package keeper

import (
	"context"
	"strings"

	"github.com/xraph/keeper/permission"
)

// Cache stores resolved snapshots.
type Cache interface {
	// Get returns a cached snapshot, if available.
	Get(ctx context.Context, key SnapshotKey) (*permission.Snapshot, bool)

	// Set stores a snapshot.
	Set(ctx context.Context, key SnapshotKey, snap *permission.Snapshot)

	// InvalidateSpace removes every cached snapshot of a space.
	InvalidateSpace(ctx context.Context, tenantID, spaceID string)

	// InvalidateTenant removes every cached snapshot of a tenant.
	InvalidateTenant(ctx context.Context, tenantID string)
}

// SnapshotKey identifies a cached snapshot. StateDigest fingerprints the
// membership and power levels the snapshot was computed from.
type SnapshotKey struct {
	TenantID    string
	SpaceID     string
	RoomID      string
	CategoryID  string
	UserID      string
	StateDigest string
}

const keySep = "|"

// String renders the key with the tenant and space first, so that
// TenantPrefix and SpacePrefix select whole groups of keys.
func (k SnapshotKey) String() string {
	return strings.Join([]string{k.TenantID, k.SpaceID, k.RoomID, k.CategoryID, k.UserID, k.StateDigest}, keySep)
}

// TenantPrefix is the key prefix shared by a tenant's snapshots.
func TenantPrefix(tenantID string) string { return tenantID + keySep }

// SpacePrefix is the key prefix shared by a space's snapshots.
func SpacePrefix(tenantID, spaceID string) string {
	return tenantID + keySep + spaceID + keySep
}
