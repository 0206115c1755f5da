package keeper

import (
	"time"

	"github.com/xraph/keeper/permission"
)

// Config holds configuration for the keeper engine.
type Config struct {
	// CacheTTL is the time-to-live for cached snapshots.
	// Zero leaves the TTL to the cache implementation.
	CacheTTL time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl"`

	// AuditLogLimit caps the audit events kept per space, newest first.
	// Defaults to 250.
	AuditLogLimit int `json:"audit_log_limit,omitempty" yaml:"audit_log_limit"`

	// AuditRetentionDays is how long audit events survive the purge job.
	// Clamped to 7..365, defaults to 30.
	AuditRetentionDays int `json:"audit_retention_days,omitempty" yaml:"audit_retention_days"`

	// DefaultCategoryID is the category used for rooms outside any category.
	// Defaults to "channels".
	DefaultCategoryID string `json:"default_category_id,omitempty" yaml:"default_category_id"`

	// RecordAudit enables the moderation audit trail.
	// Defaults to true.
	RecordAudit *bool `json:"record_audit,omitempty" yaml:"record_audit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		AuditLogLimit:      250,
		AuditRetentionDays: permission.DefaultAuditRetentionDays,
		DefaultCategoryID:  permission.DefaultCategoryID,
		RecordAudit:        &t,
	}
}

func (c Config) auditEnabled() bool { return c.RecordAudit == nil || *c.RecordAudit }

func (c Config) auditLimit() int {
	if c.AuditLogLimit <= 0 {
		return 250
	}
	return c.AuditLogLimit
}

func (c Config) retention() time.Duration {
	return time.Duration(permission.ClampAuditRetentionDays(c.AuditRetentionDays)) * 24 * time.Hour
}

func (c Config) categoryID(id string) string {
	if id != "" {
		return id
	}
	if c.DefaultCategoryID != "" {
		return c.DefaultCategoryID
	}
	return permission.DefaultCategoryID
}
