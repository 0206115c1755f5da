// Package plugin defines the plugin system for keeper.
// Plugins are notified of lifecycle events (snapshot resolved, rule changed,
// audit event recorded, etc.) and can react with logging, metrics or tracing.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/settings"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Evaluation hooks
// ──────────────────────────────────────────────────

// BeforeSnapshot is called before a permission snapshot is resolved.
// The req parameter is *keeper.SnapshotRequest (passed as any to avoid an import cycle).
type BeforeSnapshot interface {
	OnBeforeSnapshot(ctx context.Context, req any) error
}

// AfterSnapshot is called after a snapshot is resolved.
// The req parameter is *keeper.SnapshotRequest; result is *keeper.SnapshotResult.
type AfterSnapshot interface {
	OnAfterSnapshot(ctx context.Context, req, result any) error
}

// AfterCheck is called after a single-action check completes.
// The req parameter is *keeper.CheckRequest; result is *keeper.CheckResult.
type AfterCheck interface {
	OnAfterCheck(ctx context.Context, req, result any) error
}

// ──────────────────────────────────────────────────
// Configuration hooks
// ──────────────────────────────────────────────────

// SettingsSaved is called after a space's role settings are written.
type SettingsSaved interface {
	OnSettingsSaved(ctx context.Context, s *settings.Settings) error
}

// OverridesChanged is called after a space's permission overrides change.
type OverridesChanged interface {
	OnOverridesChanged(ctx context.Context, o *override.SpaceOverrides) error
}

// ──────────────────────────────────────────────────
// Audit hooks
// ──────────────────────────────────────────────────

// AuditRecorded is called after a moderation audit event is stored.
type AuditRecorded interface {
	OnAuditRecorded(ctx context.Context, e *audit.Event) error
}

// AuditPurged is called after the retention job removes old audit events.
type AuditPurged interface {
	OnAuditPurged(ctx context.Context, removed int64) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
