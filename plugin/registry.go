package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/settings"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeSnapshotEntry struct {
	name string
	hook BeforeSnapshot
}
type afterSnapshotEntry struct {
	name string
	hook AfterSnapshot
}
type afterCheckEntry struct {
	name string
	hook AfterCheck
}
type settingsSavedEntry struct {
	name string
	hook SettingsSaved
}
type overridesChangedEntry struct {
	name string
	hook OverridesChanged
}
type auditRecordedEntry struct {
	name string
	hook AuditRecorded
}
type auditPurgedEntry struct {
	name string
	hook AuditPurged
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeSnapshot   []beforeSnapshotEntry
	afterSnapshot    []afterSnapshotEntry
	afterCheck       []afterCheckEntry
	settingsSaved    []settingsSavedEntry
	overridesChanged []overridesChangedEntry
	auditRecorded    []auditRecordedEntry
	auditPurged      []auditPurgedEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeSnapshot); ok {
		r.beforeSnapshot = append(r.beforeSnapshot, beforeSnapshotEntry{name, h})
	}
	if h, ok := p.(AfterSnapshot); ok {
		r.afterSnapshot = append(r.afterSnapshot, afterSnapshotEntry{name, h})
	}
	if h, ok := p.(AfterCheck); ok {
		r.afterCheck = append(r.afterCheck, afterCheckEntry{name, h})
	}
	if h, ok := p.(SettingsSaved); ok {
		r.settingsSaved = append(r.settingsSaved, settingsSavedEntry{name, h})
	}
	if h, ok := p.(OverridesChanged); ok {
		r.overridesChanged = append(r.overridesChanged, overridesChangedEntry{name, h})
	}
	if h, ok := p.(AuditRecorded); ok {
		r.auditRecorded = append(r.auditRecorded, auditRecordedEntry{name, h})
	}
	if h, ok := p.(AuditPurged); ok {
		r.auditPurged = append(r.auditPurged, auditPurgedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Evaluation event emitters
// ──────────────────────────────────────────────────

// EmitBeforeSnapshot notifies all plugins that implement BeforeSnapshot.
func (r *Registry) EmitBeforeSnapshot(ctx context.Context, req any) {
	for _, e := range r.beforeSnapshot {
		if err := e.hook.OnBeforeSnapshot(ctx, req); err != nil {
			r.logHookError("OnBeforeSnapshot", e.name, err)
		}
	}
}

// EmitAfterSnapshot notifies all plugins that implement AfterSnapshot.
func (r *Registry) EmitAfterSnapshot(ctx context.Context, req, result any) {
	for _, e := range r.afterSnapshot {
		if err := e.hook.OnAfterSnapshot(ctx, req, result); err != nil {
			r.logHookError("OnAfterSnapshot", e.name, err)
		}
	}
}

// EmitAfterCheck notifies all plugins that implement AfterCheck.
func (r *Registry) EmitAfterCheck(ctx context.Context, req, result any) {
	for _, e := range r.afterCheck {
		if err := e.hook.OnAfterCheck(ctx, req, result); err != nil {
			r.logHookError("OnAfterCheck", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Configuration event emitters
// ──────────────────────────────────────────────────

// EmitSettingsSaved notifies all plugins that implement SettingsSaved.
func (r *Registry) EmitSettingsSaved(ctx context.Context, s *settings.Settings) {
	for _, e := range r.settingsSaved {
		if err := e.hook.OnSettingsSaved(ctx, s); err != nil {
			r.logHookError("OnSettingsSaved", e.name, err)
		}
	}
}

// EmitOverridesChanged notifies all plugins that implement OverridesChanged.
func (r *Registry) EmitOverridesChanged(ctx context.Context, o *override.SpaceOverrides) {
	for _, e := range r.overridesChanged {
		if err := e.hook.OnOverridesChanged(ctx, o); err != nil {
			r.logHookError("OnOverridesChanged", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Audit event emitters
// ──────────────────────────────────────────────────

// EmitAuditRecorded notifies all plugins that implement AuditRecorded.
func (r *Registry) EmitAuditRecorded(ctx context.Context, ev *audit.Event) {
	for _, e := range r.auditRecorded {
		if err := e.hook.OnAuditRecorded(ctx, ev); err != nil {
			r.logHookError("OnAuditRecorded", e.name, err)
		}
	}
}

// EmitAuditPurged notifies all plugins that implement AuditPurged.
func (r *Registry) EmitAuditPurged(ctx context.Context, removed int64) {
	for _, e := range r.auditPurged {
		if err := e.hook.OnAuditPurged(ctx, removed); err != nil {
			r.logHookError("OnAuditPurged", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated to the caller.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
