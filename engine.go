package keeper

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/permission"
	"github.com/xraph/keeper/plugin"
	"github.com/xraph/keeper/settings"
	"github.com/xraph/keeper/store"
)

// Engine is the central permission engine. It resolves snapshots from room
// state and stored space configuration, manages that configuration, keeps
// the moderation audit trail and fires plugin hooks.
type Engine struct {
	store   store.Store
	rooms   RoomStateSource
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time

	// writeMu serializes read-modify-write cycles on space configuration.
	writeMu sync.Mutex

	// generations counts configuration writes per space. A snapshot is only
	// cached if its space's generation did not move while it was computed.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewEngine creates a new keeper engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:      slog.Default(),
		config:      DefaultConfig(),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, ErrNoStore
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Evaluation
// ──────────────────────────────────────────────────

// Snapshot resolves every action for the requesting user. This is the hot path.
func (e *Engine) Snapshot(ctx context.Context, req *SnapshotRequest) (*SnapshotResult, error) {
	start := time.Now()
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	scope := scopeFromContext(ctx)

	state, err := e.roomState(ctx, req)
	if err != nil {
		return nil, err
	}

	// 1. Cache hit?
	key := e.snapshotKey(scope, req, state)
	if e.cache != nil {
		if snap, ok := e.cache.Get(ctx, key); ok {
			res := newResult(req, *snap)
			res.Cached = true
			res.EvalTimeNs = time.Since(start).Nanoseconds()
			if e.plugins != nil {
				e.plugins.EmitAfterSnapshot(ctx, req, res)
			}
			return res, nil
		}
	}

	if e.plugins != nil {
		e.plugins.EmitBeforeSnapshot(ctx, req)
	}

	// 2. Combine room state with the space's stored configuration.
	gen := e.generation(scope.tenantID, req.SpaceID)
	in, err := e.input(ctx, scope, req, state)
	if err != nil {
		return nil, err
	}

	// 3. Resolve.
	snap := permission.Build(in)
	res := newResult(req, snap)
	res.EvalTimeNs = time.Since(start).Nanoseconds()

	if e.cache != nil {
		e.cacheSnapshot(ctx, scope.tenantID, req.SpaceID, gen, key, &snap)
	}
	if e.plugins != nil {
		e.plugins.EmitAfterSnapshot(ctx, req, res)
	}
	return res, nil
}

// Check resolves a single action and explains the decision.
func (e *Engine) Check(ctx context.Context, req *CheckRequest) (*CheckResult, error) {
	start := time.Now()
	if req == nil {
		return nil, ErrMissingSpace
	}
	action, err := permission.ParseAction(string(req.Action))
	if err != nil {
		return nil, err
	}
	if err := validateRequest(&req.SnapshotRequest); err != nil {
		return nil, err
	}
	scope := scopeFromContext(ctx)

	state, err := e.roomState(ctx, &req.SnapshotRequest)
	if err != nil {
		return nil, err
	}
	in, err := e.input(ctx, scope, &req.SnapshotRequest, state)
	if err != nil {
		return nil, err
	}

	d := permission.Explain(in, action)
	result := &CheckResult{
		Allowed:    d.Allowed,
		Role:       in.Roles.DeriveRole(in.Membership, d.PowerLevel),
		Decision:   d,
		EvalTimeNs: time.Since(start).Nanoseconds(),
	}
	if e.plugins != nil {
		e.plugins.EmitAfterCheck(ctx, req, result)
	}
	return result, nil
}

// Enforce returns an error wrapping ErrAccessDenied when the check fails.
func (e *Engine) Enforce(ctx context.Context, req *CheckRequest) error {
	result, err := e.Check(ctx, req)
	if err != nil {
		return fmt.Errorf("keeper check: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("%w: %s may not %s (%s)", ErrAccessDenied, req.UserID, req.Action, result.Decision.Source)
	}
	return nil
}

// CanI is a shorthand for a single-action check that reads room state from
// the configured RoomStateSource.
func (e *Engine) CanI(ctx context.Context, spaceID, roomID, userID string, action permission.Action) (bool, error) {
	result, err := e.Check(ctx, &CheckRequest{
		SnapshotRequest: SnapshotRequest{SpaceID: spaceID, RoomID: roomID, UserID: userID},
		Action:          action,
	})
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

// CanRedact decides whether req.UserID may redact a message by req.AuthorID.
func (e *Engine) CanRedact(ctx context.Context, req *RedactRequest) (bool, error) {
	if req == nil {
		return false, ErrMissingSpace
	}
	res, err := e.Snapshot(ctx, &req.SnapshotRequest)
	if err != nil {
		return false, err
	}
	return permission.CanRedactMessage(res.Snapshot, req.AuthorID, req.UserID), nil
}

// RecordRedaction enforces the redaction policy and appends a message.redact
// audit event. The redaction itself is sent to Matrix by the caller. Room
// state is always read from the RoomStateSource; a request carrying State is
// rejected with ErrUntrustedState.
func (e *Engine) RecordRedaction(ctx context.Context, req *RedactRequest) (*audit.Event, error) {
	if req != nil && req.EventID == "" {
		return nil, ErrMissingEvent
	}
	if req != nil && req.State != nil {
		return nil, ErrUntrustedState
	}
	ok, err := e.CanRedact(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s may not redact %s", ErrAccessDenied, req.UserID, req.EventID)
	}
	return e.recordAudit(ctx, scopeFromContext(ctx), req.SpaceID, audit.ActionMessageRedact,
		req.UserID, audit.RedactionTarget(req.AuthorID, req.EventID), req.EventID)
}

// CanDeleteChannels decides whether the user may delete channels and
// categories of the space.
func (e *Engine) CanDeleteChannels(ctx context.Context, req *SnapshotRequest) (bool, error) {
	if err := validateRequest(req); err != nil {
		return false, err
	}
	scope := scopeFromContext(ctx)
	state, err := e.roomState(ctx, req)
	if err != nil {
		return false, err
	}
	in, err := e.input(ctx, scope, req, state)
	if err != nil {
		return false, err
	}
	return permission.CanDeleteChannels(in), nil
}

// cacheSnapshot stores snap unless a configuration write for the space
// landed after gen was read. A write that lands during Set is caught by the
// second check.
func (e *Engine) cacheSnapshot(ctx context.Context, tenantID, spaceID string, gen uint64, key SnapshotKey, snap *permission.Snapshot) {
	if e.generation(tenantID, spaceID) != gen {
		return
	}
	e.cache.Set(ctx, key, snap)
	if e.generation(tenantID, spaceID) != gen {
		e.cache.InvalidateSpace(ctx, tenantID, spaceID)
	}
}

func (e *Engine) generation(tenantID, spaceID string) uint64 {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	return e.generations[SpacePrefix(tenantID, spaceID)]
}

// AuthorizeConfigWrite reports whether userID may change the space's role
// settings or rule overrides. Like CanDeleteChannels it ignores rule
// overrides, so a rule can neither hand out nor take away control of the
// rules themselves. Room state comes from the RoomStateSource only. roomID
// may be empty to check against the space room.
func (e *Engine) AuthorizeConfigWrite(ctx context.Context, spaceID, roomID, userID string) error {
	ok, err := e.CanDeleteChannels(ctx, &SnapshotRequest{SpaceID: spaceID, RoomID: roomID, UserID: userID})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s may not change permissions of %s", ErrAccessDenied, userID, spaceID)
	}
	return nil
}

func (e *Engine) roomState(ctx context.Context, req *SnapshotRequest) (*RoomState, error) {
	if req.State != nil {
		return &RoomState{
			Membership:  permission.ParseMembership(string(req.State.Membership)),
			PowerLevels: permission.ParsePowerLevels(req.State.PowerLevels),
		}, nil
	}
	if e.rooms == nil {
		return nil, ErrNoRoomState
	}
	state, err := e.rooms.RoomState(ctx, req.stateRoom(), req.UserID)
	if err != nil {
		return nil, fmt.Errorf("keeper: read room state: %w", err)
	}
	if state == nil {
		return nil, ErrNoRoomState
	}
	return state, nil
}

func (e *Engine) input(ctx context.Context, scope tenantScope, req *SnapshotRequest, state *RoomState) (permission.Input, error) {
	roles, err := e.loadRoles(ctx, scope.tenantID, req.SpaceID)
	if err != nil {
		return permission.Input{}, err
	}
	ov, err := e.loadOverrides(ctx, scope.tenantID, req.SpaceID)
	if err != nil {
		return permission.Input{}, err
	}
	category, room := ov.Rules(e.config.categoryID(req.CategoryID), req.RoomID)
	return permission.Input{
		UserID:        req.UserID,
		Membership:    state.Membership,
		PowerLevels:   state.PowerLevels,
		Roles:         roles,
		CategoryRules: category,
		RoomRules:     room,
	}, nil
}

func (e *Engine) snapshotKey(scope tenantScope, req *SnapshotRequest, state *RoomState) SnapshotKey {
	return SnapshotKey{
		TenantID:    scope.tenantID,
		SpaceID:     req.SpaceID,
		RoomID:      req.RoomID,
		CategoryID:  e.config.categoryID(req.CategoryID),
		UserID:      req.UserID,
		StateDigest: stateDigest(state),
	}
}

// stateDigest fingerprints room state. encoding/json sorts map keys, so equal
// states always produce equal digests.
func stateDigest(state *RoomState) string {
	data, err := json.Marshal(state)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

func newResult(req *SnapshotRequest, snap permission.Snapshot) *SnapshotResult {
	return &SnapshotResult{
		Snapshot: snap,
		SpaceID:  req.SpaceID,
		RoomID:   req.RoomID,
		UserID:   req.UserID,
	}
}

func validateRequest(req *SnapshotRequest) error {
	switch {
	case req == nil || req.SpaceID == "":
		return ErrMissingSpace
	case req.UserID == "":
		return ErrMissingUser
	default:
		return nil
	}
}

// ──────────────────────────────────────────────────
// Role settings
// ──────────────────────────────────────────────────

// RoleSettings returns the space's role settings, or the defaults when the
// space has none stored.
func (e *Engine) RoleSettings(ctx context.Context, spaceID string) (permission.RoleSettings, error) {
	if spaceID == "" {
		return permission.RoleSettings{}, ErrMissingSpace
	}
	return e.loadRoles(ctx, scopeFromContext(ctx).tenantID, spaceID)
}

// SaveRoleSettings normalizes raw settings content and stores it for the
// space. raw may be a permission.RoleSettings, a decoded JSON object or raw
// JSON bytes.
func (e *Engine) SaveRoleSettings(ctx context.Context, spaceID, actorID string, raw any) (*settings.Settings, error) {
	if spaceID == "" {
		return nil, ErrMissingSpace
	}
	scope := scopeFromContext(ctx)
	roles := permission.NormalizeRoleSettings(raw)

	e.writeMu.Lock()
	st, err := e.writeRoles(ctx, scope, spaceID, roles)
	e.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	e.auditBestEffort(ctx, scope, spaceID, audit.ActionRolesUpdate, actorID, spaceID)
	return st, nil
}

// AssignRoles replaces the custom roles assigned to userID. Unknown role
// ids are dropped; an empty list removes the assignment.
func (e *Engine) AssignRoles(ctx context.Context, spaceID, actorID, userID string, roleIDs []string) (*settings.Settings, error) {
	switch {
	case spaceID == "":
		return nil, ErrMissingSpace
	case userID == "":
		return nil, ErrMissingUser
	}
	scope := scopeFromContext(ctx)

	e.writeMu.Lock()
	roles, err := e.loadRoles(ctx, scope.tenantID, spaceID)
	if err != nil {
		e.writeMu.Unlock()
		return nil, err
	}
	roles = roles.WithMemberRoles(userID, roleIDs)
	st, err := e.writeRoles(ctx, scope, spaceID, roles)
	e.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	target := userID + ":" + strings.Join(roles.MemberRoleIDs[userID], ",")
	e.auditBestEffort(ctx, scope, spaceID, audit.ActionRolesAssign, actorID, target)
	return st, nil
}

func (e *Engine) writeRoles(ctx context.Context, scope tenantScope, spaceID string, roles permission.RoleSettings) (*settings.Settings, error) {
	now := e.now().UTC()
	st := &settings.Settings{
		TenantID:  scope.tenantID,
		AppID:     scope.appID,
		SpaceID:   spaceID,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, err := e.store.GetSettings(ctx, scope.tenantID, spaceID); err == nil {
		st.CreatedAt = prev.CreatedAt
	} else if !errors.Is(err, settings.ErrNotFound) {
		return nil, fmt.Errorf("keeper: load settings: %w", err)
	}

	if err := e.store.SaveSettings(ctx, st); err != nil {
		return nil, fmt.Errorf("keeper: save settings: %w", err)
	}
	e.invalidate(ctx, scope.tenantID, spaceID)
	if e.plugins != nil {
		e.plugins.EmitSettingsSaved(ctx, st)
	}
	return st, nil
}

func (e *Engine) loadRoles(ctx context.Context, tenantID, spaceID string) (permission.RoleSettings, error) {
	st, err := e.store.GetSettings(ctx, tenantID, spaceID)
	switch {
	case err == nil:
		return st.Roles, nil
	case errors.Is(err, settings.ErrNotFound):
		return permission.DefaultRoleSettings(), nil
	default:
		return permission.RoleSettings{}, fmt.Errorf("keeper: load settings: %w", err)
	}
}

// ──────────────────────────────────────────────────
// Rule overrides
// ──────────────────────────────────────────────────

// Overrides returns the space's rule overrides, empty when none are stored.
func (e *Engine) Overrides(ctx context.Context, spaceID string) (permission.Overrides, error) {
	if spaceID == "" {
		return permission.Overrides{}, ErrMissingSpace
	}
	return e.loadOverrides(ctx, scopeFromContext(ctx).tenantID, spaceID)
}

// SetCategoryRule sets or clears one action's rule on a category.
func (e *Engine) SetCategoryRule(ctx context.Context, change *RuleChange) (*override.SpaceOverrides, error) {
	return e.setRule(ctx, change, false)
}

// SetRoomRule sets or clears one action's rule on a room.
func (e *Engine) SetRoomRule(ctx context.Context, change *RuleChange) (*override.SpaceOverrides, error) {
	return e.setRule(ctx, change, true)
}

func (e *Engine) setRule(ctx context.Context, change *RuleChange, room bool) (*override.SpaceOverrides, error) {
	switch {
	case change == nil || change.SpaceID == "":
		return nil, ErrMissingSpace
	case change.ScopeID == "":
		return nil, ErrMissingScope
	}
	action, err := permission.ParseAction(string(change.Action))
	if err != nil {
		return nil, err
	}
	rule, err := permission.ParseRule(string(change.Rule))
	if err != nil {
		return nil, err
	}
	scope := scopeFromContext(ctx)

	e.writeMu.Lock()
	current, err := e.store.GetOverrides(ctx, scope.tenantID, change.SpaceID)
	now := e.now().UTC()
	switch {
	case err == nil:
	case errors.Is(err, override.ErrNotFound):
		current = &override.SpaceOverrides{
			TenantID:  scope.tenantID,
			AppID:     scope.appID,
			SpaceID:   change.SpaceID,
			Rules:     permission.EmptyOverrides(),
			CreatedAt: now,
		}
	default:
		e.writeMu.Unlock()
		return nil, fmt.Errorf("keeper: load overrides: %w", err)
	}

	auditAction := audit.ActionCategoryRuleUpdate
	if room {
		current.Rules = current.Rules.WithRoomRule(change.ScopeID, action, rule)
		auditAction = audit.ActionRoomRuleUpdate
	} else {
		current.Rules = current.Rules.WithCategoryRule(change.ScopeID, action, rule)
	}
	current.UpdatedAt = now

	err = e.store.SaveOverrides(ctx, current)
	e.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("keeper: save overrides: %w", err)
	}

	e.invalidate(ctx, scope.tenantID, change.SpaceID)
	if e.plugins != nil {
		e.plugins.EmitOverridesChanged(ctx, current)
	}
	e.auditBestEffort(ctx, scope, change.SpaceID, auditAction, change.ActorID,
		audit.RuleTarget(change.ScopeID, string(action), string(rule)))
	return current, nil
}

func (e *Engine) loadOverrides(ctx context.Context, tenantID, spaceID string) (permission.Overrides, error) {
	o, err := e.store.GetOverrides(ctx, tenantID, spaceID)
	switch {
	case err == nil:
		return o.Rules, nil
	case errors.Is(err, override.ErrNotFound):
		return permission.EmptyOverrides(), nil
	default:
		return permission.Overrides{}, fmt.Errorf("keeper: load overrides: %w", err)
	}
}

func (e *Engine) invalidate(ctx context.Context, tenantID, spaceID string) {
	e.genMu.Lock()
	e.generations[SpacePrefix(tenantID, spaceID)]++
	e.genMu.Unlock()
	if e.cache != nil {
		e.cache.InvalidateSpace(ctx, tenantID, spaceID)
	}
}

// ──────────────────────────────────────────────────
// Audit trail
// ──────────────────────────────────────────────────

// AuditLog lists the tenant's audit events, newest first.
func (e *Engine) AuditLog(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Event, error) {
	f := audit.QueryFilter{}
	if filter != nil {
		f = *filter
	}
	f.TenantID = scopeFromContext(ctx).tenantID
	return e.store.ListAuditEvents(ctx, &f)
}

// PurgeAuditLog removes audit events older than the configured retention.
func (e *Engine) PurgeAuditLog(ctx context.Context) (int64, error) {
	before := e.now().Add(-e.config.retention())
	removed, err := e.store.PurgeAuditEvents(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("keeper: purge audit log: %w", err)
	}
	e.logger.Debug("audit log purged",
		slog.Int64("removed", removed),
		slog.Time("before", before),
	)
	if e.plugins != nil {
		e.plugins.EmitAuditPurged(ctx, removed)
	}
	return removed, nil
}

func (e *Engine) recordAudit(ctx context.Context, scope tenantScope, spaceID, action, actorID, target, sourceEventID string) (*audit.Event, error) {
	if !e.config.auditEnabled() {
		return nil, nil //nolint:nilnil // audit disabled
	}
	ev := &audit.Event{
		ID:            id.NewAuditID(),
		TenantID:      scope.tenantID,
		AppID:         scope.appID,
		SpaceID:       spaceID,
		Action:        action,
		ActorID:       actorID,
		Target:        target,
		SourceEventID: sourceEventID,
		CreatedAt:     e.now().UTC(),
	}
	if err := e.store.CreateAuditEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("keeper: record audit event: %w", err)
	}
	if _, err := e.store.TrimAuditEvents(ctx, scope.tenantID, spaceID, e.config.auditLimit()); err != nil {
		e.logger.Warn("audit trim failed",
			slog.String("space_id", spaceID),
			slog.String("error", err.Error()),
		)
	}
	if e.plugins != nil {
		e.plugins.EmitAuditRecorded(ctx, ev)
	}
	return ev, nil
}

// auditBestEffort records an audit event for a write that already succeeded.
// Failures are logged rather than returned.
func (e *Engine) auditBestEffort(ctx context.Context, scope tenantScope, spaceID, action, actorID, target string) {
	if _, err := e.recordAudit(ctx, scope, spaceID, action, actorID, target, ""); err != nil {
		e.logger.Warn("audit event not recorded",
			slog.String("action", action),
			slog.String("space_id", spaceID),
			slog.String("error", err.Error()),
		)
	}
}
