package keeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/permission"
	"github.com/xraph/keeper/store/memory"
)

const (
	testSpace = "!space:example.org"
	testRoom  = "!general:example.org"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	// Step the clock so audit ordering is deterministic.
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	eng.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return eng, s
}

func testCtx() context.Context {
	return WithTenant(context.Background(), "app1", "t1")
}

func joined(users map[string]int) *RoomState {
	pl := permission.DefaultPowerLevels()
	pl.Users = users
	return &RoomState{Membership: permission.MembershipJoin, PowerLevels: pl}
}

func snapshotReq(userID string, state *RoomState) *SnapshotRequest {
	return &SnapshotRequest{SpaceID: testSpace, RoomID: testRoom, UserID: userID, State: state}
}

// mapCache is a minimal Cache used to observe engine caching.
type mapCache struct {
	mu    sync.Mutex
	items map[string]permission.Snapshot
	sets  int
}

func newMapCache() *mapCache { return &mapCache{items: make(map[string]permission.Snapshot)} }

func (c *mapCache) Get(_ context.Context, key SnapshotKey) (*permission.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[key.String()]
	if !ok {
		return nil, false
	}
	return &s, true
}

func (c *mapCache) Set(_ context.Context, key SnapshotKey, snap *permission.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.items[key.String()] = *snap
}

func (c *mapCache) InvalidateSpace(_ context.Context, tenantID, spaceID string) {
	c.dropPrefix(SpacePrefix(tenantID, spaceID))
}

func (c *mapCache) InvalidateTenant(_ context.Context, tenantID string) {
	c.dropPrefix(TenantPrefix(tenantID))
}

func (c *mapCache) dropPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.items, k)
		}
	}
}

type staticRooms struct {
	state *RoomState
	err   error
	calls []string
}

func (r *staticRooms) RoomState(_ context.Context, roomID, _ string) (*RoomState, error) {
	r.calls = append(r.calls, roomID)
	return r.state, r.err
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestSnapshot_DefaultSpace(t *testing.T) {
	eng, _ := newTestEngine(t)
	res, err := eng.Snapshot(testCtx(), snapshotReq("@alice:example.org", joined(nil)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Role != permission.RoleMember || res.PowerLevel != 0 {
		t.Fatalf("role = %s level = %d", res.Role, res.PowerLevel)
	}
	for _, a := range []permission.Action{permission.ActionSend, permission.ActionReact, permission.ActionInvite} {
		if !res.Can(a) {
			t.Errorf("member should be able to %s", a)
		}
	}
	for _, a := range []permission.Action{permission.ActionPin, permission.ActionRedact, permission.ActionManageChannels} {
		if res.Can(a) {
			t.Errorf("member should not be able to %s", a)
		}
	}
	if res.Cached {
		t.Error("first snapshot reported as cached")
	}
}

func TestSnapshot_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := testCtx()

	if _, err := eng.Snapshot(ctx, &SnapshotRequest{UserID: "@a:x"}); !errors.Is(err, ErrMissingSpace) {
		t.Errorf("missing space: %v", err)
	}
	if _, err := eng.Snapshot(ctx, &SnapshotRequest{SpaceID: testSpace}); !errors.Is(err, ErrMissingUser) {
		t.Errorf("missing user: %v", err)
	}
	if _, err := eng.Snapshot(ctx, &SnapshotRequest{SpaceID: testSpace, UserID: "@a:x"}); !errors.Is(err, ErrNoRoomState) {
		t.Errorf("no room state: %v", err)
	}
}

func TestSnapshot_RoomStateSource(t *testing.T) {
	rooms := &staticRooms{state: joined(map[string]int{"@mod:x": 50})}
	eng, _ := newTestEngine(t, WithRoomState(rooms))
	ctx := testCtx()

	res, err := eng.Snapshot(ctx, &SnapshotRequest{SpaceID: testSpace, RoomID: testRoom, UserID: "@mod:x"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Role != permission.RoleModerator || !res.Can(permission.ActionRedact) {
		t.Fatalf("moderator snapshot = %+v", res.Snapshot)
	}

	if _, err := eng.Snapshot(ctx, &SnapshotRequest{SpaceID: testSpace, UserID: "@mod:x"}); err != nil {
		t.Fatal(err)
	}
	if len(rooms.calls) != 2 || rooms.calls[0] != testRoom || rooms.calls[1] != testSpace {
		t.Fatalf("state read from %v", rooms.calls)
	}

	rooms.err = errors.New("homeserver down")
	if _, err := eng.Snapshot(ctx, &SnapshotRequest{SpaceID: testSpace, UserID: "@mod:x"}); err == nil {
		t.Fatal("expected room state error")
	}
}

func TestSnapshot_CustomRolePromotes(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := testCtx()

	_, err := eng.SaveRoleSettings(ctx, testSpace, "@owner:x", map[string]any{
		"definitions": []any{
			map[string]any{"id": "helper", "name": "Helper", "powerLevel": 50},
			map[string]any{"id": "pinner", "name": "Pinner", "powerLevel": 0, "permissions": map[string]any{"pin": true}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRoles(ctx, testSpace, "@owner:x", "@bob:x", []string{"helper"}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRoles(ctx, testSpace, "@owner:x", "@carol:x", []string{"pinner", "ghost"}); err != nil {
		t.Fatal(err)
	}

	bob, err := eng.Snapshot(ctx, snapshotReq("@bob:x", joined(nil)))
	if err != nil {
		t.Fatal(err)
	}
	if bob.PowerLevel != 50 || bob.Role != permission.RoleModerator || !bob.Can(permission.ActionPin) {
		t.Fatalf("bob = %+v", bob.Snapshot)
	}

	carol, err := eng.Snapshot(ctx, snapshotReq("@carol:x", joined(nil)))
	if err != nil {
		t.Fatal(err)
	}
	if carol.Role != permission.RoleMember || !carol.Can(permission.ActionPin) || carol.Can(permission.ActionRedact) {
		t.Fatalf("carol = %+v", carol.Snapshot)
	}

	roles, err := eng.RoleSettings(ctx, testSpace)
	if err != nil {
		t.Fatal(err)
	}
	if got := roles.MemberRoleIDs["@carol:x"]; len(got) != 1 || got[0] != "pinner" {
		t.Fatalf("carol's roles = %v", got)
	}
}

func TestSnapshot_RuleOverrides(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := testCtx()

	mustSet := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := eng.SetCategoryRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: "announcements", ActorID: "@owner:x",
		Action: permission.ActionSend, Rule: permission.RuleDeny})
	mustSet(err)
	_, err = eng.SetRoomRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: testRoom, ActorID: "@owner:x",
		Action: permission.ActionSend, Rule: permission.RuleAllow})
	mustSet(err)

	req := snapshotReq("@alice:x", joined(nil))
	req.CategoryID = "announcements"
	res, err := eng.Snapshot(ctx, req)
	mustSet(err)
	if !res.Can(permission.ActionSend) {
		t.Fatal("room allow should win over category deny")
	}

	other := snapshotReq("@alice:x", joined(nil))
	other.RoomID = "!other:x"
	other.CategoryID = "announcements"
	res, err = eng.Snapshot(ctx, other)
	mustSet(err)
	if res.Can(permission.ActionSend) {
		t.Fatal("category deny should apply to rooms without their own rule")
	}

	check, err := eng.Check(ctx, &CheckRequest{SnapshotRequest: *other, Action: permission.ActionSend})
	mustSet(err)
	if check.Allowed || check.Decision.Source != permission.SourceCategoryRule {
		t.Fatalf("check = %+v", check)
	}
}

func TestSetRule_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := testCtx()

	tests := []struct {
		name   string
		change *RuleChange
		want   error
	}{
		{"nil", nil, ErrMissingSpace},
		{"no scope", &RuleChange{SpaceID: testSpace, Action: permission.ActionSend, Rule: permission.RuleDeny}, ErrMissingScope},
		{"bad action", &RuleChange{SpaceID: testSpace, ScopeID: "c", Action: "fly", Rule: permission.RuleDeny}, ErrUnknownAction},
		{"bad rule", &RuleChange{SpaceID: testSpace, ScopeID: "c", Action: permission.ActionSend, Rule: "maybe"}, ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := eng.SetCategoryRule(ctx, tt.change); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSnapshot_CacheAndInvalidation(t *testing.T) {
	c := newMapCache()
	eng, _ := newTestEngine(t, WithCache(c))
	ctx := testCtx()
	req := snapshotReq("@alice:x", joined(nil))

	first, err := eng.Snapshot(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.Snapshot(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached {
		t.Fatalf("cached flags = %v, %v", first.Cached, second.Cached)
	}

	// Different power levels produce a different key.
	promoted := snapshotReq("@alice:x", joined(map[string]int{"@alice:x": 100}))
	res, err := eng.Snapshot(ctx, promoted)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || res.Role != permission.RoleOwner {
		t.Fatalf("promoted snapshot = %+v cached=%v", res.Snapshot, res.Cached)
	}

	if _, err := eng.SetRoomRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: testRoom,
		Action: permission.ActionReact, Rule: permission.RuleDeny}); err != nil {
		t.Fatal(err)
	}
	after, err := eng.Snapshot(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if after.Cached || after.Can(permission.ActionReact) {
		t.Fatalf("stale snapshot served after rule change: %+v", after)
	}
}

func TestCheck_UnknownAction(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Check(testCtx(), &CheckRequest{SnapshotRequest: *snapshotReq("@a:x", joined(nil)), Action: "fly"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestEnforce(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := testCtx()

	err := eng.Enforce(ctx, &CheckRequest{SnapshotRequest: *snapshotReq("@a:x", joined(nil)), Action: permission.ActionPin})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	err = eng.Enforce(ctx, &CheckRequest{SnapshotRequest: *snapshotReq("@a:x", joined(nil)), Action: permission.ActionSend})
	if err != nil {
		t.Fatalf("send should be allowed: %v", err)
	}
}

func TestCanI(t *testing.T) {
	rooms := &staticRooms{state: &RoomState{Membership: permission.MembershipLeave, PowerLevels: permission.DefaultPowerLevels()}}
	eng, _ := newTestEngine(t, WithRoomState(rooms))

	ok, err := eng.CanI(testCtx(), testSpace, testRoom, "@gone:x", permission.ActionSend)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("a user who left should not send")
	}
}

func TestCanRedact(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := testCtx()
	state := joined(map[string]int{"@mod:x": 50})

	tests := []struct {
		name   string
		user   string
		author string
		state  *RoomState
		want   bool
	}{
		{"own message", "@alice:x", "@alice:x", state, true},
		{"other message", "@alice:x", "@bob:x", state, false},
		{"moderator", "@mod:x", "@bob:x", state, true},
		{"not joined", "@alice:x", "@alice:x", &RoomState{Membership: permission.MembershipInvite}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := eng.CanRedact(ctx, &RedactRequest{SnapshotRequest: *snapshotReq(tt.user, tt.state), AuthorID: tt.author})
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.want {
				t.Fatalf("CanRedact = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestRecordRedaction(t *testing.T) {
	rooms := &staticRooms{state: joined(map[string]int{"@mod:x": 50})}
	eng, _ := newTestEngine(t, WithRoomState(rooms))
	ctx := testCtx()
	redact := func(user, author, event string) *RedactRequest {
		return &RedactRequest{
			SnapshotRequest: SnapshotRequest{SpaceID: testSpace, RoomID: testRoom, UserID: user},
			AuthorID:        author,
			EventID:         event,
		}
	}

	ev, err := eng.RecordRedaction(ctx, redact("@mod:x", "@bob:x", "$evt1"))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Action != audit.ActionMessageRedact || ev.Target != "@bob:x:$evt1" || ev.TenantID != "t1" || ev.SourceEventID != "$evt1" {
		t.Fatalf("event = %+v", ev)
	}

	_, err = eng.RecordRedaction(ctx, redact("@alice:x", "@bob:x", "$evt2"))
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	_, err = eng.RecordRedaction(ctx, redact("@mod:x", "@bob:x", ""))
	if !errors.Is(err, ErrMissingEvent) {
		t.Fatalf("expected ErrMissingEvent, got %v", err)
	}
}

func TestRecordRedaction_RejectsCallerState(t *testing.T) {
	rooms := &staticRooms{state: joined(nil)}
	eng, _ := newTestEngine(t, WithRoomState(rooms))
	ctx := testCtx()

	// A member claiming power level 100 in their own request.
	forged := joined(map[string]int{"@alice:x": 100})
	_, err := eng.RecordRedaction(ctx, &RedactRequest{
		SnapshotRequest: *snapshotReq("@alice:x", forged),
		AuthorID:        "@victim:x",
		EventID:         "$evt",
	})
	if !errors.Is(err, ErrUntrustedState) {
		t.Fatalf("expected ErrUntrustedState, got %v", err)
	}

	events, err := eng.AuditLog(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("redaction recorded from caller state: %+v", events)
	}
}

func TestRecordRedaction_AuditDisabled(t *testing.T) {
	off := false
	rooms := &staticRooms{state: joined(nil)}
	eng, _ := newTestEngine(t, WithRoomState(rooms), WithConfig(Config{RecordAudit: &off}))

	ev, err := eng.RecordRedaction(testCtx(), &RedactRequest{
		SnapshotRequest: SnapshotRequest{SpaceID: testSpace, RoomID: testRoom, UserID: "@alice:x"},
		AuthorID:        "@alice:x",
		EventID:         "$own",
	})
	if err != nil || ev != nil {
		t.Fatalf("RecordRedaction = %+v, %v; want nil event and no error", ev, err)
	}
}

func TestAuthorizeConfigWrite_IgnoresRules(t *testing.T) {
	rooms := &staticRooms{state: &RoomState{
		Membership:  permission.MembershipBan,
		PowerLevels: permission.DefaultPowerLevels(),
	}}
	eng, _ := newTestEngine(t, WithRoomState(rooms))
	ctx := testCtx()

	if _, err := eng.SetCategoryRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: permission.DefaultCategoryID,
		Action: permission.ActionManageChannels, Rule: permission.RuleAllow}); err != nil {
		t.Fatal(err)
	}
	err := eng.AuthorizeConfigWrite(ctx, testSpace, "", "@banned:x")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("banned user authorized through a category allow: %v", err)
	}

	rooms.state = joined(map[string]int{"@owner:x": 100})
	if _, err := eng.SetCategoryRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: permission.DefaultCategoryID,
		Action: permission.ActionManageChannels, Rule: permission.RuleDeny}); err != nil {
		t.Fatal(err)
	}
	if err := eng.AuthorizeConfigWrite(ctx, testSpace, "", "@owner:x"); err != nil {
		t.Fatalf("owner locked out by a category deny: %v", err)
	}
	if err := eng.AuthorizeConfigWrite(ctx, testSpace, testRoom, "@member:x"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("member authorized: %v", err)
	}
}

func TestAuthorizeConfigWrite_NeedsRoomStateSource(t *testing.T) {
	eng, _ := newTestEngine(t)
	if err := eng.AuthorizeConfigWrite(testCtx(), testSpace, "", "@owner:x"); !errors.Is(err, ErrNoRoomState) {
		t.Fatalf("expected ErrNoRoomState, got %v", err)
	}
}

// gatedCache holds the first Set until release is closed.
type gatedCache struct {
	*mapCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (c *gatedCache) Set(ctx context.Context, key SnapshotKey, snap *permission.Snapshot) {
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	c.mapCache.Set(ctx, key, snap)
}

func TestSnapshot_WriteDuringEvaluationNotCached(t *testing.T) {
	c := &gatedCache{mapCache: newMapCache(), entered: make(chan struct{}), release: make(chan struct{})}
	eng, _ := newTestEngine(t, WithCache(c))
	ctx := testCtx()
	req := snapshotReq("@alice:x", joined(nil))

	done := make(chan error, 1)
	go func() {
		_, err := eng.Snapshot(ctx, req)
		done <- err
	}()

	<-c.entered
	if _, err := eng.SetRoomRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: testRoom,
		Action: permission.ActionSend, Rule: permission.RuleDeny}); err != nil {
		t.Fatal(err)
	}
	close(c.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	res, err := eng.Snapshot(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || res.Can(permission.ActionSend) {
		t.Fatalf("stale snapshot served after room deny: cached=%v send=%v", res.Cached, res.Can(permission.ActionSend))
	}

	again, err := eng.Snapshot(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Cached || again.Can(permission.ActionSend) {
		t.Fatalf("fresh snapshot not cached: cached=%v send=%v", again.Cached, again.Can(permission.ActionSend))
	}
}

func TestCanDeleteChannels(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := testCtx()

	if _, err := eng.SetRoomRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: testRoom,
		Action: permission.ActionManageChannels, Rule: permission.RuleAllow}); err != nil {
		t.Fatal(err)
	}

	member := snapshotReq("@alice:x", joined(nil))
	snap, err := eng.Snapshot(ctx, member)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Can(permission.ActionManageChannels) {
		t.Fatal("room allow should grant manageChannels in the room")
	}
	ok, err := eng.CanDeleteChannels(ctx, member)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("a room allow must not grant channel deletion")
	}

	ok, err = eng.CanDeleteChannels(ctx, snapshotReq("@admin:x", joined(map[string]int{"@admin:x": 100})))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("admin should delete channels")
	}
}

func TestAuditLog(t *testing.T) {
	eng, _ := newTestEngine(t, WithConfig(Config{AuditLogLimit: 2}))
	ctx := testCtx()

	for _, rule := range []permission.Rule{permission.RuleDeny, permission.RuleAllow, permission.RuleInherit} {
		if _, err := eng.SetCategoryRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: "general", ActorID: "@owner:x",
			Action: permission.ActionPin, Rule: rule}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := eng.AuditLog(ctx, &audit.QueryFilter{SpaceID: testSpace})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected the log trimmed to 2 events, got %d", len(events))
	}
	if events[0].Target != "general:pin:inherit" || events[1].Target != "general:pin:allow" {
		t.Fatalf("events out of order: %s, %s", events[0].Target, events[1].Target)
	}
	if events[0].Action != audit.ActionCategoryRuleUpdate || events[0].ActorID != "@owner:x" {
		t.Fatalf("event = %+v", events[0])
	}

	other, err := eng.AuditLog(WithTenant(context.Background(), "app1", "t2"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("tenant t2 sees %d events", len(other))
	}
}

func TestAuditDisabled(t *testing.T) {
	off := false
	eng, _ := newTestEngine(t, WithConfig(Config{RecordAudit: &off}))
	ctx := testCtx()

	if _, err := eng.SetRoomRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: testRoom,
		Action: permission.ActionSend, Rule: permission.RuleDeny}); err != nil {
		t.Fatal(err)
	}
	events, err := eng.AuditLog(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("audit disabled but %d events recorded", len(events))
	}
}

func TestPurgeAuditLog(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := testCtx()

	if _, err := eng.SetRoomRule(ctx, &RuleChange{SpaceID: testSpace, ScopeID: testRoom,
		Action: permission.ActionSend, Rule: permission.RuleDeny}); err != nil {
		t.Fatal(err)
	}

	removed, err := eng.PurgeAuditLog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Fatalf("fresh event purged")
	}

	later := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	eng.now = func() time.Time { return later }
	removed, err = eng.PurgeAuditLog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	n, err := s.CountAuditEvents(ctx, &audit.QueryFilter{TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("%d events left after purge", n)
	}
}

func TestOverrides_EmptyByDefault(t *testing.T) {
	eng, _ := newTestEngine(t)
	o, err := eng.Overrides(testCtx(), testSpace)
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Categories) != 0 || len(o.Rooms) != 0 {
		t.Fatalf("overrides = %+v", o)
	}
}

func TestSnapshotEvalTime(t *testing.T) {
	eng, _ := newTestEngine(t)
	res, err := eng.Snapshot(testCtx(), snapshotReq("@a:x", joined(nil)))
	if err != nil {
		t.Fatal(err)
	}
	if res.EvalTimeNs <= 0 {
		t.Fatal("expected positive eval time")
	}
}
