package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/permission"
	"github.com/xraph/keeper/settings"
	"github.com/xraph/keeper/store"
)

// Compile-time check that *Store implements store.Store.
var _ store.Store = (*Store)(nil)

func TestSettingsCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetSettings(ctx, "t1", "!space:h"); !errors.Is(err, settings.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created := time.Now().Add(-time.Hour)
	st := &settings.Settings{
		TenantID:  "t1",
		SpaceID:   "!space:h",
		Roles:     permission.DefaultRoleSettings(),
		CreatedAt: created,
		UpdatedAt: created,
	}
	st.Roles.Definitions = []permission.RoleDefinition{{ID: "r1", Name: "Crew", PowerLevel: 30}}
	if err := s.SaveSettings(ctx, st); err != nil {
		t.Fatal(err)
	}

	// Stored value is isolated from the caller's copy.
	st.Roles.Definitions[0].Name = "mutated"

	got, err := s.GetSettings(ctx, "t1", "!space:h")
	if err != nil {
		t.Fatal(err)
	}
	if got.Roles.Definitions[0].Name != "Crew" {
		t.Fatalf("stored settings shared caller memory: %+v", got.Roles.Definitions)
	}

	// Upsert keeps the original creation time.
	next := *got
	next.Roles.AdminLevel = 90
	next.CreatedAt = time.Now()
	if err := s.SaveSettings(ctx, &next); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetSettings(ctx, "t1", "!space:h")
	if got.Roles.AdminLevel != 90 || !got.CreatedAt.Equal(created) {
		t.Fatalf("upsert = %+v", got)
	}

	// Tenant isolation.
	if _, err := s.GetSettings(ctx, "t2", "!space:h"); !errors.Is(err, settings.ErrNotFound) {
		t.Fatal("settings leaked across tenants")
	}

	if err := s.DeleteSettings(ctx, "t1", "!space:h"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSettings(ctx, "t1", "!space:h"); !errors.Is(err, settings.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestOverridesCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	rules := permission.EmptyOverrides().WithRoomRule("!r:h", permission.ActionPin, permission.RuleDeny)
	if err := s.SaveOverrides(ctx, &override.SpaceOverrides{TenantID: "t1", SpaceID: "!s:h", Rules: rules}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveOverrides(ctx, &override.SpaceOverrides{TenantID: "t2", SpaceID: "!s:h", Rules: rules}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOverrides(ctx, "t1", "!s:h")
	if err != nil {
		t.Fatal(err)
	}
	got.Rules.Rooms["!r:h"][permission.ActionPin] = permission.RuleAllow

	again, _ := s.GetOverrides(ctx, "t1", "!s:h")
	if again.Rules.Rooms["!r:h"].Get(permission.ActionPin) != permission.RuleDeny {
		t.Fatal("returned overrides shared store memory")
	}

	if err := s.DeleteOverridesByTenant(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetOverrides(ctx, "t1", "!s:h"); !errors.Is(err, override.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after tenant delete, got %v", err)
	}
	if _, err := s.GetOverrides(ctx, "t2", "!s:h"); err != nil {
		t.Fatalf("other tenant affected: %v", err)
	}
}

func seedEvents(t *testing.T, s *Store, n int, space string, start time.Time) []*audit.Event {
	t.Helper()
	out := make([]*audit.Event, 0, n)
	for i := range n {
		e := &audit.Event{
			ID:        id.NewAuditID(),
			TenantID:  "t1",
			SpaceID:   space,
			Action:    audit.ActionRoomRuleUpdate,
			ActorID:   "@mod:h",
			Target:    audit.RuleTarget("!r:h", "pin", "deny"),
			CreatedAt: start.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateAuditEvent(context.Background(), e); err != nil {
			t.Fatal(err)
		}
		out = append(out, e)
	}
	return out
}

func TestAuditListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := seedEvents(t, s, 5, "!a:h", start)
	seedEvents(t, s, 2, "!b:h", start)

	list, err := s.ListAuditEvents(ctx, &audit.QueryFilter{TenantID: "t1", SpaceID: "!a:h", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != events[4].ID || list[1].ID != events[3].ID {
		t.Fatalf("unexpected order: %v", list)
	}

	page, _ := s.ListAuditEvents(ctx, &audit.QueryFilter{SpaceID: "!a:h", Offset: 4, Limit: 10})
	if len(page) != 1 || page[0].ID != events[0].ID {
		t.Fatalf("offset page = %v", page)
	}

	n, _ := s.CountAuditEvents(ctx, &audit.QueryFilter{TenantID: "t1"})
	if n != 7 {
		t.Fatalf("count = %d, want 7", n)
	}

	got, err := s.GetAuditEvent(ctx, events[2].ID)
	if err != nil || got.Target != "!r:h:pin:deny" {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if _, err := s.GetAuditEvent(ctx, id.NewAuditID()); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("missing event: %v", err)
	}
}

func TestAuditTrimAndPurge(t *testing.T) {
	ctx := context.Background()
	s := New()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := seedEvents(t, s, 6, "!a:h", start)
	seedEvents(t, s, 3, "!b:h", start)

	removed, err := s.TrimAuditEvents(ctx, "t1", "!a:h", 4)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("trimmed %d, want 2", removed)
	}
	if _, err := s.GetAuditEvent(ctx, events[0].ID); !errors.Is(err, audit.ErrNotFound) {
		t.Fatal("oldest event survived trim")
	}
	if _, err := s.GetAuditEvent(ctx, events[5].ID); err != nil {
		t.Fatal("newest event was trimmed")
	}

	purged, err := s.PurgeAuditEvents(ctx, start.Add(3*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	// Space a keeps minutes 2..5, so minute 2 goes; space b loses minutes 0..2.
	if purged != 4 {
		t.Fatalf("purged %d, want 4", purged)
	}

	if err := s.DeleteAuditEventsByTenant(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.CountAuditEvents(ctx, nil); n != 0 {
		t.Fatalf("%d events left after tenant delete", n)
	}
}
