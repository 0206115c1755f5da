package permission

import (
	"encoding/json"
	"testing"
)

const (
	ownerID  = "@owner:example.org"
	modID    = "@mod:example.org"
	memberID = "@member:example.org"
)

func basePowerLevels() PowerLevels {
	return ParsePowerLevels(map[string]any{
		"users": map[string]any{
			ownerID:  100,
			modID:    50,
			memberID: 0,
		},
		"events": map[string]any{
			"m.room.pinned_events": 50,
			"m.reaction":           0,
			"m.room.message":       0,
		},
		"redact":        50,
		"state_default": 50,
	})
}

func joined(userID string) Input {
	return Input{
		UserID:      userID,
		Membership:  MembershipJoin,
		PowerLevels: basePowerLevels(),
		Roles:       DefaultRoleSettings(),
	}
}

func TestBuild_Owner(t *testing.T) {
	snap := Build(joined(ownerID))
	if snap.Role != RoleOwner {
		t.Fatalf("role = %s, want owner", snap.Role)
	}
	if snap.PowerLevel != 100 {
		t.Fatalf("power level = %d, want 100", snap.PowerLevel)
	}
	for _, a := range Actions() {
		if !snap.Can(a) {
			t.Errorf("owner should be allowed %s", a)
		}
	}
}

func TestBuild_Member(t *testing.T) {
	snap := Build(joined(memberID))
	if snap.Role != RoleMember {
		t.Fatalf("role = %s, want member", snap.Role)
	}
	if snap.Can(ActionPin) || snap.Can(ActionRedact) || snap.Can(ActionManageChannels) {
		t.Fatalf("member got privileged actions: %v", snap.Actions.Map())
	}
	if !snap.Can(ActionSend) || !snap.Can(ActionReact) || !snap.Can(ActionInvite) {
		t.Fatalf("member missing everyday actions: %v", snap.Actions.Map())
	}
}

func TestBuild_RoomDenyBeatsCategoryAllow(t *testing.T) {
	in := joined(modID)
	in.CategoryRules = RuleSet{ActionSend: RuleAllow, ActionPin: RuleAllow}
	in.RoomRules = RuleSet{ActionPin: RuleDeny}

	snap := Build(in)
	if snap.Role != RoleModerator {
		t.Fatalf("role = %s, want moderator", snap.Role)
	}
	if !snap.Can(ActionSend) {
		t.Error("send should be allowed by category rule")
	}
	if snap.Can(ActionPin) {
		t.Error("pin should be denied by room rule")
	}
}

func TestBuild_AllowElevatesAboveBase(t *testing.T) {
	in := joined(memberID)
	if Build(in).Can(ActionPin) {
		t.Fatal("precondition: member cannot pin by power level")
	}
	in.CategoryRules = RuleSet{ActionPin: RuleAllow}
	if !Build(in).Can(ActionPin) {
		t.Fatal("category allow should grant pin")
	}
}

func TestBuild_CustomRolePowerLevel(t *testing.T) {
	in := joined(memberID)
	in.Roles.Definitions = []RoleDefinition{{ID: "role_ops", Name: "Ops", PowerLevel: 80}}
	in.Roles.MemberRoleIDs = map[string][]string{memberID: {"role_ops"}}

	snap := Build(in)
	if snap.PowerLevel != 80 {
		t.Fatalf("power level = %d, want 80", snap.PowerLevel)
	}
	if snap.Role != RoleModerator {
		t.Fatalf("role = %s, want moderator", snap.Role)
	}
	if !snap.Can(ActionManageChannels) {
		t.Fatal("level 80 should manage channels")
	}
}

func TestBuild_CustomRoleGrants(t *testing.T) {
	strict := ParsePowerLevels(map[string]any{
		"users_default":  0,
		"events_default": 50,
		"state_default":  50,
		"invite":         50,
		"redact":         50,
	})
	in := Input{
		UserID:      memberID,
		Membership:  MembershipJoin,
		PowerLevels: strict,
		Roles: RoleSettings{
			AdminLevel:     100,
			ModeratorLevel: 50,
			Definitions: []RoleDefinition{{
				ID:          "role_steward",
				PowerLevel:  0,
				Permissions: map[Action]bool{ActionManageChannels: true, ActionInvite: true, ActionPin: false},
			}},
			MemberRoleIDs: map[string][]string{memberID: {"role_steward"}},
		},
	}

	snap := Build(in)
	if !snap.Can(ActionManageChannels) || !snap.Can(ActionInvite) {
		t.Fatalf("role grants missing: %v", snap.Actions.Map())
	}
	if snap.Can(ActionSend) {
		t.Fatal("send has neither level nor grant")
	}
	if snap.Role != RoleMember {
		t.Fatalf("grants must not change role, got %s", snap.Role)
	}

	d := Explain(in, ActionInvite)
	if d.Source != SourceRoleGrant {
		t.Fatalf("invite source = %s, want role_grant", d.Source)
	}
}

func TestBuild_FalseGrantDoesNotRevoke(t *testing.T) {
	in := joined(ownerID)
	in.Roles.Definitions = []RoleDefinition{{ID: "r", Permissions: map[Action]bool{ActionSend: false}}}
	in.Roles.MemberRoleIDs = map[string][]string{ownerID: {"r"}}
	if !Build(in).Can(ActionSend) {
		t.Fatal("a false grant must not revoke a level-based permission")
	}
}

func TestBuild_UnknownRoleIDsIgnored(t *testing.T) {
	in := joined(memberID)
	in.Roles.Definitions = []RoleDefinition{{ID: "known", PowerLevel: 10}}
	in.Roles.MemberRoleIDs = map[string][]string{memberID: {"ghost", "known", "ghost"}}
	if got := Build(in).PowerLevel; got != 10 {
		t.Fatalf("power level = %d, want 10", got)
	}
}

func TestBuild_DefaultLevelFloorsAssignedRoles(t *testing.T) {
	in := joined("@stranger:example.org")
	in.Roles.DefaultLevel = 20
	in.Roles.Definitions = []RoleDefinition{{ID: "low", PowerLevel: 5}}
	in.Roles.MemberRoleIDs = map[string][]string{"@stranger:example.org": {"low"}}
	if got := Build(in).PowerLevel; got != 20 {
		t.Fatalf("power level = %d, want default level 20", got)
	}
}

func TestBuild_NonJoinedIsGuest(t *testing.T) {
	memberships := []Membership{
		MembershipInvite, MembershipLeave, MembershipBan, MembershipKnock,
		MembershipUnknown, ParseMembership("something-else"),
	}
	for _, m := range memberships {
		t.Run(string(m), func(t *testing.T) {
			in := joined(ownerID)
			in.Membership = m
			snap := Build(in)
			if snap.Role != RoleGuest {
				t.Fatalf("role = %s, want guest", snap.Role)
			}
			for _, a := range Actions() {
				if snap.Can(a) {
					t.Errorf("%s allowed for %s", a, m)
				}
				if d := Explain(in, a); d.Source != SourceNotJoined {
					t.Errorf("%s source = %s, want not_joined", a, d.Source)
				}
			}
		})
	}
}

func TestBuild_OwnerAtOrAboveAdminLevel(t *testing.T) {
	for _, level := range []int{100, 101, 9000} {
		in := joined("@x:example.org")
		in.PowerLevels.Users["@x:example.org"] = level
		if role := Build(in).Role; role != RoleOwner {
			t.Errorf("level %d: role = %s, want owner", level, role)
		}
	}
}

func TestBuild_RoleMonotonic(t *testing.T) {
	prev := RoleGuest
	for level := -10; level <= 120; level++ {
		in := joined("@x:example.org")
		in.PowerLevels.Users["@x:example.org"] = level
		role := Build(in).Role
		if role.Rank() < prev.Rank() {
			t.Fatalf("role dropped from %s to %s at level %d", prev, role, level)
		}
		prev = role
	}
}

func TestBuild_RoleMonotonicAssignedRole(t *testing.T) {
	prev := RoleGuest
	for level := 0; level <= 100; level++ {
		in := joined("@x:example.org")
		in.Roles.Definitions = []RoleDefinition{{ID: "r", PowerLevel: level}}
		in.Roles.MemberRoleIDs = map[string][]string{"@x:example.org": {"r"}}
		snap := Build(in)
		if snap.PowerLevel != level {
			t.Fatalf("assigned role level %d gave power level %d", level, snap.PowerLevel)
		}
		if snap.Role.Rank() < prev.Rank() {
			t.Fatalf("role dropped from %s to %s at assigned level %d", prev, snap.Role, level)
		}
		prev = snap.Role
	}
}

func TestBuild_UnrecognizedMembership(t *testing.T) {
	for _, m := range []Membership{"", "joined", "JOIN"} {
		in := joined(ownerID)
		in.Membership = m
		snap := Build(in)
		if snap.Membership != MembershipUnknown {
			t.Errorf("membership %q reported as %q", m, snap.Membership)
		}
		if snap.Role != RoleGuest || snap.Can(ActionSend) {
			t.Errorf("membership %q: role %s, send %v", m, snap.Role, snap.Can(ActionSend))
		}
	}
}

func TestResolveRule_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		category RuleSet
		room     RuleSet
		base     bool
		want     bool
	}{
		{"room deny over category allow", RuleSet{ActionSend: RuleAllow}, RuleSet{ActionSend: RuleDeny}, true, false},
		{"room allow over category deny", RuleSet{ActionSend: RuleDeny}, RuleSet{ActionSend: RuleAllow}, false, true},
		{"category deny when room inherits", RuleSet{ActionSend: RuleDeny}, RuleSet{ActionSend: RuleInherit}, true, false},
		{"category allow when room absent", RuleSet{ActionSend: RuleAllow}, nil, false, true},
		{"base when both absent", nil, nil, true, true},
		{"base false when both absent", nil, nil, false, false},
		{"garbage rule inherits", RuleSet{ActionSend: Rule("maybe")}, nil, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRule(ActionSend, tt.category, tt.room).Apply(tt.base)
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExplain_RuleSources(t *testing.T) {
	in := joined(memberID)
	in.CategoryRules = RuleSet{ActionSend: RuleDeny}
	in.RoomRules = RuleSet{ActionReact: RuleDeny}

	if d := Explain(in, ActionSend); d.Allowed || d.Source != SourceCategoryRule || d.Rule != RuleDeny {
		t.Fatalf("send decision = %+v", d)
	}
	if d := Explain(in, ActionReact); d.Allowed || d.Source != SourceRoomRule {
		t.Fatalf("react decision = %+v", d)
	}
	if d := Explain(in, ActionPin); d.Allowed || d.Source != SourceInsufficient || d.RequiredLevel != 50 {
		t.Fatalf("pin decision = %+v", d)
	}
}

func TestExplain_AgreesWithBuild(t *testing.T) {
	in := joined(modID)
	in.CategoryRules = RuleSet{ActionInvite: RuleDeny}
	in.RoomRules = RuleSet{ActionManageChannels: RuleAllow}
	snap := Build(in)
	for _, a := range Actions() {
		if Explain(in, a).Allowed != snap.Can(a) {
			t.Errorf("%s: Explain and Build disagree", a)
		}
	}
}

func TestCanRedactMessage(t *testing.T) {
	member := Build(joined(memberID))
	if !CanRedactMessage(member, memberID, memberID) {
		t.Error("member should redact their own message")
	}
	if CanRedactMessage(member, ownerID, memberID) {
		t.Error("member should not redact another user's message")
	}

	mod := Build(joined(modID))
	if !CanRedactMessage(mod, memberID, modID) {
		t.Error("moderator with redact should redact others")
	}

	left := joined(memberID)
	left.Membership = MembershipLeave
	if CanRedactMessage(Build(left), memberID, memberID) {
		t.Error("non-joined user should not redact even their own message")
	}
}

func TestCanRedactMessage_DeniedModeratorKeepsSelfRedaction(t *testing.T) {
	in := joined(modID)
	in.RoomRules = RuleSet{ActionRedact: RuleDeny}
	snap := Build(in)
	if snap.Can(ActionRedact) {
		t.Fatal("precondition: redact denied")
	}
	if CanRedactMessage(snap, memberID, modID) {
		t.Error("moderator with redact denied should not redact others")
	}
	if !CanRedactMessage(snap, modID, modID) {
		t.Error("self-redaction bypasses the redact action")
	}
}

func TestCanRedactMessage_AllowedMemberStillLimitedToSelf(t *testing.T) {
	in := joined(memberID)
	in.RoomRules = RuleSet{ActionRedact: RuleAllow}
	snap := Build(in)
	if !snap.Can(ActionRedact) {
		t.Fatal("precondition: redact allowed by rule")
	}
	if CanRedactMessage(snap, ownerID, memberID) {
		t.Error("member role never redacts others")
	}
}

func TestCanDeleteChannels_IgnoresChannelRules(t *testing.T) {
	in := joined(memberID)
	in.RoomRules = RuleSet{ActionManageChannels: RuleAllow}
	if CanDeleteChannels(in) {
		t.Fatal("a room rule must not let a member delete channels")
	}

	owner := joined(ownerID)
	owner.CategoryRules = RuleSet{ActionManageChannels: RuleDeny}
	if !CanDeleteChannels(owner) {
		t.Fatal("owner deletes channels regardless of category rules")
	}
}

func TestSnapshotJSON(t *testing.T) {
	snap := Build(joined(modID))
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}
	actions, ok := wire["actions"].(map[string]any)
	if !ok || len(actions) != len(Actions()) {
		t.Fatalf("actions = %v", wire["actions"])
	}
	if wire["role"] != "moderator" || wire["powerLevel"] != float64(50) {
		t.Fatalf("wire = %v", wire)
	}

	var back Snapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != snap {
		t.Fatalf("decoded snapshot differs: %+v vs %+v", back, snap)
	}

	if err := json.Unmarshal([]byte(`{"actions":{"fly":true}}`), &back); err == nil {
		t.Fatal("unknown action key should fail to decode")
	}
}

func TestActionSetIsolation(t *testing.T) {
	snap := Build(joined(memberID))
	m := snap.Actions.Map()
	m[ActionPin] = true
	if snap.Can(ActionPin) {
		t.Fatal("mutating Map() leaked into the snapshot")
	}
}
