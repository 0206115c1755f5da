package permission

import (
	"maps"
	"slices"
)

// Thresholds used when a space has no role settings.
const (
	DefaultAdminLevel     = 100
	DefaultModeratorLevel = 50
	DefaultMemberLevel    = 0
)

// RoleDefinition is a custom, space-defined role that members can be assigned.
type RoleDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Color       string          `json:"color"`
	PowerLevel  int             `json:"powerLevel"`
	Permissions map[Action]bool `json:"permissions,omitempty"`
}

// Grants reports whether the definition explicitly grants a.
// An explicit false is not a revocation; it only withholds the grant.
func (d RoleDefinition) Grants(a Action) bool { return d.Permissions[a] }

// RoleSettings is the role section of a space's server settings.
type RoleSettings struct {
	AdminLevel     int                 `json:"adminLevel"`
	ModeratorLevel int                 `json:"moderatorLevel"`
	DefaultLevel   int                 `json:"defaultLevel"`
	Definitions    []RoleDefinition    `json:"definitions,omitempty"`
	MemberRoleIDs  map[string][]string `json:"memberRoleIds,omitempty"`
}

// DefaultRoleSettings returns the thresholds used for a space without settings.
func DefaultRoleSettings() RoleSettings {
	return RoleSettings{
		AdminLevel:     DefaultAdminLevel,
		ModeratorLevel: DefaultModeratorLevel,
		DefaultLevel:   DefaultMemberLevel,
	}
}

// Clone returns a deep copy of s.
func (s RoleSettings) Clone() RoleSettings {
	out := s
	if s.Definitions != nil {
		out.Definitions = make([]RoleDefinition, len(s.Definitions))
		for i, d := range s.Definitions {
			d.Permissions = maps.Clone(d.Permissions)
			out.Definitions[i] = d
		}
	}
	if s.MemberRoleIDs != nil {
		out.MemberRoleIDs = make(map[string][]string, len(s.MemberRoleIDs))
		for user, ids := range s.MemberRoleIDs {
			out.MemberRoleIDs[user] = slices.Clone(ids)
		}
	}
	return out
}

// Definition looks up a role definition by id. The first definition with a
// given id wins.
func (s RoleSettings) Definition(roleID string) (RoleDefinition, bool) {
	for _, d := range s.Definitions {
		if d.ID == roleID {
			return d, true
		}
	}
	return RoleDefinition{}, false
}

// AssignedRoles returns the definitions assigned to userID in assignment
// order. Unknown role ids and repeated ids are skipped.
func (s RoleSettings) AssignedRoles(userID string) []RoleDefinition {
	ids := s.MemberRoleIDs[userID]
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]RoleDefinition, 0, len(ids))
	for _, roleID := range ids {
		if _, dup := seen[roleID]; dup {
			continue
		}
		seen[roleID] = struct{}{}
		if d, ok := s.Definition(roleID); ok {
			out = append(out, d)
		}
	}
	return out
}

// AssignedPowerLevel is the level userID gets from the space's role settings:
// the default level raised to the highest assigned custom role.
func (s RoleSettings) AssignedPowerLevel(userID string) int {
	level := s.DefaultLevel
	for _, d := range s.AssignedRoles(userID) {
		if d.PowerLevel > level {
			level = d.PowerLevel
		}
	}
	return level
}

// Grants reports whether any role assigned to userID explicitly grants a.
func (s RoleSettings) Grants(userID string, a Action) bool {
	for _, d := range s.AssignedRoles(userID) {
		if d.Grants(a) {
			return true
		}
	}
	return false
}

// DeriveRole maps membership and effective power level to a coarse role.
func (s RoleSettings) DeriveRole(m Membership, powerLevel int) Role {
	switch {
	case !m.Joined():
		return RoleGuest
	case powerLevel >= s.AdminLevel:
		return RoleOwner
	case powerLevel >= s.ModeratorLevel:
		return RoleModerator
	default:
		return RoleMember
	}
}

// EffectivePowerLevel is the larger of the room-granted level and the level
// granted by the space's role settings.
func EffectivePowerLevel(userID string, pl PowerLevels, roles RoleSettings) int {
	return max(pl.UserLevel(userID), roles.AssignedPowerLevel(userID))
}

// WithMemberRoles returns a copy of s with userID assigned exactly roleIDs.
// Ids that name no definition and repeats are dropped; an empty result
// removes the user's assignment.
func (s RoleSettings) WithMemberRoles(userID string, roleIDs []string) RoleSettings {
	out := s.Clone()
	var kept []string
	for _, roleID := range roleIDs {
		if slices.Contains(kept, roleID) {
			continue
		}
		if _, ok := s.Definition(roleID); ok {
			kept = append(kept, roleID)
		}
	}
	if len(kept) == 0 {
		delete(out.MemberRoleIDs, userID)
		if len(out.MemberRoleIDs) == 0 {
			out.MemberRoleIDs = nil
		}
		return out
	}
	if out.MemberRoleIDs == nil {
		out.MemberRoleIDs = make(map[string][]string, 1)
	}
	out.MemberRoleIDs[userID] = kept
	return out
}
