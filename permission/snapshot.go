package permission

import (
	"encoding/json"
	"fmt"
)

// Input is everything a snapshot depends on.
type Input struct {
	UserID        string
	Membership    Membership
	PowerLevels   PowerLevels
	Roles         RoleSettings
	CategoryRules RuleSet
	RoomRules     RuleSet
}

// ActionSet holds exactly one decision per recognized action.
type ActionSet struct {
	allowed [numActions]bool
}

// NewActionSet builds a set from decisions keyed by action. Unknown actions
// are ignored and missing ones are denied.
func NewActionSet(decisions map[Action]bool) ActionSet {
	var s ActionSet
	for a, ok := range decisions {
		if i := a.index(); i >= 0 {
			s.allowed[i] = ok
		}
	}
	return s
}

// Allowed reports the decision for a. Unknown actions are never allowed.
func (s ActionSet) Allowed(a Action) bool {
	i := a.index()
	return i >= 0 && s.allowed[i]
}

// Map returns the decisions keyed by action. The map is a fresh copy.
func (s ActionSet) Map() map[Action]bool {
	out := make(map[Action]bool, numActions)
	for i, a := range actionOrder {
		out[a] = s.allowed[i]
	}
	return out
}

// MarshalJSON encodes the set as an object with one key per action.
func (s ActionSet) MarshalJSON() ([]byte, error) { return json.Marshal(s.Map()) }

// UnmarshalJSON decodes an object keyed by action. Missing actions are false;
// unknown keys are rejected.
func (s *ActionSet) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out ActionSet
	for k, v := range m {
		i := Action(k).index()
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownAction, k)
		}
		out.allowed[i] = v
	}
	*s = out
	return nil
}

// Snapshot is the immutable result of resolving a user's permissions.
type Snapshot struct {
	Role       Role       `json:"role"`
	Membership Membership `json:"membership"`
	PowerLevel int        `json:"powerLevel"`
	Actions    ActionSet  `json:"actions"`
}

// Can reports whether the snapshot allows a.
func (s Snapshot) Can(a Action) bool { return s.Actions.Allowed(a) }

// Source names what settled a single action decision.
type Source string

const (
	SourceRoomRule     Source = "room_rule"
	SourceCategoryRule Source = "category_rule"
	SourcePowerLevel   Source = "power_level"
	SourceRoleGrant    Source = "role_grant"
	SourceNotJoined    Source = "not_joined"
	SourceInsufficient Source = "insufficient"
)

// Decision explains one action's outcome.
type Decision struct {
	Action        Action `json:"action"`
	Allowed       bool   `json:"allowed"`
	Source        Source `json:"source"`
	Rule          Rule   `json:"rule"`
	RequiredLevel int    `json:"requiredLevel"`
	PowerLevel    int    `json:"powerLevel"`
}

// Explain evaluates a single action and reports why it was allowed or not.
func Explain(in Input, a Action) Decision {
	level := EffectivePowerLevel(in.UserID, in.PowerLevels, in.Roles)
	return explain(in, a, level)
}

func explain(in Input, a Action, level int) Decision {
	d := Decision{
		Action:        a,
		RequiredLevel: in.PowerLevels.RequiredLevel(a),
		PowerLevel:    level,
		Rule:          ResolveRule(a, in.CategoryRules, in.RoomRules),
	}

	var base bool
	switch {
	case !in.Membership.Joined():
		d.Source = SourceNotJoined
	case level >= d.RequiredLevel:
		base, d.Source = true, SourcePowerLevel
	case in.Roles.Grants(in.UserID, a):
		base, d.Source = true, SourceRoleGrant
	default:
		d.Source = SourceInsufficient
	}

	d.Allowed = d.Rule.Apply(base)
	if d.Rule.Explicit() {
		if in.RoomRules.Get(a) != RuleInherit {
			d.Source = SourceRoomRule
		} else {
			d.Source = SourceCategoryRule
		}
	}
	return d
}

// Build resolves every action for in. Unrecognized membership values are
// reported as MembershipUnknown and behave like any other non-join state.
func Build(in Input) Snapshot {
	in.Membership = ParseMembership(string(in.Membership))
	level := EffectivePowerLevel(in.UserID, in.PowerLevels, in.Roles)
	snap := Snapshot{
		Role:       in.Roles.DeriveRole(in.Membership, level),
		Membership: in.Membership,
		PowerLevel: level,
	}
	for i, a := range actionOrder {
		snap.Actions.allowed[i] = explain(in, a, level).Allowed
	}
	return snap
}

// CanRedactMessage decides whether the snapshot's holder may redact a message
// written by authorID. Owners and moderators with the redact action may
// redact anything; everyone else only their own messages.
func CanRedactMessage(s Snapshot, authorID, currentUserID string) bool {
	if !s.Membership.Joined() {
		return false
	}
	if s.Can(ActionRedact) && s.Role.Privileged() {
		return true
	}
	return authorID == currentUserID
}

// CanDeleteChannels decides whether the user may delete channels and
// categories. Structure changes are space-wide, so channel rules are ignored.
func CanDeleteChannels(in Input) bool {
	in.CategoryRules = nil
	in.RoomRules = nil
	return Build(in).Can(ActionManageChannels)
}
