// Package permission resolves what a member of a Matrix-backed space may do.
//
// The package is pure: it turns a user's membership, the room's power levels,
// the space's custom role settings and its category/room rule overrides into
// an immutable Snapshot holding the derived role, the effective power level
// and one boolean per recognized Action. Nothing here performs I/O, logs or
// returns an error for malformed input; malformed input degrades to defaults.
//
//	snap := permission.Build(permission.Input{
//	    UserID:      "@alice:example.org",
//	    Membership:  permission.MembershipJoin,
//	    PowerLevels: permission.ParsePowerLevels(rawContent),
//	    Roles:       settings,
//	})
//	if snap.Can(permission.ActionPin) { ... }
package permission

import (
	"errors"
	"fmt"

	"maunium.net/go/mautrix/event"
)

var (
	// ErrUnknownAction is returned by ParseAction for names outside the action set.
	ErrUnknownAction = errors.New("permission: unknown action")

	// ErrUnknownRule is returned by ParseRule for values other than allow, deny or inherit.
	ErrUnknownRule = errors.New("permission: unknown rule")
)

// Action is a user capability gated by the engine.
type Action string

const (
	ActionSend           Action = "send"
	ActionReact          Action = "react"
	ActionPin            Action = "pin"
	ActionRedact         Action = "redact"
	ActionInvite         Action = "invite"
	ActionManageChannels Action = "manageChannels"
)

// numActions is the size of the closed action set.
const numActions = 6

var actionOrder = [numActions]Action{
	ActionSend,
	ActionReact,
	ActionPin,
	ActionRedact,
	ActionInvite,
	ActionManageChannels,
}

// Actions returns every recognized action in canonical order.
func Actions() []Action {
	out := make([]Action, numActions)
	copy(out, actionOrder[:])
	return out
}

func (a Action) index() int {
	for i, x := range actionOrder {
		if x == a {
			return i
		}
	}
	return -1
}

// Valid reports whether a belongs to the recognized action set.
func (a Action) Valid() bool { return a.index() >= 0 }

// ParseAction converts a wire string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Role is the coarse role derived from membership and power level.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
	RoleGuest     Role = "guest"
)

// Rank orders roles from guest (0) to owner (3).
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Privileged reports whether r is owner or moderator.
func (r Role) Privileged() bool { return r == RoleOwner || r == RoleModerator }

// Membership is a user's Matrix membership state in a room.
type Membership string

const (
	MembershipJoin    = Membership(event.MembershipJoin)
	MembershipInvite  = Membership(event.MembershipInvite)
	MembershipLeave   = Membership(event.MembershipLeave)
	MembershipBan     = Membership(event.MembershipBan)
	MembershipKnock   = Membership(event.MembershipKnock)
	MembershipUnknown Membership = "unknown"
)

// ParseMembership maps a Matrix membership string to a Membership.
// Anything unrecognized, including the empty string, becomes MembershipUnknown.
func ParseMembership(s string) Membership {
	switch m := Membership(s); m {
	case MembershipJoin, MembershipInvite, MembershipLeave, MembershipBan, MembershipKnock:
		return m
	default:
		return MembershipUnknown
	}
}

// Joined reports whether m is the join state.
func (m Membership) Joined() bool { return m == MembershipJoin }

// Rule is an override applied to a single action at category or room level.
type Rule string

const (
	RuleInherit Rule = "inherit"
	RuleAllow   Rule = "allow"
	RuleDeny    Rule = "deny"
)

// ParseRule converts a wire string into a Rule.
func ParseRule(s string) (Rule, error) {
	switch r := Rule(s); r {
	case RuleInherit, RuleAllow, RuleDeny:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRule, s)
	}
}

// Explicit reports whether r is allow or deny.
func (r Rule) Explicit() bool { return r == RuleAllow || r == RuleDeny }

// Apply combines r with the base decision: deny forces false, allow forces
// true and anything else passes base through.
func (r Rule) Apply(base bool) bool {
	switch r {
	case RuleDeny:
		return false
	case RuleAllow:
		return true
	default:
		return base
	}
}

// RuleSet holds the rules one category or room sets for individual actions.
// A missing entry means inherit.
type RuleSet map[Action]Rule

// Get returns the explicit rule for a, or RuleInherit.
func (rs RuleSet) Get(a Action) Rule {
	if r := rs[a]; r.Explicit() {
		return r
	}
	return RuleInherit
}

// ResolveRule picks the effective rule for an action: an explicit room rule
// wins, then an explicit category rule, otherwise inherit.
func ResolveRule(a Action, category, room RuleSet) Rule {
	if r := room.Get(a); r != RuleInherit {
		return r
	}
	return category.Get(a)
}
