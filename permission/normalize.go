package permission

import (
	"bytes"
	"encoding/json"
	"maps"
	"regexp"
	"strings"

	"github.com/xraph/keeper/id"
)

// Fallbacks for custom role definitions that omit or mangle a field.
const (
	DefaultRoleName  = "Role"
	DefaultRoleColor = "#8b93a7"
)

// Audit retention bounds, in days.
const (
	DefaultAuditRetentionDays = 30
	MinAuditRetentionDays     = 7
	MaxAuditRetentionDays     = 365
)

const (
	minRoleLevel = 0
	maxRoleLevel = 100
)

var roleColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// NormalizeRoleSettings turns untrusted settings content into RoleSettings.
// Thresholds are clamped to 0..100 and fall back to 100/50/0; definitions and
// assignments are cleaned with NormalizeRoleDefinitions and
// NormalizeRoleAssignments.
func NormalizeRoleSettings(raw any) RoleSettings {
	obj, _ := generic(raw).(map[string]any)
	out := RoleSettings{
		AdminLevel:     clampLevel(obj["adminLevel"], DefaultAdminLevel),
		ModeratorLevel: clampLevel(obj["moderatorLevel"], DefaultModeratorLevel),
		DefaultLevel:   clampLevel(obj["defaultLevel"], DefaultMemberLevel),
	}
	out.Definitions = NormalizeRoleDefinitions(obj["definitions"])
	out.MemberRoleIDs = NormalizeRoleAssignments(obj["memberRoleIds"], out.Definitions)
	return out
}

// NormalizeRoleDefinitions cleans a list of role definitions. Entries that are
// not objects are dropped, missing ids are generated, and later duplicates of
// an id are dropped.
func NormalizeRoleDefinitions(raw any) []RoleDefinition {
	list, _ := generic(raw).([]any)
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]RoleDefinition, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := RoleDefinition{
			ID:          trimmed(obj["id"]),
			Name:        trimmed(obj["name"]),
			Color:       trimmed(obj["color"]),
			PowerLevel:  clampLevel(obj["powerLevel"], minRoleLevel),
			Permissions: normalizeGrants(obj["permissions"]),
		}
		if d.ID == "" {
			d.ID = id.NewRoleID().String()
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		if d.Name == "" {
			d.Name = DefaultRoleName
		}
		if !roleColorPattern.MatchString(d.Color) {
			d.Color = DefaultRoleColor
		}
		out = append(out, d)
	}
	return out
}

// NormalizeRoleAssignments keeps, per user, the distinct string role ids that
// name one of defs. Users left without roles are dropped.
func NormalizeRoleAssignments(raw any, defs []RoleDefinition) map[string][]string {
	obj, _ := generic(raw).(map[string]any)
	if len(obj) == 0 || len(defs) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		known[d.ID] = struct{}{}
	}
	out := make(map[string][]string, len(obj))
	for userID, v := range obj {
		var list []any
		switch ids := v.(type) {
		case []any:
			list = ids
		case []string:
			for _, s := range ids {
				list = append(list, s)
			}
		default:
			continue
		}
		seen := make(map[string]struct{}, len(list))
		var ids []string
		for _, item := range list {
			roleID, ok := item.(string)
			if !ok {
				continue
			}
			if _, ok := known[roleID]; !ok {
				continue
			}
			if _, dup := seen[roleID]; dup {
				continue
			}
			seen[roleID] = struct{}{}
			ids = append(ids, roleID)
		}
		if len(ids) > 0 {
			out[userID] = ids
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeGrants(raw any) map[Action]bool {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[Action]bool, len(obj))
	for k, v := range obj {
		b, ok := v.(bool)
		if !ok || !Action(k).Valid() {
			continue
		}
		out[Action(k)] = b
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// OverridesVersion is the schema version written into Overrides.
const OverridesVersion = 1

// DefaultCategoryID is used for rooms that do not belong to a named category.
const DefaultCategoryID = "channels"

// Overrides holds the category and room rule sets of one space.
type Overrides struct {
	Version    int                `json:"version"`
	Categories map[string]RuleSet `json:"categories"`
	Rooms      map[string]RuleSet `json:"rooms"`
}

// EmptyOverrides returns overrides with no rules.
func EmptyOverrides() Overrides {
	return Overrides{
		Version:    OverridesVersion,
		Categories: map[string]RuleSet{},
		Rooms:      map[string]RuleSet{},
	}
}

// NormalizeRuleSet keeps the allow and deny entries for known actions.
// It returns nil when nothing survives.
func NormalizeRuleSet(raw any) RuleSet {
	obj, _ := generic(raw).(map[string]any)
	out := make(RuleSet, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok || !Action(k).Valid() {
			continue
		}
		if r := Rule(s); r.Explicit() {
			out[Action(k)] = r
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeOverrides turns untrusted overrides content into compacted
// Overrides: only explicit rules survive and empty rule sets are dropped.
func NormalizeOverrides(raw any) Overrides {
	obj, _ := generic(raw).(map[string]any)
	out := EmptyOverrides()
	normalizeSets(obj["categories"], out.Categories)
	normalizeSets(obj["rooms"], out.Rooms)
	return out
}

func normalizeSets(raw any, dst map[string]RuleSet) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for key, v := range obj {
		if key == "" {
			continue
		}
		if rs := NormalizeRuleSet(v); rs != nil {
			dst[key] = rs
		}
	}
}

// Rules returns the rule sets that apply to roomID inside categoryID.
// An empty categoryID means DefaultCategoryID.
func (o Overrides) Rules(categoryID, roomID string) (category, room RuleSet) {
	if categoryID == "" {
		categoryID = DefaultCategoryID
	}
	return maps.Clone(o.Categories[categoryID]), maps.Clone(o.Rooms[roomID])
}

// WithCategoryRule returns a copy of o with the rule for a in categoryID set.
// RuleInherit removes the entry.
func (o Overrides) WithCategoryRule(categoryID string, a Action, r Rule) Overrides {
	out := o.Clone()
	setRule(out.Categories, categoryID, a, r)
	return out
}

// WithRoomRule returns a copy of o with the rule for a in roomID set.
// RuleInherit removes the entry.
func (o Overrides) WithRoomRule(roomID string, a Action, r Rule) Overrides {
	out := o.Clone()
	setRule(out.Rooms, roomID, a, r)
	return out
}

func setRule(sets map[string]RuleSet, key string, a Action, r Rule) {
	if key == "" || !a.Valid() {
		return
	}
	rs := sets[key]
	if r.Explicit() {
		if rs == nil {
			rs = RuleSet{}
		}
		rs[a] = r
		sets[key] = rs
		return
	}
	delete(rs, a)
	if len(rs) == 0 {
		delete(sets, key)
	}
}

// Clone returns a deep copy of o with empty rule sets dropped.
func (o Overrides) Clone() Overrides {
	out := EmptyOverrides()
	for k, rs := range o.Categories {
		if len(rs) > 0 {
			out.Categories[k] = maps.Clone(rs)
		}
	}
	for k, rs := range o.Rooms {
		if len(rs) > 0 {
			out.Rooms[k] = maps.Clone(rs)
		}
	}
	return out
}

// ClampAuditRetentionDays bounds an audit retention period to 7..365 days.
// Non-positive values select the 30-day default.
func ClampAuditRetentionDays(days int) int {
	if days <= 0 {
		return DefaultAuditRetentionDays
	}
	return min(max(days, MinAuditRetentionDays), MaxAuditRetentionDays)
}

// generic converts raw content into the shapes produced by decoding JSON into
// an empty interface. Typed values are round-tripped through JSON.
func generic(raw any) any {
	switch v := raw.(type) {
	case nil, map[string]any, []any, string, bool, json.Number, float64:
		return v
	case json.RawMessage:
		return decodeGeneric(v)
	case []byte:
		return decodeGeneric(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return decodeGeneric(data)
	}
}

func decodeGeneric(data []byte) any {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

func trimmed(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func clampLevel(v any, fallback int) int {
	n, ok := asLevel(v)
	if !ok {
		return fallback
	}
	return min(max(n, minRoleLevel), maxRoleLevel)
}
