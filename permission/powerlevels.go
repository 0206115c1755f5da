package permission

import (
	"bytes"
	"encoding/json"
	"maps"
	"math"

	"maunium.net/go/mautrix/event"
)

// Defaults applied when a power-level field is missing or malformed.
const (
	DefaultUsersLevel  = 0
	DefaultEventsLevel = 0
	DefaultStateLevel  = 50
	DefaultInviteLevel = 0
	DefaultRedactLevel = 50
)

// Levels outside the range a JSON client can represent exactly are rejected.
const (
	maxSafePowerLevel = 1<<53 - 1
	minSafePowerLevel = -maxSafePowerLevel
)

// PowerLevels is the normalized content of a room's m.room.power_levels event.
type PowerLevels struct {
	Users         map[string]int `json:"users"`
	UsersDefault  int            `json:"users_default"`
	Events        map[string]int `json:"events"`
	EventsDefault int            `json:"events_default"`
	StateDefault  int            `json:"state_default"`
	Invite        int            `json:"invite"`
	Redact        int            `json:"redact"`
}

// DefaultPowerLevels returns the levels used when a room has no readable
// power-levels content.
func DefaultPowerLevels() PowerLevels {
	return PowerLevels{
		Users:         map[string]int{},
		UsersDefault:  DefaultUsersLevel,
		Events:        map[string]int{},
		EventsDefault: DefaultEventsLevel,
		StateDefault:  DefaultStateLevel,
		Invite:        DefaultInviteLevel,
		Redact:        DefaultRedactLevel,
	}
}

// ParsePowerLevels normalizes untrusted power-levels content. It accepts nil,
// a decoded JSON object, raw JSON bytes, a *event.PowerLevelsEventContent, or an
// already parsed PowerLevels. Each numeric field falls back to its default
// unless it is a finite integer; users and events keep only such entries.
// Input that is not an object yields DefaultPowerLevels.
func ParsePowerLevels(content any) PowerLevels {
	switch v := content.(type) {
	case PowerLevels:
		return v.clone()
	case *PowerLevels:
		if v == nil {
			return DefaultPowerLevels()
		}
		return v.clone()
	case *event.PowerLevelsEventContent:
		if v == nil {
			return DefaultPowerLevels()
		}
		return fromMautrix(v)
	case json.RawMessage:
		return parseRaw(v)
	case []byte:
		return parseRaw(v)
	case map[string]any:
		return fromObject(v)
	default:
		return DefaultPowerLevels()
	}
}

func parseRaw(data []byte) PowerLevels {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return DefaultPowerLevels()
	}
	return fromObject(obj)
}

func fromObject(obj map[string]any) PowerLevels {
	p := DefaultPowerLevels()
	if obj == nil {
		return p
	}
	p.Users = levelMap(obj["users"])
	p.Events = levelMap(obj["events"])
	p.UsersDefault = levelOr(obj["users_default"], DefaultUsersLevel)
	p.EventsDefault = levelOr(obj["events_default"], DefaultEventsLevel)
	p.StateDefault = levelOr(obj["state_default"], DefaultStateLevel)
	p.Invite = levelOr(obj["invite"], DefaultInviteLevel)
	p.Redact = levelOr(obj["redact"], DefaultRedactLevel)
	return p
}

func fromMautrix(c *event.PowerLevelsEventContent) PowerLevels {
	p := DefaultPowerLevels()
	for user, level := range c.Users {
		p.Users[string(user)] = level
	}
	maps.Copy(p.Events, c.Events)
	p.UsersDefault = c.UsersDefault
	p.EventsDefault = c.EventsDefault
	if c.StateDefaultPtr != nil {
		p.StateDefault = *c.StateDefaultPtr
	}
	if c.InvitePtr != nil {
		p.Invite = *c.InvitePtr
	}
	if c.RedactPtr != nil {
		p.Redact = *c.RedactPtr
	}
	return p
}

func levelMap(v any) map[string]int {
	out := map[string]int{}
	obj, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, raw := range obj {
		if n, ok := asLevel(raw); ok {
			out[k] = n
		}
	}
	return out
}

func levelOr(v any, fallback int) int {
	if n, ok := asLevel(v); ok {
		return n
	}
	return fallback
}

// asLevel accepts finite, integral numbers in the range JSON clients can
// represent exactly.
func asLevel(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			f = float64(i)
			break
		}
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > maxSafePowerLevel || f < minSafePowerLevel {
		return 0, false
	}
	return int(f), true
}

func (p PowerLevels) clone() PowerLevels {
	out := p
	out.Users = make(map[string]int, len(p.Users))
	maps.Copy(out.Users, p.Users)
	out.Events = make(map[string]int, len(p.Events))
	maps.Copy(out.Events, p.Events)
	return out
}

// Content renders p in the Matrix wire shape. ParsePowerLevels(p.Content())
// reproduces p.
func (p PowerLevels) Content() map[string]any {
	users := make(map[string]any, len(p.Users))
	for k, v := range p.Users {
		users[k] = v
	}
	events := make(map[string]any, len(p.Events))
	for k, v := range p.Events {
		events[k] = v
	}
	return map[string]any{
		"users":          users,
		"users_default":  p.UsersDefault,
		"events":         events,
		"events_default": p.EventsDefault,
		"state_default":  p.StateDefault,
		"invite":         p.Invite,
		"redact":         p.Redact,
	}
}

// UserLevel returns the level the room grants userID directly.
func (p PowerLevels) UserLevel(userID string) int {
	if level, ok := p.Users[userID]; ok {
		return level
	}
	return p.UsersDefault
}

// RequiredLevel returns the minimum power level needed for a.
func (p PowerLevels) RequiredLevel(a Action) int {
	switch a {
	case ActionSend:
		return p.eventLevel(event.EventMessage.Type, p.EventsDefault)
	case ActionReact:
		return p.eventLevel(event.EventReaction.Type, p.EventsDefault)
	case ActionPin:
		return p.eventLevel(event.StatePinnedEvents.Type, p.StateDefault)
	case ActionRedact:
		return p.Redact
	case ActionInvite:
		return p.Invite
	case ActionManageChannels:
		return p.StateDefault
	default:
		return p.StateDefault
	}
}

func (p PowerLevels) eventLevel(eventType string, fallback int) int {
	if level, ok := p.Events[eventType]; ok {
		return level
	}
	return fallback
}
