package api

import (
	"github.com/xraph/keeper"
)

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// SnapshotRequest is the request body for resolving a snapshot.
type SnapshotRequest struct {
	SpaceID    string            `json:"space_id" description:"Space (Matrix room) ID"`
	RoomID     string            `json:"room_id,omitempty" description:"Room ID; empty for space-level questions"`
	CategoryID string            `json:"category_id,omitempty" description:"Category the room belongs to"`
	UserID     string            `json:"user_id,omitempty" description:"User to resolve; defaults to the caller"`
	State      *keeper.RoomState `json:"state,omitempty" description:"Room state; read from the homeserver when omitted"`
}

// CheckRequest is the request body for a single-action check.
type CheckRequest struct {
	SnapshotRequest
	Action string `json:"action" description:"Action (send, react, pin, redact, invite, manageChannels)"`
}

// CanRedactRequest asks whether the user may redact a message.
type CanRedactRequest struct {
	SnapshotRequest
	AuthorID string `json:"author_id" description:"Sender of the message"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// SpaceRequest is the path parameter naming a space.
type SpaceRequest struct {
	SpaceID string `path:"spaceId" description:"Space ID"`
}

// SaveRolesRequest is the body for replacing a space's role settings.
// Values are normalized: out-of-range levels are clamped and invalid
// definitions dropped.
type SaveRolesRequest struct {
	AdminLevel     any            `json:"adminLevel,omitempty" description:"Owner threshold (default 100)"`
	ModeratorLevel any            `json:"moderatorLevel,omitempty" description:"Moderator threshold (default 50)"`
	DefaultLevel   any            `json:"defaultLevel,omitempty" description:"Level every member starts with (default 0)"`
	Definitions    []any          `json:"definitions,omitempty" description:"Custom role definitions"`
	MemberRoleIDs  map[string]any `json:"memberRoleIds,omitempty" description:"Role ids assigned per user"`
}

func (r *SaveRolesRequest) raw() map[string]any {
	out := map[string]any{}
	if r.AdminLevel != nil {
		out["adminLevel"] = r.AdminLevel
	}
	if r.ModeratorLevel != nil {
		out["moderatorLevel"] = r.ModeratorLevel
	}
	if r.DefaultLevel != nil {
		out["defaultLevel"] = r.DefaultLevel
	}
	if r.Definitions != nil {
		out["definitions"] = r.Definitions
	}
	if r.MemberRoleIDs != nil {
		out["memberRoleIds"] = r.MemberRoleIDs
	}
	return out
}

// AssignRolesRequest replaces the roles assigned to one member.
type AssignRolesRequest struct {
	RoleIDs []string `json:"roleIds" description:"Role ids; empty removes every assignment"`
}

// ──────────────────────────────────────────────────
// Override requests
// ──────────────────────────────────────────────────

// SetRuleRequest sets one action's rule on a category or room.
type SetRuleRequest struct {
	Action string `json:"action" description:"Action the rule applies to"`
	Rule   string `json:"rule" description:"allow, deny or inherit (clears the rule)"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// RecordRedactionRequest records a moderator or self redaction.
type RecordRedactionRequest struct {
	RoomID     string `json:"room_id" description:"Room the message was sent in"`
	CategoryID string `json:"category_id,omitempty" description:"Category of the room"`
	AuthorID   string `json:"author_id" description:"Sender of the redacted message"`
	EventID    string `json:"event_id" description:"Redacted event ID"`
}

// ListAuditRequest holds query parameters for listing audit events.
type ListAuditRequest struct {
	ActorID string `query:"actor_id" description:"Filter by actor"`
	Action  string `query:"action" description:"Filter by audit action"`
	After   string `query:"after" description:"Only events after this RFC3339 time"`
	Before  string `query:"before" description:"Only events before this RFC3339 time"`
	Limit   int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset  int    `query:"offset" description:"Results to skip"`
}
