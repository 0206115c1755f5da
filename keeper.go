// Package keeper resolves what members of a Matrix-backed chat space may do.
//
// The Engine combines a room's membership and power levels with the space's
// custom role settings and its category and room rule overrides, and answers
// with a permission snapshot: the member's derived role, effective power
// level and one decision per action (send, react, pin, redact, invite,
// manageChannels). It also owns the moderation audit trail written when
// rules, roles or messages change. It is tenant-scoped by default via
// forge.Scope.
//
//	eng, err := keeper.NewEngine(
//	    keeper.WithStore(memory.New()),
//	    keeper.WithRoomState(matrixstate.New(client)),
//	)
//	res, err := eng.Snapshot(ctx, &keeper.SnapshotRequest{
//	    SpaceID: "!space:example.org",
//	    RoomID:  "!general:example.org",
//	    UserID:  "@alice:example.org",
//	})
//	if res.Can(permission.ActionPin) { ... }
package keeper

import (
	"context"
	"encoding/json"

	"github.com/xraph/keeper/permission"
)

// RoomState is the Matrix state a snapshot is computed from.
type RoomState struct {
	Membership  permission.Membership  `json:"membership"`
	PowerLevels permission.PowerLevels `json:"power_levels"`
}

// UnmarshalJSON accepts untrusted room state: unknown memberships become
// "unknown" and power levels are normalized field by field.
func (s *RoomState) UnmarshalJSON(data []byte) error {
	var raw struct {
		Membership  string          `json:"membership"`
		PowerLevels json.RawMessage `json:"power_levels"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Membership = permission.ParseMembership(raw.Membership)
	s.PowerLevels = permission.ParsePowerLevels(raw.PowerLevels)
	return nil
}

// RoomStateSource reads a user's membership and a room's power levels.
type RoomStateSource interface {
	RoomState(ctx context.Context, roomID, userID string) (*RoomState, error)
}

// SnapshotRequest identifies whose permissions to resolve and where.
// When State is nil the engine reads it from its RoomStateSource, using
// RoomID or, for space-level questions, SpaceID.
type SnapshotRequest struct {
	SpaceID    string     `json:"space_id"`
	RoomID     string     `json:"room_id,omitempty"`
	CategoryID string     `json:"category_id,omitempty"`
	UserID     string     `json:"user_id"`
	State      *RoomState `json:"state,omitempty"`
}

// stateRoom is the room whose state applies to the request.
func (r *SnapshotRequest) stateRoom() string {
	if r.RoomID != "" {
		return r.RoomID
	}
	return r.SpaceID
}

// SnapshotResult is a resolved snapshot plus evaluation metadata.
type SnapshotResult struct {
	permission.Snapshot
	SpaceID    string `json:"space_id"`
	RoomID     string `json:"room_id,omitempty"`
	UserID     string `json:"user_id"`
	Cached     bool   `json:"cached"`
	EvalTimeNs int64  `json:"eval_time_ns"`
}

// CheckRequest asks about a single action.
type CheckRequest struct {
	SnapshotRequest
	Action permission.Action `json:"action"`
}

// CheckResult is the outcome of a single-action check.
type CheckResult struct {
	Allowed    bool                `json:"allowed"`
	Role       permission.Role     `json:"role"`
	Decision   permission.Decision `json:"decision"`
	EvalTimeNs int64               `json:"eval_time_ns"`
}

// RedactRequest asks whether UserID may redact a message by AuthorID.
type RedactRequest struct {
	SnapshotRequest
	AuthorID string `json:"author_id"`
	EventID  string `json:"event_id,omitempty"`
}

// RuleChange sets one action's rule on a category or a room.
type RuleChange struct {
	SpaceID string            `json:"space_id"`
	ScopeID string            `json:"scope_id"`
	ActorID string            `json:"actor_id"`
	Action  permission.Action `json:"action"`
	Rule    permission.Rule   `json:"rule"`
}
