// Package matrixstate reads room membership and power levels from a Matrix
// homeserver for the keeper engine.
package matrixstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/permission"
)

// Compile-time interface check.
var _ keeper.RoomStateSource = (*Source)(nil)

// StateReader fetches a single state event. *mautrix.Client implements it.
type StateReader interface {
	StateEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, stateKey string, outContent interface{}) error
}

// Source is a keeper.RoomStateSource backed by the client-server API.
type Source struct {
	client StateReader
}

// New creates a Source reading state through client.
func New(client StateReader) *Source {
	return &Source{client: client}
}

// RoomState reads userID's membership and the room's power levels. Missing
// power levels fall back to protocol defaults; a missing member event means
// the user is not in the room.
func (s *Source) RoomState(ctx context.Context, roomID, userID string) (*keeper.RoomState, error) {
	var raw json.RawMessage
	err := s.client.StateEvent(ctx, id.RoomID(roomID), event.StatePowerLevels, "", &raw)
	switch {
	case err == nil:
	case errors.Is(err, mautrix.MNotFound):
		raw = nil
	default:
		return nil, fmt.Errorf("matrixstate: power levels of %s: %w", roomID, err)
	}

	membership, err := s.membership(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	return &keeper.RoomState{
		Membership:  membership,
		PowerLevels: permission.ParsePowerLevels(raw),
	}, nil
}

func (s *Source) membership(ctx context.Context, roomID, userID string) (permission.Membership, error) {
	var member event.MemberEventContent
	err := s.client.StateEvent(ctx, id.RoomID(roomID), event.StateMember, userID, &member)
	switch {
	case err == nil:
		return permission.ParseMembership(string(member.Membership)), nil
	case errors.Is(err, mautrix.MNotFound):
		return permission.MembershipLeave, nil
	default:
		return "", fmt.Errorf("matrixstate: membership of %s in %s: %w", userID, roomID, err)
	}
}
