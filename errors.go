package keeper

import (
	"errors"

	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/permission"
	"github.com/xraph/keeper/settings"
)

var (
	// ErrNoStore is returned by NewEngine when no store is configured.
	ErrNoStore = errors.New("keeper: store is required")

	// ErrAccessDenied is returned when an enforced check fails.
	ErrAccessDenied = errors.New("keeper: access denied")

	// ErrNoRoomState is returned when a request carries no room state and the
	// engine has no RoomStateSource.
	ErrNoRoomState = errors.New("keeper: no room state available")

	// ErrMissingUser is returned when a request names no user.
	ErrMissingUser = errors.New("keeper: user id is required")

	// ErrMissingSpace is returned when a request names no space.
	ErrMissingSpace = errors.New("keeper: space id is required")

	// ErrMissingScope is returned when a rule change names no category or room.
	ErrMissingScope = errors.New("keeper: category or room id is required")

	// ErrMissingEvent is returned when a redaction names no event.
	ErrMissingEvent = errors.New("keeper: event id is required")

	// ErrUntrustedState is returned when a write is authorized against room
	// state supplied by the caller instead of the RoomStateSource.
	ErrUntrustedState = errors.New("keeper: room state must come from the room state source")

	// ErrSettingsNotFound is returned when a space has no stored role settings.
	ErrSettingsNotFound = settings.ErrNotFound

	// ErrOverridesNotFound is returned when a space has no stored overrides.
	ErrOverridesNotFound = override.ErrNotFound

	// ErrAuditEventNotFound is returned when an audit event cannot be found.
	ErrAuditEventNotFound = audit.ErrNotFound

	// ErrUnknownAction is returned for action names outside the action set.
	ErrUnknownAction = permission.ErrUnknownAction

	// ErrInvalidRule is returned for rules other than allow, deny or inherit.
	ErrInvalidRule = permission.ErrUnknownRule
)
