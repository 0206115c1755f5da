package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if isInvalid(err) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, keeper.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, keeper.ErrSettingsNotFound) ||
		errors.Is(err, keeper.ErrOverridesNotFound) ||
		errors.Is(err, keeper.ErrAuditEventNotFound)
}

func isInvalid(err error) bool {
	return errors.Is(err, keeper.ErrMissingSpace) ||
		errors.Is(err, keeper.ErrMissingUser) ||
		errors.Is(err, keeper.ErrMissingScope) ||
		errors.Is(err, keeper.ErrMissingEvent) ||
		errors.Is(err, keeper.ErrUntrustedState) ||
		errors.Is(err, keeper.ErrUnknownAction) ||
		errors.Is(err, keeper.ErrInvalidRule)
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// callerID is the authenticated user making the request.
func callerID(ctx forge.Context) string {
	return forge.UserIDFromContext(ctx.Context())
}

// subjectID prefers an explicit user id and falls back to the caller.
func subjectID(ctx forge.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return callerID(ctx)
}

// authorize checks that the caller may change the space's permissions when
// writes are guarded. Rule overrides never take part in this decision and
// room state is always read from the homeserver.
func (a *API) authorize(ctx forge.Context, spaceID, roomID string) error {
	if !a.authorizeWrites {
		return nil
	}
	return a.eng.AuthorizeConfigWrite(ctx.Context(), spaceID, roomID, callerID(ctx))
}
