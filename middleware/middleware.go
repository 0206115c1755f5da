// Package middleware provides HTTP permission middleware for keeper.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/permission"
)

// Params names the route parameters that locate the checked scope.
type Params struct {
	Space    string
	Room     string
	Category string
}

// DefaultParams reads ":spaceId", ":roomId" and ":categoryId".
var DefaultParams = Params{Space: "spaceId", Room: "roomId", Category: "categoryId"}

// Require enforces a single action for the authenticated user in the space
// and room named by the route's DefaultParams. Room state is read from the
// engine's RoomStateSource.
func Require(eng *keeper.Engine, action permission.Action) forge.Middleware {
	return RequireIn(eng, action, DefaultParams)
}

// RequireIn is Require with custom route parameter names.
func RequireIn(eng *keeper.Engine, action permission.Action, p Params) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			req, ok := snapshotRequest(ctx, p)
			if !ok {
				return denyResponse(ctx)
			}
			err := eng.Enforce(ctx.Context(), &keeper.CheckRequest{SnapshotRequest: req, Action: action})
			if err != nil {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if ANY of the actions is allowed.
func RequireAny(eng *keeper.Engine, actions ...permission.Action) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			req, ok := snapshotRequest(ctx, DefaultParams)
			if !ok {
				return denyResponse(ctx)
			}
			res, err := eng.Snapshot(ctx.Context(), &req)
			if err != nil {
				return denyResponse(ctx)
			}
			for _, a := range actions {
				if res.Can(a) {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if ALL actions are allowed.
func RequireAll(eng *keeper.Engine, actions ...permission.Action) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			req, ok := snapshotRequest(ctx, DefaultParams)
			if !ok {
				return denyResponse(ctx)
			}
			res, err := eng.Snapshot(ctx.Context(), &req)
			if err != nil {
				return denyResponse(ctx)
			}
			for _, a := range actions {
				if !res.Can(a) {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// snapshotRequest resolves the caller and scope. Anonymous requests and
// requests outside a space are rejected.
func snapshotRequest(ctx forge.Context, p Params) (keeper.SnapshotRequest, bool) {
	userID := forge.UserIDFromContext(ctx.Context())
	spaceID := ctx.Param(p.Space)
	if userID == "" || spaceID == "" {
		return keeper.SnapshotRequest{}, false
	}
	req := keeper.SnapshotRequest{SpaceID: spaceID, UserID: userID}
	if p.Room != "" {
		req.RoomID = ctx.Param(p.Room)
	}
	if p.Category != "" {
		req.CategoryID = ctx.Param(p.Category)
	}
	return req, true
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
