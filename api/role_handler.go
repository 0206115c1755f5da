package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper/permission"
	"github.com/xraph/keeper/settings"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1/spaces", forge.WithGroupTags("roles"))

	if err := g.GET("/:spaceId/roles", a.getRoles,
		forge.WithSummary("Get role settings"),
		forge.WithDescription("Returns the space's role thresholds, custom roles and assignments."),
		forge.WithOperationID("getRoleSettings"),
		forge.WithResponseSchema(http.StatusOK, "Role settings", permission.RoleSettings{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/:spaceId/roles", a.saveRoles,
		forge.WithSummary("Save role settings"),
		forge.WithDescription("Normalizes and replaces the space's role settings."),
		forge.WithOperationID("saveRoleSettings"),
		forge.WithRequestSchema(SaveRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Stored settings", &settings.Settings{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.PUT("/:spaceId/members/:userId/roles", a.assignRoles,
		forge.WithSummary("Assign member roles"),
		forge.WithDescription("Replaces the custom roles assigned to a member. Unknown role ids are dropped."),
		forge.WithOperationID("assignMemberRoles"),
		forge.WithRequestSchema(AssignRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Stored settings", &settings.Settings{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getRoles(ctx forge.Context, _ *SpaceRequest) (*permission.RoleSettings, error) {
	roles, err := a.eng.RoleSettings(ctx.Context(), ctx.Param("spaceId"))
	if err != nil {
		return nil, mapError(err)
	}
	return &roles, ctx.JSON(http.StatusOK, roles)
}

func (a *API) saveRoles(ctx forge.Context, req *SaveRolesRequest) (*settings.Settings, error) {
	spaceID := ctx.Param("spaceId")
	if err := a.authorize(ctx, spaceID, ""); err != nil {
		return nil, mapError(err)
	}

	st, err := a.eng.SaveRoleSettings(ctx.Context(), spaceID, callerID(ctx), req.raw())
	if err != nil {
		return nil, mapError(err)
	}
	return st, ctx.JSON(http.StatusOK, st)
}

func (a *API) assignRoles(ctx forge.Context, req *AssignRolesRequest) (*settings.Settings, error) {
	spaceID := ctx.Param("spaceId")
	if err := a.authorize(ctx, spaceID, ""); err != nil {
		return nil, mapError(err)
	}

	st, err := a.eng.AssignRoles(ctx.Context(), spaceID, callerID(ctx), ctx.Param("userId"), req.RoleIDs)
	if err != nil {
		return nil, mapError(err)
	}
	return st, ctx.JSON(http.StatusOK, st)
}
