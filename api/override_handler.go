package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/permission"
)

func (a *API) registerOverrideRoutes(router forge.Router) error {
	g := router.Group("/v1/spaces", forge.WithGroupTags("overrides"))

	if err := g.GET("/:spaceId/overrides", a.getOverrides,
		forge.WithSummary("Get rule overrides"),
		forge.WithDescription("Returns the space's category and room rule overrides."),
		forge.WithOperationID("getOverrides"),
		forge.WithResponseSchema(http.StatusOK, "Overrides", permission.Overrides{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/:spaceId/categories/:categoryId/rules", a.setCategoryRule,
		forge.WithSummary("Set category rule"),
		forge.WithDescription("Sets or clears one action's rule for every room in a category."),
		forge.WithOperationID("setCategoryRule"),
		forge.WithRequestSchema(SetRuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Stored overrides", &override.SpaceOverrides{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.PUT("/:spaceId/rooms/:roomId/rules", a.setRoomRule,
		forge.WithSummary("Set room rule"),
		forge.WithDescription("Sets or clears one action's rule for a single room."),
		forge.WithOperationID("setRoomRule"),
		forge.WithRequestSchema(SetRuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Stored overrides", &override.SpaceOverrides{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getOverrides(ctx forge.Context, _ *SpaceRequest) (*permission.Overrides, error) {
	o, err := a.eng.Overrides(ctx.Context(), ctx.Param("spaceId"))
	if err != nil {
		return nil, mapError(err)
	}
	return &o, ctx.JSON(http.StatusOK, o)
}

func (a *API) setCategoryRule(ctx forge.Context, req *SetRuleRequest) (*override.SpaceOverrides, error) {
	spaceID, categoryID := ctx.Param("spaceId"), ctx.Param("categoryId")
	if err := a.authorize(ctx, spaceID, ""); err != nil {
		return nil, mapError(err)
	}

	o, err := a.eng.SetCategoryRule(ctx.Context(), toRuleChange(ctx, spaceID, categoryID, req))
	if err != nil {
		return nil, mapError(err)
	}
	return o, ctx.JSON(http.StatusOK, o)
}

func (a *API) setRoomRule(ctx forge.Context, req *SetRuleRequest) (*override.SpaceOverrides, error) {
	spaceID, roomID := ctx.Param("spaceId"), ctx.Param("roomId")
	if err := a.authorize(ctx, spaceID, roomID); err != nil {
		return nil, mapError(err)
	}

	o, err := a.eng.SetRoomRule(ctx.Context(), toRuleChange(ctx, spaceID, roomID, req))
	if err != nil {
		return nil, mapError(err)
	}
	return o, ctx.JSON(http.StatusOK, o)
}

func toRuleChange(ctx forge.Context, spaceID, scopeID string, req *SetRuleRequest) *keeper.RuleChange {
	return &keeper.RuleChange{
		SpaceID: spaceID,
		ScopeID: scopeID,
		ActorID: callerID(ctx),
		Action:  permission.Action(req.Action),
		Rule:    permission.Rule(req.Rule),
	}
}
