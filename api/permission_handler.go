package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/permission"
)

func (a *API) registerPermissionRoutes(router forge.Router) error {
	g := router.Group("/v1/permissions", forge.WithGroupTags("permissions"))

	if err := g.POST("/snapshot", a.snapshot,
		forge.WithSummary("Resolve permission snapshot"),
		forge.WithDescription("Returns the user's role, effective power level and a decision for every action."),
		forge.WithOperationID("permissionSnapshot"),
		forge.WithRequestSchema(SnapshotRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Snapshot", keeper.SnapshotResult{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/check", a.check,
		forge.WithSummary("Check one action"),
		forge.WithDescription("Resolves a single action and explains what settled it."),
		forge.WithOperationID("permissionCheck"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", keeper.CheckResult{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/can-redact", a.canRedact,
		forge.WithSummary("Can redact message"),
		forge.WithDescription("Decides whether the user may redact a message by the given author."),
		forge.WithOperationID("permissionCanRedact"),
		forge.WithRequestSchema(CanRedactRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision", DecisionResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/can-delete-channels", a.canDeleteChannels,
		forge.WithSummary("Can delete channels"),
		forge.WithDescription("Decides whether the user may delete channels and categories. Rule overrides do not apply."),
		forge.WithOperationID("permissionCanDeleteChannels"),
		forge.WithRequestSchema(SnapshotRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision", DecisionResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) snapshot(ctx forge.Context, req *SnapshotRequest) (*keeper.SnapshotResult, error) {
	result, err := a.eng.Snapshot(ctx.Context(), toSnapshotRequest(ctx, req))
	if err != nil {
		return nil, mapError(err)
	}
	return result, ctx.JSON(http.StatusOK, result)
}

func (a *API) check(ctx forge.Context, req *CheckRequest) (*keeper.CheckResult, error) {
	if req.Action == "" {
		return nil, forge.BadRequest("action is required")
	}
	result, err := a.eng.Check(ctx.Context(), &keeper.CheckRequest{
		SnapshotRequest: *toSnapshotRequest(ctx, &req.SnapshotRequest),
		Action:          permission.Action(req.Action),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return result, ctx.JSON(http.StatusOK, result)
}

func (a *API) canRedact(ctx forge.Context, req *CanRedactRequest) (*DecisionResponse, error) {
	ok, err := a.eng.CanRedact(ctx.Context(), &keeper.RedactRequest{
		SnapshotRequest: *toSnapshotRequest(ctx, &req.SnapshotRequest),
		AuthorID:        req.AuthorID,
	})
	if err != nil {
		return nil, mapError(err)
	}
	resp := &DecisionResponse{Allowed: ok}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) canDeleteChannels(ctx forge.Context, req *SnapshotRequest) (*DecisionResponse, error) {
	ok, err := a.eng.CanDeleteChannels(ctx.Context(), toSnapshotRequest(ctx, req))
	if err != nil {
		return nil, mapError(err)
	}
	resp := &DecisionResponse{Allowed: ok}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toSnapshotRequest(ctx forge.Context, req *SnapshotRequest) *keeper.SnapshotRequest {
	return &keeper.SnapshotRequest{
		SpaceID:    req.SpaceID,
		RoomID:     req.RoomID,
		CategoryID: req.CategoryID,
		UserID:     subjectID(ctx, req.UserID),
		State:      req.State,
	}
}
