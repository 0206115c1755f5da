package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/audit"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1/spaces", forge.WithGroupTags("audit"))

	if err := g.POST("/:spaceId/redactions", a.recordRedaction,
		forge.WithSummary("Record redaction"),
		forge.WithDescription("Checks the redaction policy and records a message.redact audit event."),
		forge.WithOperationID("recordRedaction"),
		forge.WithRequestSchema(RecordRedactionRequest{}),
		forge.WithCreatedResponse(&audit.Event{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/:spaceId/audit", a.listAudit,
		forge.WithSummary("Query audit log"),
		forge.WithDescription("Returns the space's moderation audit events, newest first."),
		forge.WithOperationID("listAuditEvents"),
		forge.WithRequestSchema(ListAuditRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit events", []*audit.Event{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) recordRedaction(ctx forge.Context, req *RecordRedactionRequest) (*audit.Event, error) {
	if req.EventID == "" {
		return nil, forge.BadRequest("event_id is required")
	}

	ev, err := a.eng.RecordRedaction(ctx.Context(), &keeper.RedactRequest{
		SnapshotRequest: keeper.SnapshotRequest{
			SpaceID:    ctx.Param("spaceId"),
			RoomID:     req.RoomID,
			CategoryID: req.CategoryID,
			UserID:     callerID(ctx),
		},
		AuthorID: req.AuthorID,
		EventID:  req.EventID,
	})
	if err != nil {
		return nil, mapError(err)
	}
	if ev == nil {
		// Allowed, but the audit trail is disabled.
		return nil, ctx.NoContent(http.StatusNoContent)
	}
	return ev, ctx.JSON(http.StatusCreated, ev)
}

func (a *API) listAudit(ctx forge.Context, req *ListAuditRequest) ([]*audit.Event, error) {
	filter := &audit.QueryFilter{
		SpaceID: ctx.Param("spaceId"),
		ActorID: req.ActorID,
		Action:  req.Action,
		Limit:   defaultLimit(req.Limit),
		Offset:  req.Offset,
	}

	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	events, err := a.eng.AuditLog(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	return events, ctx.JSON(http.StatusOK, events)
}
