package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/api/transport"
	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/pkg/httpcontext"
	"github.com/fastygo/settlement/usecase/settlement"
)

// ContributionSettler exposes the API-triggered contribution transitions.
type ContributionSettler interface {
	MarkPending(ctx context.Context, req settlement.PendingRequest) (*domain.Contribution, error)
	Refund(ctx context.Context, req settlement.RefundRequest) (*domain.Contribution, error)
}

type ContributionHandler struct {
	baseHandler
	settler ContributionSettler
}

func NewContributionHandler(settler ContributionSettler, adapter *httpcontext.Adapter, logger *zap.Logger) *ContributionHandler {
	return &ContributionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		settler:     settler,
	}
}

// @Summary Attach provider intent to a contribution
// @Tags contributions
// @Router /api/v1/contributions/{id}/pending [post]
func (h *ContributionHandler) MarkPending(ctx *fasthttp.RequestCtx) {
	var req transport.PendingRequest
	if err := h.decodeJSON(ctx, &req); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	actor, ok := httpcontext.ActorFrom(stdCtx)
	if !ok {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	contribution, err := h.settler.MarkPending(stdCtx, settlement.PendingRequest{
		ContributionID: contributionID(ctx),
		Provider:       req.Provider,
		IntentID:       req.IntentID,
		Metadata:       req.Metadata,
		ActorID:        actor.ID,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewContribution(contribution))
}

// @Summary Refund a succeeded contribution
// @Tags contributions
// @Router /api/v1/contributions/{id}/refund [post]
func (h *ContributionHandler) Refund(ctx *fasthttp.RequestCtx) {
	var req transport.RefundRequest
	if err := h.decodeJSON(ctx, &req); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	actor, ok := httpcontext.ActorFrom(stdCtx)
	if !ok {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	id := contributionID(ctx)
	contribution, err := h.settler.Refund(stdCtx, settlement.RefundRequest{
		ContributionID: id,
		ActorID:        actor.ID,
		ActorRole:      actor.Role,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if req.Reason != "" {
		h.logger.Info("refund reason", zap.String("contribution_id", id), zap.String("reason", req.Reason))
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewContribution(contribution))
}

func contributionID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}
