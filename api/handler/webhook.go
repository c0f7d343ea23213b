package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/api/transport"
	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/pkg/httpcontext"
	"github.com/fastygo/settlement/usecase"
	"github.com/fastygo/settlement/usecase/settlement"
)

var errMissingEnvelope = errors.New("event id and type are required")

// Signature headers, in lookup order.
var signatureHeaders = []string{"Webhook-Signature", "Stripe-Signature"}

// WebhookSettler settles provider notifications.
type WebhookSettler interface {
	HandleWebhook(ctx context.Context, n settlement.Notification) (usecase.Outcome, error)
}

type WebhookHandler struct {
	baseHandler
	settler WebhookSettler
}

func NewWebhookHandler(settler WebhookSettler, adapter *httpcontext.Adapter, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		baseHandler: newBaseHandler(adapter, logger),
		settler:     settler,
	}
}

// @Summary Receive payment provider notification
// @Tags webhooks
// @Router /webhooks/{provider} [post]
func (h *WebhookHandler) Receive(ctx *fasthttp.RequestCtx) {
	provider, _ := ctx.UserValue("provider").(string)
	body := ctx.PostBody()

	if !gjson.ValidBytes(body) {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}
	envelope := gjson.GetManyBytes(body, "id", "type")
	if envelope[0].String() == "" || envelope[1].String() == "" {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message, errMissingEnvelope))
		return
	}

	n := settlement.Notification{
		Provider:  provider,
		EventID:   envelope[0].String(),
		Type:      envelope[1].String(),
		Payload:   append([]byte(nil), body...),
		Signature: signature(ctx),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	outcome, err := h.settler.HandleWebhook(stdCtx, n)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.WebhookAck{Received: true, Action: outcome.Action})
}

func signature(ctx *fasthttp.RequestCtx) string {
	for _, name := range signatureHeaders {
		if v := ctx.Request.Header.Peek(name); len(v) > 0 {
			return string(v)
		}
	}
	return ""
}
