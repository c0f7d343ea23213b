package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/internal/infrastructure/monitor"
	"github.com/fastygo/settlement/pkg/httpcontext"
	"github.com/fastygo/settlement/usecase"
	"github.com/fastygo/settlement/usecase/settlement"
)

func newRequestCtx(body string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetBodyString(body)
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 40000}, nil)
	return ctx
}

func responseJSON(ctx *fasthttp.RequestCtx) gjson.Result {
	return gjson.ParseBytes(ctx.Response.Body())
}

type fakeSettler struct {
	received []settlement.Notification
	outcome  usecase.Outcome
	err      error

	pending []settlement.PendingRequest
	refunds []settlement.RefundRequest
	result  *domain.Contribution
}

func (f *fakeSettler) HandleWebhook(_ context.Context, n settlement.Notification) (usecase.Outcome, error) {
	f.received = append(f.received, n)
	return f.outcome, f.err
}

func (f *fakeSettler) MarkPending(_ context.Context, req settlement.PendingRequest) (*domain.Contribution, error) {
	f.pending = append(f.pending, req)
	return f.result, f.err
}

func (f *fakeSettler) Refund(_ context.Context, req settlement.RefundRequest) (*domain.Contribution, error) {
	f.refunds = append(f.refunds, req)
	return f.result, f.err
}

func newWebhookHandler(t *testing.T, settler *fakeSettler) *WebhookHandler {
	return NewWebhookHandler(settler, httpcontext.NewAdapter(time.Second), zaptest.NewLogger(t))
}

func TestWebhookAcknowledgesSettlement(t *testing.T) {
	settler := &fakeSettler{outcome: usecase.Outcome{Action: settlement.ActionSettled}}
	h := newWebhookHandler(t, settler)

	body := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`
	ctx := newRequestCtx(body)
	ctx.SetUserValue("provider", "stripe")
	ctx.Request.Header.Set("Stripe-Signature", "t=1,v1=abc")
	h.Receive(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	resp := responseJSON(ctx)
	assert.True(t, resp.Get("data.received").Bool())
	assert.Equal(t, settlement.ActionSettled, resp.Get("data.action").String())

	require.Len(t, settler.received, 1)
	n := settler.received[0]
	assert.Equal(t, "stripe", n.Provider)
	assert.Equal(t, "evt_1", n.EventID)
	assert.Equal(t, "payment_intent.succeeded", n.Type)
	assert.Equal(t, "t=1,v1=abc", n.Signature)
	assert.JSONEq(t, body, string(n.Payload))
	assert.NotEmpty(t, ctx.Response.Header.Peek("X-Request-ID"))
}

func TestWebhookRejectsMalformedBodies(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `{"id":`,
		"missing id":   `{"type":"payment_intent.succeeded"}`,
		"missing type": `{"id":"evt_1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			settler := &fakeSettler{}
			ctx := newRequestCtx(body)
			ctx.SetUserValue("provider", "stripe")
			newWebhookHandler(t, settler).Receive(ctx)

			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			assert.Equal(t, "INVALID", responseJSON(ctx).Get("code").String())
			assert.Empty(t, settler.received)
		})
	}
}

func TestWebhookErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"bad signature", domain.ErrSignatureInvalid, fasthttp.StatusBadRequest, "webhook signature invalid"},
		{"storage down", domain.WrapError(domain.ErrCodeUnavailable, "settlement storage failure", context.DeadlineExceeded),
			fasthttp.StatusServiceUnavailable, "settlement storage failure"},
		{"unexpected", assert.AnError, fasthttp.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := newRequestCtx(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
			ctx.SetUserValue("provider", "stripe")
			newWebhookHandler(t, &fakeSettler{err: tc.err}).Receive(ctx)

			assert.Equal(t, tc.status, ctx.Response.StatusCode())
			resp := responseJSON(ctx)
			assert.Equal(t, tc.message, resp.Get("error").String())
			assert.Equal(t, tc.status == fasthttp.StatusServiceUnavailable, resp.Get("retryable").Bool())
		})
	}
}

func withActor(ctx *fasthttp.RequestCtx, id, role string) {
	ctx.SetUserValue(httpcontext.UserValueActorID, id)
	ctx.SetUserValue(httpcontext.UserValueActorRole, role)
}

func TestRefundPassesActor(t *testing.T) {
	contributor := "u1"
	settler := &fakeSettler{result: &domain.Contribution{
		ID:            "c1",
		ContributorID: &contributor,
		CampaignID:    "camp1",
		Amount:        decimal.NewFromInt(500),
		Currency:      "USD",
		Status:        domain.StatusRefunded,
	}}
	h := NewContributionHandler(settler, httpcontext.NewAdapter(time.Second), zaptest.NewLogger(t))

	ctx := newRequestCtx(`{"reason":"duplicate charge"}`)
	ctx.SetUserValue("id", "c1")
	withActor(ctx, "admin-1", settlement.RoleAdmin)
	h.Refund(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.Len(t, settler.refunds, 1)
	assert.Equal(t, settlement.RefundRequest{ContributionID: "c1", ActorID: "admin-1", ActorRole: settlement.RoleAdmin}, settler.refunds[0])

	resp := responseJSON(ctx)
	assert.Equal(t, "REFUNDED", resp.Get("data.status").String())
	assert.Equal(t, "500.00", resp.Get("data.amount").String())
}

func TestContributionErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		actor  bool
		err    error
		status int
	}{
		{"anonymous", `{}`, false, nil, fasthttp.StatusUnauthorized},
		{"forbidden", `{}`, true, domain.ErrForbidden, fasthttp.StatusForbidden},
		{"not found", `{}`, true, domain.ErrContributionNotFound, fasthttp.StatusNotFound},
		{"not refundable", `{}`, true, domain.ErrRefundNotAllowed, fasthttp.StatusBadRequest},
		{"bad body", `{"reason":`, true, nil, fasthttp.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settler := &fakeSettler{err: tc.err}
			h := NewContributionHandler(settler, httpcontext.NewAdapter(time.Second), zaptest.NewLogger(t))
			ctx := newRequestCtx(tc.body)
			ctx.SetUserValue("id", "c1")
			if tc.actor {
				withActor(ctx, "u2", "user")
			}
			h.Refund(ctx)

			assert.Equal(t, tc.status, ctx.Response.StatusCode())
			if !tc.actor {
				assert.Empty(t, settler.refunds)
			}
		})
	}
}

func TestMarkPendingForwardsIntent(t *testing.T) {
	settler := &fakeSettler{result: &domain.Contribution{
		ID:         "c1",
		CampaignID: "camp1",
		Amount:     decimal.NewFromInt(25),
		Status:     domain.StatusPending,
		Payment:    domain.PaymentReference{Provider: "stripe", IntentID: "pi_9"},
	}}
	h := NewContributionHandler(settler, httpcontext.NewAdapter(time.Second), zaptest.NewLogger(t))

	ctx := newRequestCtx(`{"provider":"stripe","intent_id":"pi_9","metadata":{"contribution_id":"c1"}}`)
	ctx.SetUserValue("id", "c1")
	withActor(ctx, "u1", "user")
	h.MarkPending(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.Len(t, settler.pending, 1)
	assert.Equal(t, settlement.PendingRequest{
		ContributionID: "c1",
		Provider:       "stripe",
		IntentID:       "pi_9",
		Metadata:       map[string]string{"contribution_id": "c1"},
		ActorID:        "u1",
	}, settler.pending[0])
	assert.Equal(t, "PENDING", responseJSON(ctx).Get("data.status").String())
}

func TestMarkPendingIntentTakenIsConflict(t *testing.T) {
	settler := &fakeSettler{err: domain.ErrIntentConflict}
	h := NewContributionHandler(settler, httpcontext.NewAdapter(time.Second), zaptest.NewLogger(t))

	ctx := newRequestCtx(`{"provider":"stripe","intent_id":"pi_1"}`)
	ctx.SetUserValue("id", "c2")
	withActor(ctx, "u1", "user")
	h.MarkPending(ctx)

	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())
	assert.Equal(t, "CONFLICT", responseJSON(ctx).Get("code").String())
}

type fakeStatus monitor.Status

func (f fakeStatus) GetStatus() monitor.Status { return monitor.Status(f) }

func TestHealth(t *testing.T) {
	cases := []struct {
		name   string
		status monitor.Status
		code   int
		state  string
	}{
		{"all up", monitor.Status{PostgreSQL: true, Redis: true, Buffer: true}, fasthttp.StatusOK, "ok"},
		{"redis down", monitor.Status{PostgreSQL: true, Buffer: true}, fasthttp.StatusOK, "degraded"},
		{"postgres down", monitor.Status{Redis: true, Buffer: true}, fasthttp.StatusServiceUnavailable, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := newRequestCtx("")
			NewHealthHandler(fakeStatus(tc.status), nil, nil).Check(ctx)

			assert.Equal(t, tc.code, ctx.Response.StatusCode())
			resp := responseJSON(ctx)
			if tc.code == fasthttp.StatusOK {
				assert.Equal(t, tc.state, resp.Get("data.state").String())
				assert.Equal(t, tc.status.PostgreSQL, resp.Get("data.services.postgresql").Bool())
			} else {
				assert.Equal(t, "UNAVAILABLE", resp.Get("code").String())
				assert.False(t, resp.Get("meta.services.postgresql").Bool())
			}
		})
	}
}
