package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/settlement/api/handler"
	"github.com/fastygo/settlement/internal/middleware"
)

type Handlers struct {
	Webhook      *apiHandler.WebhookHandler
	Contribution *apiHandler.ContributionHandler
	Health       *apiHandler.HealthHandler
}

type Middlewares struct {
	Auth      middleware.Middleware
	RateLimit middleware.Middleware
}

func New(handlers Handlers, mw Middlewares) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Provider notifications authenticate by signature, not JWT.
	r.POST("/webhooks/{provider}", chain(handlers.Webhook.Receive, mw.RateLimit))

	// Protected routes
	r.POST("/api/v1/contributions/{id}/pending", chain(handlers.Contribution.MarkPending, mw.Auth))
	r.POST("/api/v1/contributions/{id}/refund", chain(handlers.Contribution.Refund, mw.Auth))

	return r
}

func chain(h fasthttp.RequestHandler, mws ...middleware.Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
