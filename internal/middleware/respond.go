package middleware

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/settlement/api/transport"
)

const codeRateLimited = "RATE_LIMITED"

func reject(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}
