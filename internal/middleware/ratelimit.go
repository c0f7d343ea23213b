package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/api/transport"
	"github.com/fastygo/settlement/repository"
)

// KeyFunc derives the throttle bucket of a request.
type KeyFunc func(ctx *fasthttp.RequestCtx) string

// ByPathParamAndIP buckets requests by a router path parameter and the remote address.
func ByPathParamAndIP(name string) KeyFunc {
	return func(ctx *fasthttp.RequestCtx) string {
		v, _ := ctx.UserValue(name).(string)
		return v + ":" + ctx.RemoteIP().String()
	}
}

// RateLimit rejects requests over limit per window with 429. Throttle store errors
// let the request through.
func RateLimit(throttle repository.ThrottleRepository, key KeyFunc, limit int, window time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		if throttle == nil || limit <= 0 {
			return next
		}
		return func(ctx *fasthttp.RequestCtx) {
			bucket := key(ctx)
			checkCtx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
			allowed, remaining, err := throttle.Allow(checkCtx, bucket, limit, window)
			cancel()
			if err != nil {
				logger.Warn("rate limit check failed, allowing request", zap.String("bucket", bucket), zap.Error(err))
				next(ctx)
				return
			}

			ctx.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			ctx.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				logger.Warn("rate limit exceeded", zap.String("bucket", bucket))
				ctx.Response.Header.Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				reject(ctx, fasthttp.StatusTooManyRequests, transport.NewRetryable(codeRateLimited, "rate limit exceeded", nil))
				return
			}
			next(ctx)
		}
	}
}
