package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/api/transport"
	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/pkg/httpcontext"
)

// Middleware wraps a fasthttp handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// JWTAuth accepts HS256 bearer tokens carrying user_id and role claims and exposes
// them as request user values.
func JWTAuth(secret, issuer string, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				reject(ctx, fasthttp.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), domain.ErrUnauthorized.Message, nil))
				return
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err == nil && issuer != "" && !claims.VerifyIssuer(issuer, true) {
				err = fmt.Errorf("unexpected issuer")
			}
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				reject(ctx, fasthttp.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), domain.ErrUnauthorized.Message, nil))
				return
			}

			userID, _ := claims["user_id"].(string)
			if userID == "" {
				logger.Warn("jwt token without user_id claim")
				reject(ctx, fasthttp.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), domain.ErrUnauthorized.Message, nil))
				return
			}
			role, _ := claims["role"].(string)
			ctx.SetUserValue(httpcontext.UserValueActorID, userID)
			ctx.SetUserValue(httpcontext.UserValueActorRole, role)

			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
