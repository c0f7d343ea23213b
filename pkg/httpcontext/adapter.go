package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/settlement/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
	KeyActorID    Key = "actor_id"
	KeyActorRole  Key = "actor_role"
)

// User values set on the fasthttp request by the auth middleware.
const (
	UserValueActorID   = "actor_id"
	UserValueActorRole = "actor_role"
)

// Actor is the authenticated caller of an API request.
type Actor struct {
	ID   string
	Role string
}

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach creates a context with timeout derived from the adapter and enriches it with
// request metadata and the authenticated actor, if any.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := getRequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}
	if id, ok := ctx.UserValue(UserValueActorID).(string); ok && id != "" {
		stdCtx = context.WithValue(stdCtx, KeyActorID, id)
		role, _ := ctx.UserValue(UserValueActorRole).(string)
		stdCtx = context.WithValue(stdCtx, KeyActorRole, role)
	}

	return stdCtx, cancel
}

// ActorFrom returns the actor attached by Attach. ok is false for anonymous requests.
func ActorFrom(ctx context.Context) (Actor, bool) {
	id, _ := ctx.Value(KeyActorID).(string)
	if id == "" {
		return Actor{}, false
	}
	role, _ := ctx.Value(KeyActorRole).(string)
	return Actor{ID: id, Role: role}, true
}

func getRequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := string(ctx.Request.Header.Peek("X-Request-ID")); strings.TrimSpace(header) != "" {
		return header
	}
	return uuid.NewString()
}
