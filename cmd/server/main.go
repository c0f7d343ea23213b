package main

import (
	"context"
	"log"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/settlement/api/handler"
	"github.com/fastygo/settlement/internal/config"
	"github.com/fastygo/settlement/internal/infrastructure/buffer"
	"github.com/fastygo/settlement/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/settlement/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/settlement/internal/infrastructure/redis"
	"github.com/fastygo/settlement/internal/infrastructure/telemetry"
	"github.com/fastygo/settlement/internal/middleware"
	"github.com/fastygo/settlement/internal/router"
	"github.com/fastygo/settlement/internal/services"
	"github.com/fastygo/settlement/internal/services/lifecycle"
	"github.com/fastygo/settlement/pkg/httpcontext"
	"github.com/fastygo/settlement/pkg/logger"
	"github.com/fastygo/settlement/repository"
	"github.com/fastygo/settlement/repository/postgres"
	redisRepo "github.com/fastygo/settlement/repository/redis"
	"github.com/fastygo/settlement/usecase/audit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Service:     cfg.AppName,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	shutdownTracing, err := telemetry.Setup(appCtx, cfg.Tracing, cfg.AppName, cfg.Environment, zapLogger)
	if err != nil {
		zapLogger.Fatal("tracing setup failed", zap.Error(err))
	}
	manager.Register("tracing", shutdownTracing)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	// Redis only backs webhook rate limiting; the service runs without it.
	var (
		redisCmd redislib.Cmdable
		throttle repository.ThrottleRepository
	)
	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Warn("redis unavailable, webhook rate limiting disabled", zap.Error(err))
	} else {
		redisCmd = redisClient
		throttle = redisRepo.NewThrottleRepository(redisClient)
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "audit", cfg.Buffer.MaxSize)
	if err != nil {
		zapLogger.Fatal("failed to open audit buffer", zap.Error(err))
	}
	manager.Register("audit_buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(pool, redisCmd, bufferStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	auditRepo := postgres.NewAuditRepository(pool)

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		auditRepo,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  100,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	manager.Register("audit_buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	recorder := audit.New(auditRepo, services.NewAuditBridge(bufferProcessor), zapLogger)
	engine := services.NewEngine(pool, recorder, cfg.Webhook, zapLogger)

	zapLogger.Info("webhook signature policy",
		zap.Int("providers_with_secret", len(cfg.Webhook.Secrets)),
		zap.Bool("enforced", cfg.Webhook.EnforceSignature),
	)
	if len(cfg.Webhook.Secrets) == 0 {
		zapLogger.Warn("no webhook secrets configured, provider signatures are not verified")
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Webhook:      apiHandler.NewWebhookHandler(engine, ctxAdapter, zapLogger),
		Contribution: apiHandler.NewContributionHandler(engine, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	mws := router.Middlewares{
		Auth: middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger),
	}
	if cfg.RateLimit.Enabled {
		mws.RateLimit = middleware.RateLimit(throttle, middleware.ByPathParamAndIP("provider"), cfg.RateLimit.Limit, cfg.RateLimit.Window, zapLogger)
	}
	r := router.New(handlers, mws)

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxConnsPerIP:      cfg.HTTP.MaxConn,
		MaxRequestBodySize: cfg.HTTP.MaxBodySize,
		Name:               cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
