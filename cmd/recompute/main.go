// Command recompute rebuilds campaign, reward and user aggregates from settled
// contributions. Pass campaign ids as arguments to limit the rebuild.
package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/fastygo/settlement/internal/config"
	pgInfra "github.com/fastygo/settlement/internal/infrastructure/postgres"
	"github.com/fastygo/settlement/internal/services"
	"github.com/fastygo/settlement/internal/services/lifecycle"
	"github.com/fastygo/settlement/pkg/logger"
	"github.com/fastygo/settlement/repository/postgres"
	"github.com/fastygo/settlement/usecase/audit"
)

func main() {
	flag.Parse()

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	recorder := audit.New(postgres.NewAuditRepository(pool), nil, zapLogger)
	engine := services.NewEngine(pool, recorder, cfg.Webhook, zapLogger)

	report, err := engine.RecomputeAggregates(ctx, flag.Args()...)
	if shutdownErr := manager.Shutdown(context.Background()); shutdownErr != nil {
		zapLogger.Error("shutdown error", zap.Error(shutdownErr))
	}
	if err != nil {
		zapLogger.Fatal("recompute failed", zap.Error(err))
	}
	for _, totals := range report.Campaigns {
		zapLogger.Info("campaign",
			zap.String("campaign_id", totals.CampaignID),
			zap.String("current_amount", totals.CurrentAmount.String()),
			zap.Int64("backer_count", totals.BackerCount),
		)
	}
}
