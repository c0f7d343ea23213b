package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/internal/infrastructure/buffer"
	"github.com/fastygo/settlement/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays parked audit records into Postgres on a cron schedule.
type BufferProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	audits  repository.AuditRepository
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	audits repository.AuditRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 72 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:   store,
		monitor: monitor,
		audits:  audits,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	bp.schedule("drain", schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("audit buffer drain failed", zap.Error(err))
		}
	})
	bp.schedule("cleanup", "@hourly", func() {
		removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention))
		if err != nil {
			bp.logger.Error("audit buffer cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			bp.logger.Warn("expired audit records dropped from buffer", zap.Int("count", removed))
		}
	})

	return bp
}

func (bp *BufferProcessor) schedule(job, spec string, fn func()) bool {
	if _, err := bp.cron.AddFunc(spec, fn); err != nil {
		bp.logger.Error("audit buffer job not scheduled",
			zap.String("job", job),
			zap.String("schedule", spec),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("audit buffer processor started")
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("audit buffer processor stopped")
}

// Drain replays one batch of buffered items synchronously.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping audit buffer drain (offline)")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := bp.processItem(ctx, item); err != nil {
			bp.logger.Error("failed to replay buffered audit record",
				zap.String("item_id", item.ID),
				zap.Int("retries", item.Retries),
				zap.Error(err))

			item.Retries++
			if item.Retries >= bp.cfg.MaxRetries {
				bp.logger.Warn("dropping audit record (max retries reached)", zap.String("item_id", item.ID))
				_ = bp.store.Remove(item)
				continue
			}
			if err := bp.store.Requeue(item); err != nil {
				bp.logger.Error("failed to requeue audit record", zap.Error(err))
			}
			continue
		}

		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to purge replayed audit record", zap.Error(err))
		}
	}
	return nil
}

// Park persists an item for a later drain.
func (bp *BufferProcessor) Park(_ context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch item.Entity {
	case buffer.EntityAudit:
		var record domain.AuditRecord
		if err := json.Unmarshal(item.Data, &record); err != nil {
			return err
		}
		return bp.audits.Append(ctx, &record)
	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}
