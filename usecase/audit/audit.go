package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/pkg/logger"
	"github.com/fastygo/settlement/repository"
	"github.com/fastygo/settlement/usecase"
)

// Recorder appends audit records on a best-effort basis. Record never fails the caller.
type Recorder struct {
	records repository.AuditRepository
	buffer  usecase.AuditBuffer
	logger  *zap.Logger
}

func New(records repository.AuditRepository, buffer usecase.AuditBuffer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		records: records,
		buffer:  buffer,
		logger:  logger,
	}
}

// Record appends one record. Storage failures are parked in the buffer, and buffer failures are logged.
func (r *Recorder) Record(ctx context.Context, record domain.AuditRecord) {
	if r == nil {
		return
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Touch()
	log := logger.WithRequestID(ctx, r.logger).With(
		zap.String("entity_type", record.EntityType),
		zap.String("entity_id", record.EntityID),
		zap.String("action", record.Action),
	)

	if r.records != nil {
		err := r.records.Append(ctx, &record)
		if err == nil {
			return
		}
		log.Warn("audit append failed", zap.Error(err))
	}

	if r.buffer == nil {
		log.Error("audit record dropped (no buffer configured)")
		return
	}
	if err := r.buffer.BufferAudit(ctx, &record); err != nil {
		log.Error("audit record dropped", zap.Error(err))
		return
	}
	log.Warn("audit record buffered")
}

// RecordAll appends records in order.
func (r *Recorder) RecordAll(ctx context.Context, records []domain.AuditRecord) {
	for _, record := range records {
		r.Record(ctx, record)
	}
}
