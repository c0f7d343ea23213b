package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/internal/infrastructure/buffer"
	"github.com/fastygo/settlement/usecase"
)

// AuditBridge parks audit records the recorder could not append.
type AuditBridge struct {
	processor *BufferProcessor
}

func NewAuditBridge(processor *BufferProcessor) *AuditBridge {
	return &AuditBridge{processor: processor}
}

func (b *AuditBridge) BufferAudit(ctx context.Context, record *domain.AuditRecord) error {
	if b.processor == nil || record == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	priority := buffer.PriorityNormal
	if record.Source == domain.SourceWebhook {
		priority = buffer.PriorityHigh
	}
	item := buffer.Item{
		ID:        record.ID,
		Entity:    buffer.EntityAudit,
		Operation: buffer.OperationAppend,
		Data:      payload,
		Priority:  priority,
		Timestamp: record.CreatedAt,
	}
	return b.processor.Park(ctx, item)
}

var _ usecase.AuditBuffer = (*AuditBridge)(nil)
