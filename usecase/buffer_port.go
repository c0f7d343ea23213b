package usecase

import (
	"context"

	"github.com/fastygo/settlement/domain"
)

// AuditBuffer parks audit records that could not reach primary storage so they can be replayed later.
type AuditBuffer interface {
	BufferAudit(ctx context.Context, record *domain.AuditRecord) error
}
