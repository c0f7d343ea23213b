package repository

import (
	"context"

	"github.com/fastygo/settlement/domain"
)

type AuditRepository interface {
	Append(ctx context.Context, record *domain.AuditRecord) error
}
