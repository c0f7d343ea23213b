package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

type auditRepository struct {
	db DB
}

// NewAuditRepository returns the append-only Postgres audit log.
func NewAuditRepository(db DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, record *domain.AuditRecord) error {
	if record == nil || record.EntityID == "" || record.Action == "" {
		return domain.ErrInvalidPayload
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Touch()

	const query = `
	INSERT INTO audit_logs (id, entity_type, entity_id, action, actor_id, source, before, after, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		record.ID,
		record.EntityType,
		record.EntityID,
		record.Action,
		record.ActorID,
		record.Source,
		[]byte(record.Before),
		[]byte(record.After),
		record.CreatedAt,
	)
	// A replayed record from the fallback buffer may already be stored.
	if isUniqueViolation(err) {
		return nil
	}
	return err
}
