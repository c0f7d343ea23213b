package repository

import (
	"context"
	"time"

	"github.com/fastygo/settlement/domain"
)

type EventLedgerRepository interface {
	// Insert admits the event unless (provider, external_event_id) already exists.
	Insert(ctx context.Context, event *domain.ProviderEvent) (domain.AdmissionResult, error)
	MarkProcessed(ctx context.Context, provider, externalEventID string, contributionID *string, processedAt time.Time) error
}
