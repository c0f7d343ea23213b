package settlement

import (
	"context"
	"time"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

// Ledger is the idempotency gate for provider events.
type Ledger struct {
	events repository.EventLedgerRepository
	now    func() time.Time
}

func NewLedger(events repository.EventLedgerRepository) *Ledger {
	return &Ledger{events: events, now: time.Now}
}

// Admit inserts the event; a key conflict means another delivery already owns it.
func (l *Ledger) Admit(ctx context.Context, event *domain.ProviderEvent) (domain.AdmissionResult, error) {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = l.now().UTC()
	}
	return l.events.Insert(ctx, event)
}

// MarkProcessed stamps the event once processing finished, for observability only.
func (l *Ledger) MarkProcessed(ctx context.Context, event *domain.ProviderEvent, contributionID *string) error {
	at := l.now().UTC()
	event.ProcessedAt = &at
	event.ContributionID = contributionID
	return l.events.MarkProcessed(ctx, event.Provider, event.ExternalEventID, contributionID, at)
}
