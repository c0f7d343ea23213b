package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

type eventLedgerRepository struct {
	db DB
}

// NewEventLedgerRepository returns the Postgres ledger of provider events.
func NewEventLedgerRepository(db DB) repository.EventLedgerRepository {
	return &eventLedgerRepository{db: db}
}

// Insert relies on the unique index over (provider, external_event_id): the row is
// written first and a conflict is the duplicate signal. No existence check precedes it.
func (r *eventLedgerRepository) Insert(ctx context.Context, event *domain.ProviderEvent) (domain.AdmissionResult, error) {
	if event == nil || event.Provider == "" || event.ExternalEventID == "" {
		return domain.AlreadyProcessed, domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO provider_events (provider, external_event_id, event_type, payload, signature_valid, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider, external_event_id) DO NOTHING
	RETURNING id
	`

	payload := []byte(event.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	var id int64
	err := conn(ctx, r.db).QueryRow(ctx, query,
		event.Provider,
		event.ExternalEventID,
		event.Type,
		payload,
		event.SignatureValid,
		event.ReceivedAt,
	).Scan(&id)
	switch {
	case err == nil:
		return domain.Admitted, nil
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		return domain.AlreadyProcessed, nil
	default:
		return domain.AlreadyProcessed, err
	}
}

func (r *eventLedgerRepository) MarkProcessed(ctx context.Context, provider, externalEventID string, contributionID *string, processedAt time.Time) error {
	const query = `
	UPDATE provider_events
	SET processed_at = $3,
		contribution_id = COALESCE($4, contribution_id)
	WHERE provider = $1 AND external_event_id = $2 AND processed_at IS NULL
	`
	_, err := conn(ctx, r.db).Exec(ctx, query, provider, externalEventID, processedAt, contributionID)
	return err
}
