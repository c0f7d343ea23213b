package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

const contributionColumns = `id, contributor_id, campaign_id, reward_id, amount::text, currency, status,
	COALESCE(provider, ''), COALESCE(provider_intent_id, ''), COALESCE(provider_charge_id, ''),
	provider_metadata, paid_at, created_at, updated_at`

type contributionRepository struct {
	db DB
}

// NewContributionRepository returns a Postgres-backed ContributionRepository.
func NewContributionRepository(db DB) repository.ContributionRepository {
	return &contributionRepository{db: db}
}

func (r *contributionRepository) GetByID(ctx context.Context, id string) (*domain.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE id = $1`
	return scanContribution(conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *contributionRepository) GetByIntent(ctx context.Context, provider, intentID string) (*domain.Contribution, error) {
	if intentID == "" {
		return nil, domain.ErrContributionNotFound
	}
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE provider = $1 AND provider_intent_id = $2`
	return scanContribution(conn(ctx, r.db).QueryRow(ctx, query, provider, intentID))
}

func (r *contributionRepository) Transition(
	ctx context.Context,
	id string,
	from []domain.ContributionStatus,
	to domain.ContributionStatus,
	patch repository.TransitionPatch,
) (*domain.Contribution, bool, error) {
	query := `
	UPDATE contributions
	SET status = $2,
		provider = COALESCE(NULLIF($4, ''), provider),
		provider_intent_id = COALESCE(NULLIF(provider_intent_id, ''), NULLIF($5, '')),
		provider_charge_id = COALESCE(NULLIF($6, ''), provider_charge_id),
		provider_metadata = COALESCE(provider_metadata, '{}'::jsonb) || COALESCE($7::jsonb, '{}'::jsonb),
		paid_at = COALESCE($8, paid_at),
		updated_at = NOW()
	WHERE id = $1 AND status = ANY($3::text[])
	RETURNING ` + contributionColumns

	var payment domain.PaymentReference
	if patch.Payment != nil {
		payment = *patch.Payment
	}
	var paidAt interface{}
	if patch.PaidAt != nil {
		paidAt = *patch.PaidAt
	}

	updated, err := scanContribution(conn(ctx, r.db).QueryRow(ctx, query,
		id,
		string(to),
		statusStrings(from),
		payment.Provider,
		payment.IntentID,
		payment.ChargeID,
		marshalMap(payment.Metadata),
		paidAt,
	))
	if err == nil {
		return updated, true, nil
	}
	if isUniqueViolation(err) {
		return nil, false, domain.WrapError(domain.ErrCodeConflict, domain.ErrIntentConflict.Message, err)
	}
	if !errors.Is(err, domain.ErrContributionNotFound) {
		return nil, false, err
	}

	// The guard did not match; report what is stored so the caller can tell
	// a missing row from a status that already moved on.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func scanContribution(row scanner) (*domain.Contribution, error) {
	var (
		c        domain.Contribution
		amount   string
		status   string
		metadata []byte
		paidAt   *time.Time
	)

	if err := row.Scan(
		&c.ID,
		&c.ContributorID,
		&c.CampaignID,
		&c.RewardID,
		&amount,
		&c.Currency,
		&status,
		&c.Payment.Provider,
		&c.Payment.IntentID,
		&c.Payment.ChargeID,
		&metadata,
		&paidAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContributionNotFound
		}
		return nil, err
	}

	parsed, err := parseDecimal(amount)
	if err != nil {
		return nil, err
	}
	c.Amount = parsed
	c.Status = domain.ContributionStatus(status)
	c.Payment.Metadata = unmarshalMap(metadata)
	c.PaidAt = paidAt

	return &c, nil
}
