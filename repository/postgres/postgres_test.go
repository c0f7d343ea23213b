package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

var contributionRow = []string{
	"id", "contributor_id", "campaign_id", "reward_id", "amount", "currency", "status",
	"provider", "provider_intent_id", "provider_charge_id", "provider_metadata", "paid_at", "created_at", "updated_at",
}

func TestLedgerInsertAdmits(t *testing.T) {
	mock := newMock(t)
	repo := NewEventLedgerRepository(mock)

	mock.ExpectQuery("INSERT INTO provider_events").
		WithArgs("stripe", "evt_1", "payment_intent.succeeded", []byte(`{"id":"evt_1"}`), true, pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(7)))

	result, err := repo.Insert(context.Background(), &domain.ProviderEvent{
		Provider:        "stripe",
		ExternalEventID: "evt_1",
		Type:            "payment_intent.succeeded",
		Payload:         []byte(`{"id":"evt_1"}`),
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Admitted, result)
}

func TestLedgerInsertConflictIsDuplicate(t *testing.T) {
	mock := newMock(t)
	repo := NewEventLedgerRepository(mock)

	mock.ExpectQuery("INSERT INTO provider_events").
		WithArgs("stripe", "evt_1", "payment_intent.succeeded", pgxmock.AnyArg(), false, pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id"}))

	result, err := repo.Insert(context.Background(), &domain.ProviderEvent{
		Provider:        "stripe",
		ExternalEventID: "evt_1",
		Type:            "payment_intent.succeeded",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AlreadyProcessed, result)
}

func TestLedgerInsertUniqueViolationIsDuplicate(t *testing.T) {
	mock := newMock(t)
	repo := NewEventLedgerRepository(mock)

	mock.ExpectQuery("INSERT INTO provider_events").
		WithArgs("stripe", "evt_1", "", pgxmock.AnyArg(), false, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	result, err := repo.Insert(context.Background(), &domain.ProviderEvent{Provider: "stripe", ExternalEventID: "evt_1"})
	require.NoError(t, err)
	assert.Equal(t, domain.AlreadyProcessed, result)
}

func TestLedgerInsertRequiresKey(t *testing.T) {
	repo := NewEventLedgerRepository(newMock(t))
	_, err := repo.Insert(context.Background(), &domain.ProviderEvent{Provider: "stripe"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestMarkProcessedOnlyStampsOnce(t *testing.T) {
	mock := newMock(t)
	repo := NewEventLedgerRepository(mock)
	contributionID := "c1"
	at := time.Now()

	mock.ExpectExec(`processed_at IS NULL`).
		WithArgs("stripe", "evt_1", at, &contributionID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkProcessed(context.Background(), "stripe", "evt_1", &contributionID, at))
}

func TestTransitionApplied(t *testing.T) {
	mock := newMock(t)
	repo := NewContributionRepository(mock)
	paidAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`WHERE id = \$1 AND status = ANY\(\$3::text\[\]\)`).
		WithArgs("c1", "SUCCEEDED", []string{"INITIATED", "PENDING"}, "stripe", "pi_1", "ch_1", pgxmock.AnyArg(), paidAt).
		WillReturnRows(mock.NewRows(contributionRow).AddRow(
			"c1", nil, "camp1", nil, "500.00", "USD", "SUCCEEDED",
			"stripe", "pi_1", "ch_1", []byte(`{"contribution_id":"c1"}`), nil, now, now,
		))

	updated, applied, err := repo.Transition(context.Background(), "c1",
		domain.Sources(domain.StatusSucceeded), domain.StatusSucceeded,
		repository.TransitionPatch{
			Payment: &domain.PaymentReference{Provider: "stripe", IntentID: "pi_1", ChargeID: "ch_1", Metadata: map[string]string{"contribution_id": "c1"}},
			PaidAt:  &paidAt,
		})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.StatusSucceeded, updated.Status)
	assert.True(t, decimal.NewFromInt(500).Equal(updated.Amount))
	assert.Equal(t, "c1", updated.Payment.Metadata["contribution_id"])
	assert.True(t, updated.IsAnonymous())
}

func TestTransitionGuardMissReportsCurrent(t *testing.T) {
	mock := newMock(t)
	repo := NewContributionRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`UPDATE contributions`).
		WithArgs("c1", "SUCCEEDED", []string{"INITIATED", "PENDING"}, "", "", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(contributionRow))
	mock.ExpectQuery(`FROM contributions WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(mock.NewRows(contributionRow).AddRow(
			"c1", nil, "camp1", nil, "500.00", "USD", "REFUNDED",
			"stripe", "pi_1", "", nil, nil, now, now,
		))

	current, applied, err := repo.Transition(context.Background(), "c1",
		domain.Sources(domain.StatusSucceeded), domain.StatusSucceeded, repository.TransitionPatch{})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.StatusRefunded, current.Status)
}

func TestTransitionMissingContribution(t *testing.T) {
	mock := newMock(t)
	repo := NewContributionRepository(mock)

	mock.ExpectQuery(`UPDATE contributions`).
		WithArgs("nope", "FAILED", []string{"INITIATED", "PENDING"}, "", "", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(contributionRow))
	mock.ExpectQuery(`FROM contributions WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(mock.NewRows(contributionRow))

	_, _, err := repo.Transition(context.Background(), "nope",
		domain.Sources(domain.StatusFailed), domain.StatusFailed, repository.TransitionPatch{})
	assert.ErrorIs(t, err, domain.ErrContributionNotFound)
}

func TestTransitionKeepsStoredIntent(t *testing.T) {
	mock := newMock(t)
	repo := NewContributionRepository(mock)

	mock.ExpectQuery(`provider_intent_id = COALESCE\(NULLIF\(provider_intent_id, ''\), NULLIF\(\$5, ''\)\)`).
		WithArgs("c1", "SUCCEEDED", []string{"INITIATED", "PENDING"}, "stripe", "ch_9", "ch_9", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(contributionRow))
	mock.ExpectQuery(`FROM contributions WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(mock.NewRows(contributionRow))

	_, _, err := repo.Transition(context.Background(), "c1",
		domain.Sources(domain.StatusSucceeded), domain.StatusSucceeded,
		repository.TransitionPatch{Payment: &domain.PaymentReference{Provider: "stripe", IntentID: "ch_9", ChargeID: "ch_9"}})
	assert.ErrorIs(t, err, domain.ErrContributionNotFound)
}

func TestTransitionIntentTakenIsConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewContributionRepository(mock)

	mock.ExpectQuery(`UPDATE contributions`).
		WithArgs("c2", "PENDING", []string{"INITIATED"}, "stripe", "pi_1", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "contributions_provider_intent_idx"})

	_, applied, err := repo.Transition(context.Background(), "c2",
		domain.Sources(domain.StatusPending), domain.StatusPending,
		repository.TransitionPatch{Payment: &domain.PaymentReference{Provider: "stripe", IntentID: "pi_1"}})
	assert.False(t, applied)
	assert.ErrorIs(t, err, domain.ErrIntentConflict)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	assert.False(t, domain.IsTransient(err))
}

func TestIncrementTotalsIsAtomicIncrement(t *testing.T) {
	mock := newMock(t)
	repo := NewCampaignRepository(mock)

	mock.ExpectQuery(`UPDATE campaigns\s+SET current_amount = current_amount \+ \$2::numeric`).
		WithArgs("camp1", "-500", int64(-1)).
		WillReturnRows(mock.NewRows([]string{"id", "current_amount", "backer_count"}).AddRow("camp1", "0.00", int64(0)))

	totals, err := repo.IncrementTotals(context.Background(), "camp1", decimal.NewFromInt(-500), -1)
	require.NoError(t, err)
	assert.True(t, totals.CurrentAmount.IsZero())
	assert.Equal(t, int64(0), totals.BackerCount)
}

func TestIncrementTotalsFailureIsTransient(t *testing.T) {
	mock := newMock(t)
	repo := NewCampaignRepository(mock)

	mock.ExpectQuery(`UPDATE campaigns`).
		WithArgs("camp1", "500", int64(1)).
		WillReturnError(errors.New("conn closed"))

	_, err := repo.IncrementTotals(context.Background(), "camp1", decimal.NewFromInt(500), 1)
	assert.ErrorIs(t, err, domain.ErrAggregateWrite)
	assert.True(t, domain.IsTransient(err))
}

func TestIncrementUserStats(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("u1", "500").
		WillReturnRows(mock.NewRows([]string{"id", "email", "role", "status", "total_contributed", "created_at", "updated_at"}).
			AddRow("u1", "u1@example.com", "user", "active", "1500.00", now, now))

	user, err := repo.IncrementContributed(context.Background(), "u1", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1500).Equal(user.TotalContributed))
}

func TestAuditAppendToleratesReplay(t *testing.T) {
	mock := newMock(t)
	repo := NewAuditRepository(mock)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("a1", "contribution", "c1", "contribution.succeeded", pgxmock.AnyArg(), "webhook", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := repo.Append(context.Background(), &domain.AuditRecord{
		ID:         "a1",
		EntityType: domain.EntityContribution,
		EntityID:   "c1",
		Action:     "contribution.succeeded",
		Source:     domain.SourceWebhook,
	})
	assert.NoError(t, err)
}

func TestTransactorCommitsAndBindsTx(t *testing.T) {
	mock := newMock(t)
	tx := NewTransactor(mock)
	ledger := NewEventLedgerRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE provider_events").
		WithArgs("stripe", "evt_1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return ledger.MarkProcessed(ctx, "stripe", "evt_1", nil, time.Now())
		})
	})
	require.NoError(t, err)
}

func TestTransactorRollsBackOnError(t *testing.T) {
	mock := newMock(t)
	tx := NewTransactor(mock)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tx.WithinTransaction(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRecomputeLocksCampaignFirst(t *testing.T) {
	mock := newMock(t)
	repo := NewCampaignRepository(mock)

	mock.ExpectQuery(`SELECT id FROM campaigns WHERE id = \$1 FOR UPDATE`).
		WithArgs("camp1").
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("camp1"))
	mock.ExpectQuery(`WITH settled AS`).
		WithArgs("camp1").
		WillReturnRows(mock.NewRows([]string{"id", "current_amount", "backer_count"}).AddRow("camp1", "750.00", int64(3)))
	mock.ExpectExec(`UPDATE rewards r`).
		WithArgs("camp1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	totals, err := repo.Recompute(context.Background(), "camp1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(750).Equal(totals.CurrentAmount))
	assert.Equal(t, int64(3), totals.BackerCount)
}
