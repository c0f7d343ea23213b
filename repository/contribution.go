package repository

import (
	"context"
	"time"

	"github.com/fastygo/settlement/domain"
)

// TransitionPatch carries the fields written together with a status change.
type TransitionPatch struct {
	Payment *domain.PaymentReference
	PaidAt  *time.Time
}

type ContributionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Contribution, error)
	GetByIntent(ctx context.Context, provider, intentID string) (*domain.Contribution, error)
	// Transition moves the contribution to `to` in a single conditional write that only
	// applies while the stored status is one of `from`. When the condition does not hold
	// it returns the stored record and applied=false.
	Transition(ctx context.Context, id string, from []domain.ContributionStatus, to domain.ContributionStatus, patch TransitionPatch) (contribution *domain.Contribution, applied bool, err error)
}
