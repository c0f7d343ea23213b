package settlement

import (
	"context"
	"time"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

// Transition reports a state machine step. Before is the stored record read ahead of
// the conditional write and is only used for snapshots.
type Transition struct {
	Before  *domain.Contribution
	After   *domain.Contribution
	Applied bool
	Effects []Effect
}

// StateMachine owns contribution lifecycle changes. Every change is a single
// conditional write; only the caller whose write applies reconciles aggregates.
type StateMachine struct {
	contributions repository.ContributionRepository
	reconciler    *Reconciler
	now           func() time.Time
}

func NewStateMachine(contributions repository.ContributionRepository, reconciler *Reconciler) *StateMachine {
	return &StateMachine{
		contributions: contributions,
		reconciler:    reconciler,
		now:           time.Now,
	}
}

// MarkPending records the provider intent of a freshly created contribution.
// Repeating the call with the same intent is a no-op.
func (m *StateMachine) MarkPending(ctx context.Context, id string, ref domain.PaymentReference) (Transition, error) {
	if ref.Provider == "" || ref.IntentID == "" {
		return Transition{}, domain.ErrInvalidPayload
	}
	tr, err := m.transition(ctx, id, domain.StatusPending, repository.TransitionPatch{Payment: &ref})
	if err != nil {
		return tr, err
	}
	current := tr.After
	if tr.Applied {
		// a stored intent is never replaced
		if current.Payment.IntentID != ref.IntentID {
			return tr, domain.ErrIntentConflict
		}
		return tr, nil
	}
	if current.Status == domain.StatusPending && current.Payment.Provider == ref.Provider && current.Payment.IntentID == ref.IntentID {
		return tr, nil
	}
	return tr, domain.ErrInvalidStateTransition
}

// MarkSucceeded settles the contribution. It is idempotent: a contribution that already
// succeeded (or was refunded since) is returned untouched and nothing is reconciled.
func (m *StateMachine) MarkSucceeded(ctx context.Context, id string, payment domain.PaymentReference) (Transition, error) {
	paidAt := m.now().UTC()
	tr, err := m.transition(ctx, id, domain.StatusSucceeded, repository.TransitionPatch{Payment: &payment, PaidAt: &paidAt})
	if err != nil {
		return tr, err
	}
	if !tr.Applied {
		if tr.After.IsSucceeded() || tr.After.Status == domain.StatusRefunded {
			return tr, nil
		}
		return tr, domain.ErrInvalidStateTransition
	}

	effects, err := m.reconciler.Apply(ctx, tr.After, Forward)
	if err != nil {
		return tr, err
	}
	tr.Effects = effects
	return tr, nil
}

// MarkFailed is idempotent for contributions that already failed.
func (m *StateMachine) MarkFailed(ctx context.Context, id string) (Transition, error) {
	tr, err := m.transition(ctx, id, domain.StatusFailed, repository.TransitionPatch{})
	if err != nil || tr.Applied {
		return tr, err
	}
	if tr.After.Status == domain.StatusFailed {
		return tr, nil
	}
	return tr, domain.ErrInvalidStateTransition
}

// MarkRefunded reverses a succeeded contribution using the amount, reward and
// contributor captured when it settled.
func (m *StateMachine) MarkRefunded(ctx context.Context, id string) (Transition, error) {
	tr, err := m.transition(ctx, id, domain.StatusRefunded, repository.TransitionPatch{})
	if err != nil {
		return tr, err
	}
	if !tr.Applied {
		return tr, domain.ErrRefundNotAllowed
	}

	effects, err := m.reconciler.Apply(ctx, tr.After, Reverse)
	if err != nil {
		return tr, err
	}
	tr.Effects = effects
	return tr, nil
}

func (m *StateMachine) transition(ctx context.Context, id string, to domain.ContributionStatus, patch repository.TransitionPatch) (Transition, error) {
	before, err := m.contributions.GetByID(ctx, id)
	if err != nil {
		return Transition{}, err
	}
	after, applied, err := m.contributions.Transition(ctx, id, domain.Sources(to), to, patch)
	if err != nil {
		return Transition{Before: before}, err
	}
	return Transition{Before: before, After: after, Applied: applied}, nil
}
