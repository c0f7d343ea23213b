package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

// Direction selects whether a contribution's effects are applied or reversed.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Effect is one aggregate mutation, kept for the audit trail.
type Effect struct {
	Ref    domain.EntityRef
	Action string
	Before interface{}
	After  interface{}
}

// Reconciler applies a settled contribution to campaign, reward and user aggregates.
// Each target is changed by one atomic increment; there is no read-modify-write.
type Reconciler struct {
	campaigns repository.CampaignRepository
	users     repository.UserRepository
}

func NewReconciler(campaigns repository.CampaignRepository, users repository.UserRepository) *Reconciler {
	return &Reconciler{campaigns: campaigns, users: users}
}

// Apply must only be called by the winner of the contribution's conditional transition.
func (r *Reconciler) Apply(ctx context.Context, c *domain.Contribution, dir Direction) ([]Effect, error) {
	amount := c.Amount
	backers := int64(1)
	if dir == Reverse {
		amount = amount.Neg()
		backers = -1
	}
	action := "aggregate." + dir.String()

	totals, err := r.campaigns.IncrementTotals(ctx, c.CampaignID, amount, backers)
	if err != nil {
		return nil, aggregateFailure("campaign totals", err)
	}
	effects := []Effect{{
		Ref:    domain.EntityRef{Type: domain.EntityCampaign, ID: c.CampaignID},
		Action: action,
		Before: domain.CampaignTotals{
			CampaignID:    totals.CampaignID,
			CurrentAmount: totals.CurrentAmount.Sub(amount),
			BackerCount:   totals.BackerCount - backers,
		},
		After: totals,
	}}

	if c.RewardID != nil && *c.RewardID != "" {
		reward, err := r.campaigns.IncrementRewardBackers(ctx, c.CampaignID, *c.RewardID, backers)
		if err != nil {
			return nil, aggregateFailure("reward inventory", err)
		}
		before := *reward
		before.BackersCount -= backers
		effects = append(effects, Effect{
			Ref:    domain.EntityRef{Type: domain.EntityReward, ID: reward.ID},
			Action: action,
			Before: before,
			After:  reward,
		})
	}

	if !c.IsAnonymous() {
		user, err := r.users.IncrementContributed(ctx, *c.ContributorID, amount)
		if err != nil {
			return nil, aggregateFailure("user stats", err)
		}
		effects = append(effects, Effect{
			Ref:    domain.EntityRef{Type: domain.EntityUser, ID: user.ID},
			Action: action,
			Before: userStats{UserID: user.ID, TotalContributed: user.TotalContributed.Sub(amount)},
			After:  userStats{UserID: user.ID, TotalContributed: user.TotalContributed},
		})
	}

	return effects, nil
}

type userStats struct {
	UserID           string          `json:"user_id"`
	TotalContributed decimal.Decimal `json:"total_contributed"`
}

// aggregateFailure rolls the settlement back so the provider's redelivery retries it.
func aggregateFailure(target string, err error) error {
	if domain.IsDomainError(err, domain.ErrCodeUnavailable) {
		return err
	}
	return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrAggregateWrite.Message, fmt.Errorf("%s: %w", target, err))
}
