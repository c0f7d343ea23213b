package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fastygo/settlement/domain"
)

type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	ListIDs(ctx context.Context) ([]string, error)
	IncrementTotals(ctx context.Context, campaignID string, amount decimal.Decimal, backers int64) (*domain.CampaignTotals, error)
	IncrementRewardBackers(ctx context.Context, campaignID, rewardID string, delta int64) (*domain.Reward, error)
	// Recompute rebuilds the campaign and reward aggregates from succeeded contributions.
	Recompute(ctx context.Context, campaignID string) (*domain.CampaignTotals, error)
}
