package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Campaign carries the settlement aggregates of a fundraising campaign.
type Campaign struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Title         string          `json:"title"`
	Currency      string          `json:"currency"`
	GoalAmount    decimal.Decimal `json:"goal_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	BackerCount   int64           `json:"backer_count"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Reward is a tier of a campaign with optional limited inventory.
type Reward struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	Title        string    `json:"title"`
	Limit        *int64    `json:"limit,omitempty"`
	BackersCount int64     `json:"backers_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SoldOut reports whether the tier has reached its limit.
func (r *Reward) SoldOut() bool {
	return r != nil && r.Limit != nil && r.BackersCount >= *r.Limit
}

// CampaignTotals is the result of a single atomic increment of campaign aggregates.
type CampaignTotals struct {
	CampaignID    string          `json:"campaign_id"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	BackerCount   int64           `json:"backer_count"`
}
