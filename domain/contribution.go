package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionStatus is the settlement lifecycle state of a contribution.
type ContributionStatus string

const (
	StatusInitiated ContributionStatus = "INITIATED"
	StatusPending   ContributionStatus = "PENDING"
	StatusSucceeded ContributionStatus = "SUCCEEDED"
	StatusFailed    ContributionStatus = "FAILED"
	StatusRefunded  ContributionStatus = "REFUNDED"
)

var transitions = map[ContributionStatus][]ContributionStatus{
	StatusInitiated: {StatusPending, StatusSucceeded, StatusFailed},
	StatusPending:   {StatusSucceeded, StatusFailed},
	StatusSucceeded: {StatusRefunded},
}

// CanTransition reports whether the lifecycle graph has an edge from -> to.
func CanTransition(from, to ContributionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Sources lists every status with an edge into to.
func Sources(to ContributionStatus) []ContributionStatus {
	var out []ContributionStatus
	for _, from := range []ContributionStatus{StatusInitiated, StatusPending, StatusSucceeded, StatusFailed, StatusRefunded} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// PaymentReference links a contribution to the provider objects that pay for it.
type PaymentReference struct {
	Provider string            `json:"provider,omitempty"`
	IntentID string            `json:"intent_id,omitempty"`
	ChargeID string            `json:"charge_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Contribution is a pledge of money toward a campaign.
type Contribution struct {
	ID            string             `json:"id"`
	ContributorID *string            `json:"contributor_id,omitempty"`
	CampaignID    string             `json:"campaign_id"`
	RewardID      *string            `json:"reward_id,omitempty"`
	Amount        decimal.Decimal    `json:"amount"`
	Currency      string             `json:"currency"`
	Status        ContributionStatus `json:"status"`
	Payment       PaymentReference   `json:"payment"`
	PaidAt        *time.Time         `json:"paid_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (c *Contribution) IsSucceeded() bool {
	return c != nil && c.Status == StatusSucceeded
}

func (c *Contribution) IsAnonymous() bool {
	return c == nil || c.ContributorID == nil || *c.ContributorID == ""
}

// Clone returns a deep copy suitable for before/after snapshots.
func (c *Contribution) Clone() *Contribution {
	if c == nil {
		return nil
	}
	out := *c
	if c.ContributorID != nil {
		v := *c.ContributorID
		out.ContributorID = &v
	}
	if c.RewardID != nil {
		v := *c.RewardID
		out.RewardID = &v
	}
	if c.PaidAt != nil {
		v := *c.PaidAt
		out.PaidAt = &v
	}
	if c.Payment.Metadata != nil {
		out.Payment.Metadata = make(map[string]string, len(c.Payment.Metadata))
		for k, v := range c.Payment.Metadata {
			out.Payment.Metadata[k] = v
		}
	}
	return &out
}
