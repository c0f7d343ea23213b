package transport

import (
	"time"

	"github.com/fastygo/settlement/domain"
)

// Contribution is the API view of a contribution.
type Contribution struct {
	ID            string     `json:"id"`
	CampaignID    string     `json:"campaign_id"`
	RewardID      *string    `json:"reward_id,omitempty"`
	ContributorID *string    `json:"contributor_id,omitempty"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Provider      string     `json:"provider,omitempty"`
	PaymentIntent string     `json:"payment_intent,omitempty"`
	PaymentCharge string     `json:"payment_charge,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func NewContribution(c *domain.Contribution) Contribution {
	return Contribution{
		ID:            c.ID,
		CampaignID:    c.CampaignID,
		RewardID:      c.RewardID,
		ContributorID: c.ContributorID,
		Amount:        c.Amount.StringFixed(2),
		Currency:      c.Currency,
		Status:        string(c.Status),
		Provider:      c.Payment.Provider,
		PaymentIntent: c.Payment.IntentID,
		PaymentCharge: c.Payment.ChargeID,
		PaidAt:        c.PaidAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// WebhookAck is returned for every delivery the provider should not retry.
type WebhookAck struct {
	Received bool   `json:"received"`
	Action   string `json:"action,omitempty"`
}
