package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a platform identity with contribution statistics.
type User struct {
	ID               string          `json:"id"`
	Email            string          `json:"email,omitempty"`
	Role             string          `json:"role"`
	Status           string          `json:"status"`
	TotalContributed decimal.Decimal `json:"total_contributed"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}
