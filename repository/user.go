package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fastygo/settlement/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	IncrementContributed(ctx context.Context, id string, amount decimal.Decimal) (*domain.User, error)
	// RecomputeAll rebuilds total_contributed for every user and returns the rows touched.
	RecomputeAll(ctx context.Context) (int64, error)
}
