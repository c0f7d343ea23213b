package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

const userColumns = `id, email, role, status, total_contributed::text, created_at, updated_at`

type userRepository struct {
	db DB
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(db DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *userRepository) IncrementContributed(ctx context.Context, id string, amount decimal.Decimal) (*domain.User, error) {
	query := `
	UPDATE users
	SET total_contributed = total_contributed + $2::numeric,
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + userColumns

	user, err := scanUser(conn(ctx, r.db).QueryRow(ctx, query, id, amount.String()))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, aggregateWriteError("user stats", err)
	}
	return user, nil
}

func (r *userRepository) RecomputeAll(ctx context.Context) (int64, error) {
	const query = `
	WITH settled AS (
		SELECT u.id, COALESCE(SUM(c.amount), 0) AS total
		FROM users u
		LEFT JOIN contributions c ON c.contributor_id = u.id AND c.status = 'SUCCEEDED'
		GROUP BY u.id
	)
	UPDATE users u
	SET total_contributed = settled.total,
		updated_at = NOW()
	FROM settled
	WHERE u.id = settled.id AND u.total_contributed IS DISTINCT FROM settled.total
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		user  domain.User
		total string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Role, &user.Status, &total, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	parsed, err := parseDecimal(total)
	if err != nil {
		return nil, err
	}
	user.TotalContributed = parsed
	return &user, nil
}
