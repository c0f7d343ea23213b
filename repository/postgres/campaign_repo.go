package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

type campaignRepository struct {
	db DB
}

// NewCampaignRepository returns a Postgres-backed CampaignRepository.
func NewCampaignRepository(db DB) repository.CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	const query = `
	SELECT id, owner_id, title, currency, goal_amount::text, current_amount::text, backer_count, updated_at
	FROM campaigns
	WHERE id = $1
	`
	var (
		c             domain.Campaign
		goal, current string
	)
	if err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&c.ID, &c.OwnerID, &c.Title, &c.Currency, &goal, &current, &c.BackerCount, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}
	var err error
	if c.GoalAmount, err = parseDecimal(goal); err != nil {
		return nil, err
	}
	if c.CurrentAmount, err = parseDecimal(current); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *campaignRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT id FROM campaigns ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *campaignRepository) IncrementTotals(ctx context.Context, campaignID string, amount decimal.Decimal, backers int64) (*domain.CampaignTotals, error) {
	const query = `
	UPDATE campaigns
	SET current_amount = current_amount + $2::numeric,
		backer_count = backer_count + $3,
		updated_at = NOW()
	WHERE id = $1
	RETURNING id, current_amount::text, backer_count
	`
	totals, err := scanTotals(conn(ctx, r.db).QueryRow(ctx, query, campaignID, amount.String(), backers))
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return nil, err
		}
		return nil, aggregateWriteError("campaign totals", err)
	}
	return totals, nil
}

func (r *campaignRepository) IncrementRewardBackers(ctx context.Context, campaignID, rewardID string, delta int64) (*domain.Reward, error) {
	const query = `
	UPDATE rewards
	SET backers_count = backers_count + $3,
		updated_at = NOW()
	WHERE campaign_id = $1 AND id = $2
	RETURNING id, campaign_id, title, reward_limit, backers_count, updated_at
	`
	reward, err := scanReward(conn(ctx, r.db).QueryRow(ctx, query, campaignID, rewardID, delta))
	if err != nil {
		if errors.Is(err, domain.ErrRewardNotFound) {
			return nil, err
		}
		return nil, aggregateWriteError("reward inventory", err)
	}
	return reward, nil
}

// Recompute locks the campaign row first so settlements committing meanwhile are
// either included in the sums or wait for the rebuild to finish.
func (r *campaignRepository) Recompute(ctx context.Context, campaignID string) (*domain.CampaignTotals, error) {
	const lockQuery = `SELECT id FROM campaigns WHERE id = $1 FOR UPDATE`
	const campaignQuery = `
	WITH settled AS (
		SELECT COALESCE(SUM(amount), 0) AS amount, COUNT(*) AS backers
		FROM contributions
		WHERE campaign_id = $1 AND status = 'SUCCEEDED'
	)
	UPDATE campaigns c
	SET current_amount = settled.amount,
		backer_count = settled.backers,
		updated_at = NOW()
	FROM settled
	WHERE c.id = $1
	RETURNING c.id, c.current_amount::text, c.backer_count
	`
	const rewardQuery = `
	UPDATE rewards r
	SET backers_count = (
			SELECT COUNT(*) FROM contributions c
			WHERE c.campaign_id = r.campaign_id AND c.reward_id = r.id AND c.status = 'SUCCEEDED'
		),
		updated_at = NOW()
	WHERE r.campaign_id = $1
	`

	db := conn(ctx, r.db)
	var locked string
	if err := db.QueryRow(ctx, lockQuery, campaignID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}
	totals, err := scanTotals(db.QueryRow(ctx, campaignQuery, campaignID))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(ctx, rewardQuery, campaignID); err != nil {
		return nil, err
	}
	return totals, nil
}

func scanTotals(row scanner) (*domain.CampaignTotals, error) {
	var (
		totals domain.CampaignTotals
		amount string
	)
	if err := row.Scan(&totals.CampaignID, &amount, &totals.BackerCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}
	parsed, err := parseDecimal(amount)
	if err != nil {
		return nil, err
	}
	totals.CurrentAmount = parsed
	return &totals, nil
}

func scanReward(row scanner) (*domain.Reward, error) {
	var reward domain.Reward
	if err := row.Scan(
		&reward.ID,
		&reward.CampaignID,
		&reward.Title,
		&reward.Limit,
		&reward.BackersCount,
		&reward.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}
