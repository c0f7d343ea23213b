package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

type contributionRepo struct{ s *Store }

func (r contributionRepo) GetByID(_ context.Context, id string) (*domain.Contribution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contributions[id]
	if !ok {
		return nil, domain.ErrContributionNotFound
	}
	return c.Clone(), nil
}

func (r contributionRepo) GetByIntent(_ context.Context, provider, intentID string) (*domain.Contribution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if intentID == "" {
		return nil, domain.ErrContributionNotFound
	}
	for _, c := range r.s.contributions {
		if c.Payment.Provider == provider && c.Payment.IntentID == intentID {
			return c.Clone(), nil
		}
	}
	return nil, domain.ErrContributionNotFound
}

func (r contributionRepo) Transition(_ context.Context, id string, from []domain.ContributionStatus, to domain.ContributionStatus, patch repository.TransitionPatch) (*domain.Contribution, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contributions[id]
	if !ok {
		return nil, false, domain.ErrContributionNotFound
	}
	matched := false
	for _, status := range from {
		if c.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return c.Clone(), false, nil
	}
	if err := r.s.hit(OpTransition); err != nil {
		return nil, false, err
	}
	if p := patch.Payment; p != nil && p.IntentID != "" && c.Payment.IntentID == "" {
		provider := c.Payment.Provider
		if p.Provider != "" {
			provider = p.Provider
		}
		for otherID, other := range r.s.contributions {
			if otherID != id && other.Payment.Provider == provider && other.Payment.IntentID == p.IntentID {
				return nil, false, domain.ErrIntentConflict
			}
		}
	}

	c.Status = to
	if p := patch.Payment; p != nil {
		if p.Provider != "" {
			c.Payment.Provider = p.Provider
		}
		if p.IntentID != "" && c.Payment.IntentID == "" {
			c.Payment.IntentID = p.IntentID
		}
		if p.ChargeID != "" {
			c.Payment.ChargeID = p.ChargeID
		}
		for k, v := range p.Metadata {
			if c.Payment.Metadata == nil {
				c.Payment.Metadata = make(map[string]string)
			}
			c.Payment.Metadata[k] = v
		}
	}
	if patch.PaidAt != nil {
		paid := *patch.PaidAt
		c.PaidAt = &paid
	}
	c.UpdatedAt = time.Now()
	return c.Clone(), true, nil
}

type ledgerRepo struct{ s *Store }

func eventKey(provider, id string) string { return provider + "\x00" + id }

func (r ledgerRepo) Insert(_ context.Context, event *domain.ProviderEvent) (domain.AdmissionResult, error) {
	if event == nil || event.Provider == "" || event.ExternalEventID == "" {
		return domain.AlreadyProcessed, domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := eventKey(event.Provider, event.ExternalEventID)
	if _, exists := r.s.events[key]; exists {
		return domain.AlreadyProcessed, nil
	}
	if err := r.s.hit(OpLedgerInsert); err != nil {
		return domain.AlreadyProcessed, err
	}
	stored := *event
	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = time.Now().UTC()
	}
	r.s.events[key] = &stored
	return domain.Admitted, nil
}

func (r ledgerRepo) MarkProcessed(_ context.Context, provider, externalEventID string, contributionID *string, processedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventKey(provider, externalEventID)]
	if !ok || e.ProcessedAt != nil {
		return nil
	}
	at := processedAt
	e.ProcessedAt = &at
	if contributionID != nil {
		id := *contributionID
		e.ContributionID = &id
	}
	return nil
}

type campaignRepo struct{ s *Store }

func rewardKey(campaignID, rewardID string) string { return campaignID + "\x00" + rewardID }

func (r campaignRepo) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	out := *c
	return &out, nil
}

func (r campaignRepo) ListIDs(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]string, 0, len(r.s.campaigns))
	for id := range r.s.campaigns {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r campaignRepo) IncrementTotals(_ context.Context, campaignID string, amount decimal.Decimal, backers int64) (*domain.CampaignTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	if err := r.s.hit(OpCampaignIncrement); err != nil {
		return nil, err
	}
	c.CurrentAmount = c.CurrentAmount.Add(amount)
	c.BackerCount += backers
	c.UpdatedAt = time.Now()
	return &domain.CampaignTotals{CampaignID: c.ID, CurrentAmount: c.CurrentAmount, BackerCount: c.BackerCount}, nil
}

func (r campaignRepo) IncrementRewardBackers(_ context.Context, campaignID, rewardID string, delta int64) (*domain.Reward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rw, ok := r.s.rewards[rewardKey(campaignID, rewardID)]
	if !ok {
		return nil, domain.ErrRewardNotFound
	}
	if err := r.s.hit(OpRewardIncrement); err != nil {
		return nil, err
	}
	rw.BackersCount += delta
	rw.UpdatedAt = time.Now()
	out := *rw
	return &out, nil
}

func (r campaignRepo) Recompute(_ context.Context, campaignID string) (*domain.CampaignTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	total := decimal.Zero
	var backers int64
	perReward := make(map[string]int64)
	for _, contribution := range r.s.contributions {
		if contribution.CampaignID != campaignID || contribution.Status != domain.StatusSucceeded {
			continue
		}
		total = total.Add(contribution.Amount)
		backers++
		if contribution.RewardID != nil {
			perReward[*contribution.RewardID]++
		}
	}
	c.CurrentAmount = total
	c.BackerCount = backers
	for _, rw := range r.s.rewards {
		if rw.CampaignID == campaignID {
			rw.BackersCount = perReward[rw.ID]
		}
	}
	return &domain.CampaignTotals{CampaignID: c.ID, CurrentAmount: c.CurrentAmount, BackerCount: c.BackerCount}, nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r userRepo) IncrementContributed(_ context.Context, id string, amount decimal.Decimal) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if err := r.s.hit(OpUserIncrement); err != nil {
		return nil, err
	}
	u.TotalContributed = u.TotalContributed.Add(amount)
	u.UpdatedAt = time.Now()
	out := *u
	return &out, nil
}

func (r userRepo) RecomputeAll(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	totals := make(map[string]decimal.Decimal)
	for _, c := range r.s.contributions {
		if c.Status == domain.StatusSucceeded && !c.IsAnonymous() {
			totals[*c.ContributorID] = totals[*c.ContributorID].Add(c.Amount)
		}
	}
	var touched int64
	for id, u := range r.s.users {
		if !u.TotalContributed.Equal(totals[id]) {
			u.TotalContributed = totals[id]
			touched++
		}
	}
	return touched, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, record *domain.AuditRecord) error {
	if record == nil || record.EntityID == "" || record.Action == "" {
		return domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit(OpAuditAppend); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	for _, existing := range r.s.audits {
		if existing.ID == record.ID {
			return nil
		}
	}
	record.Touch()
	stored := *record
	r.s.audits = append(r.s.audits, &stored)
	return nil
}
