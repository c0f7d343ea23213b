package memory

import (
	"time"

	"github.com/fastygo/settlement/domain"
)

func (s *Store) PutContribution(c domain.Contribution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
		c.UpdatedAt = c.CreatedAt
	}
	s.contributions[c.ID] = c.Clone()
}

func (s *Store) PutCampaign(c domain.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = &c
}

func (s *Store) PutReward(r domain.Reward) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewards[rewardKey(r.CampaignID, r.ID)] = &r
}

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) Contribution(id string) domain.Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contributions[id]; ok {
		return *c.Clone()
	}
	return domain.Contribution{}
}

func (s *Store) Campaign(id string) domain.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok {
		return *c
	}
	return domain.Campaign{}
}

func (s *Store) Reward(campaignID, rewardID string) domain.Reward {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rewards[rewardKey(campaignID, rewardID)]; ok {
		return *r
	}
	return domain.Reward{}
}

func (s *Store) User(id string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return *u
	}
	return domain.User{}
}

func (s *Store) Event(provider, externalEventID string) (domain.ProviderEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventKey(provider, externalEventID)]
	if !ok {
		return domain.ProviderEvent{}, false
	}
	return *e, true
}

func (s *Store) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Store) AuditRecords() []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditRecord, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, *a)
	}
	return out
}
