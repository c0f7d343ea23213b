// Package memory keeps every repository in process memory. Conditional writes and
// the ledger's unique key are checked under one mutex, and transactions are
// serialized and rolled back from a snapshot, so engine tests observe the same
// guarantees Postgres provides.
package memory

import (
	"context"
	"sync"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository"
)

type txKey struct{}

// Store holds all collections.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	contributions map[string]*domain.Contribution
	events        map[string]*domain.ProviderEvent
	campaigns     map[string]*domain.Campaign
	rewards       map[string]*domain.Reward
	users         map[string]*domain.User
	audits        []*domain.AuditRecord

	failures map[string]error
	calls    map[string]int
}

// Operation names accepted by FailNext and Calls.
const (
	OpLedgerInsert      = "ledger.insert"
	OpTransition        = "contribution.transition"
	OpCampaignIncrement = "campaign.increment"
	OpRewardIncrement   = "reward.increment"
	OpUserIncrement     = "user.increment"
	OpAuditAppend       = "audit.append"
)

func New() *Store {
	return &Store{
		contributions: make(map[string]*domain.Contribution),
		events:        make(map[string]*domain.ProviderEvent),
		campaigns:     make(map[string]*domain.Campaign),
		rewards:       make(map[string]*domain.Reward),
		users:         make(map[string]*domain.User),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
	}
}

func (s *Store) Contributions() repository.ContributionRepository { return contributionRepo{s} }
func (s *Store) Ledger() repository.EventLedgerRepository         { return ledgerRepo{s} }
func (s *Store) Campaigns() repository.CampaignRepository         { return campaignRepo{s} }
func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Audit() repository.AuditRepository                { return auditRepo{s} }
func (s *Store) Transactor() repository.Transactor                { return s }

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Calls reports how many times op completed successfully.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// hit must be called with mu held.
func (s *Store) hit(op string) error {
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	s.calls[op]++
	return nil
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	contributions map[string]*domain.Contribution
	events        map[string]*domain.ProviderEvent
	campaigns     map[string]*domain.Campaign
	rewards       map[string]*domain.Reward
	users         map[string]*domain.User
	calls         map[string]int
}

// Audit records are left out: they are written outside settlement transactions.
func (s *Store) snapshot() snapshot {
	snap := snapshot{
		contributions: make(map[string]*domain.Contribution, len(s.contributions)),
		events:        make(map[string]*domain.ProviderEvent, len(s.events)),
		campaigns:     make(map[string]*domain.Campaign, len(s.campaigns)),
		rewards:       make(map[string]*domain.Reward, len(s.rewards)),
		users:         make(map[string]*domain.User, len(s.users)),
		calls:         make(map[string]int, len(s.calls)),
	}
	for k, v := range s.contributions {
		snap.contributions[k] = v.Clone()
	}
	for k, v := range s.events {
		e := *v
		snap.events[k] = &e
	}
	for k, v := range s.campaigns {
		c := *v
		snap.campaigns[k] = &c
	}
	for k, v := range s.rewards {
		r := *v
		snap.rewards[k] = &r
	}
	for k, v := range s.users {
		u := *v
		snap.users[k] = &u
	}
	for k, v := range s.calls {
		snap.calls[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.contributions = snap.contributions
	s.events = snap.events
	s.campaigns = snap.campaigns
	s.rewards = snap.rewards
	s.users = snap.users
	s.calls = snap.calls
}
