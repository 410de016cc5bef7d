package hooks

import (
	"context"
	"sync/atomic"
	"time"

	"memory_bot/internal/config"
	"memory_bot/internal/llm"
	"memory_bot/internal/model"
	"memory_bot/internal/slack"
	"memory_bot/internal/store"
)

// Counters are cheap process-lifetime tallies the metrics logger reads.
type Counters struct {
	Proposals         atomic.Int64
	ProposalsApplied  atomic.Int64
	ReconcileFailures atomic.Int64
	OracleFailures    atomic.Int64
	HooksAdded        atomic.Int64
	HooksUpdated      atomic.Int64
	HooksDeleted      atomic.Int64
}

// Service owns the memory lifecycle: asking the oracle for mutations,
// reconciling them into the store, and periodic expiry cleanup.
type Service struct {
	config   *config.Config
	store    store.Store
	oracle   *llm.Client
	notifier *slack.Client
	Counters Counters
}

func NewService(cfg *config.Config, st store.Store, oracle *llm.Client, notifier *slack.Client) *Service {
	return &Service{
		config:   cfg,
		store:    st,
		oracle:   oracle,
		notifier: notifier,
	}
}

// ActiveHooks returns the user's unexpired hooks in creation order.
func (s *Service) ActiveHooks(ctx context.Context, userID int64, now time.Time) ([]model.Hook, error) {
	return s.store.ListActive(ctx, userID, now)
}

// Propose asks the oracle whether the message warrants memory changes.
// Returns nil both when the oracle proposes nothing and when the call
// fails; a failed extraction never blocks the reply.
func (s *Service) Propose(ctx context.Context, message string, activeHooks []string, personality string) *model.MutationProposal {
	proposal, err := s.oracle.ProposeMutations(ctx, message, activeHooks, personality)
	if err != nil {
		s.Counters.OracleFailures.Add(1)
		return nil
	}
	if proposal != nil {
		s.Counters.Proposals.Add(1)
	}
	return proposal
}

// WipeUser removes every hook the user has and reports how many.
func (s *Service) WipeUser(ctx context.Context, userID int64) (int, error) {
	return s.store.DeleteAllHooks(ctx, userID)
}
