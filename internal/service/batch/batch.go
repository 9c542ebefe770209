package batch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nkiryanov/payengine/internal/ingress"
	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/service/engine"
	"github.com/nkiryanov/payengine/internal/service/stream"
	"github.com/nkiryanov/payengine/internal/storage"
)

// Policy, combinator and assignment names accepted in Options
const (
	PolicySkip   = "skip"
	PolicyAbort  = "abort"
	PolicySilent = "silent"

	CombinatorMerge = "merge"
	CombinatorChain = "chain"

	AssignmentRoundRobin = "round-robin"
	AssignmentSequential = "sequential"
)

// Options configures a single run. Zero values mean the defaults: one
// shard, merge, round-robin, skip-errors policy.
type Options struct {
	Shards     int    `json:"shards" validate:"omitempty,min=1,max=64"`
	Policy     string `json:"policy" validate:"omitempty,oneof=skip abort silent"`
	Combinator string `json:"combinator" validate:"omitempty,oneof=merge chain"`
	Assignment string `json:"assignment" validate:"omitempty,oneof=round-robin sequential"`
}

// Totals is the lifetime counters of the service
type Totals struct {
	Batches      uint64 `json:"batches"`
	Processed    uint64 `json:"processed"`
	Skipped      uint64 `json:"skipped"`
	Accounts     int    `json:"accounts"`
	Transactions int    `json:"transactions"`
}

// Service runs transaction batches against one shared pair of stores.
// Both the batch CLI and the long-lived host drive their streams through it.
type Service struct {
	accounts     *storage.AccountStore
	transactions *storage.TransactionStore
	logger       logger.Logger

	batches   atomic.Uint64
	processed atomic.Uint64
	skipped   atomic.Uint64
}

func NewService(accounts *storage.AccountStore, transactions *storage.TransactionStore, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Service{
		accounts:     accounts,
		transactions: transactions,
		logger:       l,
	}
}

// Run processes the given sources as one batch and returns its report
func (s *Service) Run(ctx context.Context, sources []ingress.Ingress, opts Options) (*stream.Report, error) {
	cfg, err := opts.streamConfig(s.logger)
	if err != nil {
		return nil, err
	}

	processor := engine.NewProcessor(s.accounts, s.transactions, s.logger)
	sp := stream.New(processor, cfg)
	for _, source := range sources {
		sp.AddStream(source)
	}

	report, err := sp.Run(ctx)
	if report != nil {
		s.batches.Add(1)
		s.processed.Add(report.Processed)
		s.skipped.Add(report.Skipped)
	}

	return report, err
}

// Totals reports lifetime counters across every batch run so far
func (s *Service) Totals() Totals {
	return Totals{
		Batches:      s.batches.Load(),
		Processed:    s.processed.Load(),
		Skipped:      s.skipped.Load(),
		Accounts:     s.accounts.Len(),
		Transactions: s.transactions.Len(),
	}
}

func (o Options) streamConfig(l logger.Logger) (stream.Config, error) {
	cfg := stream.Config{Shards: o.Shards, Logger: l}

	switch o.Policy {
	case "", PolicySkip:
		cfg.Policy = stream.NewSkipErrors(l)
	case PolicyAbort:
		cfg.Policy = stream.NewAbortOnError(l)
	case PolicySilent:
		cfg.Policy = stream.NewSilentSkip()
	default:
		return cfg, fmt.Errorf("unknown error policy %q", o.Policy)
	}

	switch o.Combinator {
	case "", CombinatorMerge:
		cfg.Combinator = stream.Merge
	case CombinatorChain:
		cfg.Combinator = stream.Chain
	default:
		return cfg, fmt.Errorf("unknown stream combinator %q", o.Combinator)
	}

	switch o.Assignment {
	case "", AssignmentRoundRobin:
		cfg.Assignment = stream.RoundRobin
	case AssignmentSequential:
		cfg.Assignment = stream.Sequential
	default:
		return cfg, fmt.Errorf("unknown shard assignment %q", o.Assignment)
	}

	return cfg, nil
}
