// Package discovery turns the new-pools feed into tracked token records.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/storage"
)

// PoolFeed lists new pools and resolves their token details.
type PoolFeed interface {
	NewPools(ctx context.Context) ([]domain.PoolSummary, error)
	PoolInfo(ctx context.Context, pool string) domain.PoolInfo
	MintAddress(ctx context.Context, pool string) (string, error)
}

// HolderAnalyzer computes holder concentration for a mint.
type HolderAnalyzer interface {
	Analyze(ctx context.Context, mint string) domain.HolderDistribution
}

// PatternDetector computes distribution signals for a mint.
type PatternDetector interface {
	Detect(ctx context.Context, mint string) domain.DistributionSignals
}

// Options configures a Pass.
type Options struct {
	Feed     PoolFeed
	Holders  HolderAnalyzer
	Patterns PatternDetector
	Tokens   storage.TokenStore
	History  storage.SignalSnapshotStore // optional
	Criteria Criteria
	Now      func() time.Time
	Logger   *zap.Logger
}

// Result summarizes one discovery pass.
type Result struct {
	Fetched   int `json:"fetched"`
	Qualified int `json:"qualified"`
	Skipped   int `json:"skipped"` // already tracked
	Inserted  int `json:"inserted"`
}

// Pass runs discovery: fetch, qualify, enrich, insert-if-absent.
// It never touches records that are already stored.
type Pass struct {
	feed     PoolFeed
	holders  HolderAnalyzer
	patterns PatternDetector
	tokens   storage.TokenStore
	history  storage.SignalSnapshotStore
	criteria Criteria
	now      func() time.Time
	logger   *zap.Logger
}

// NewPass creates a discovery pass.
func NewPass(opts Options) *Pass {
	if opts.Criteria == (Criteria{}) {
		opts.Criteria = DefaultCriteria()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pass{
		feed:     opts.Feed,
		holders:  opts.Holders,
		patterns: opts.Patterns,
		tokens:   opts.Tokens,
		history:  opts.History,
		criteria: opts.Criteria,
		now:      opts.Now,
		logger:   opts.Logger.Named("discovery"),
	}
}

// Run executes one pass. Candidates are processed by 24h volume, highest first.
// Only a feed or storage listing failure aborts the pass; per-candidate failures
// are logged and the candidate is skipped.
func (p *Pass) Run(ctx context.Context) (Result, error) {
	start := p.now()
	res, err := p.run(ctx)

	status := "ok"
	if err != nil {
		status = "failed"
	}
	observability.RecordPass("discovery", status, p.now().Sub(start).Seconds(), p.now().Unix())
	p.logger.Info("discovery pass finished",
		zap.Int("fetched", res.Fetched),
		zap.Int("qualified", res.Qualified),
		zap.Int("skipped", res.Skipped),
		zap.Int("inserted", res.Inserted),
		zap.Error(err))
	return res, err
}

func (p *Pass) run(ctx context.Context) (Result, error) {
	var res Result

	pools, err := p.feed.NewPools(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch new pools: %w", err)
	}
	res.Fetched = len(pools)

	keys, err := p.tokens.ListKeys(ctx)
	if err != nil {
		return res, fmt.Errorf("list tracked keys: %w", err)
	}
	tracked := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		tracked[k] = struct{}{}
	}

	candidates := make([]domain.PoolSummary, 0, len(pools))
	for _, pool := range pools {
		if p.criteria.Qualifies(pool) {
			candidates = append(candidates, pool)
		}
	}
	res.Qualified = len(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Volume24h > candidates[j].Volume24h
	})

	for _, pool := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, ok := tracked[pool.Address]; ok {
			res.Skipped++
			continue
		}

		record, snap := p.enrich(ctx, pool)
		inserted, err := p.tokens.InsertIfAbsent(ctx, record)
		if err != nil {
			p.logger.Warn("insert token failed", zap.String("pool", pool.Address), zap.Error(err))
			continue
		}
		if !inserted {
			res.Skipped++
			continue
		}
		res.Inserted++
		tracked[pool.Address] = struct{}{}
		observability.RecordTokenInserted()
		p.appendHistory(ctx, snap)
	}
	return res, nil
}

// enrich assembles the record for a qualified pool. Analytics failures
// degrade to zero-valued metrics.
func (p *Pass) enrich(ctx context.Context, pool domain.PoolSummary) (*domain.TokenRecord, *domain.SignalSnapshot) {
	now := p.now().UTC()

	info := p.feed.PoolInfo(ctx, pool.Address)

	mint, err := p.feed.MintAddress(ctx, pool.Address)
	if err != nil {
		p.logger.Debug("mint unresolved", zap.String("pool", pool.Address), zap.Error(err))
		mint = ""
	}

	createdAt := pool.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	record := &domain.TokenRecord{
		Address:         pool.Address,
		Name:            pool.Name,
		MintAddress:     mint,
		CreatedAt:       createdAt.UTC(),
		FirstSeen:       now,
		LastUpdated:     now,
		FDVUSD:          pool.FDVUSD,
		ReserveUSD:      pool.ReserveUSD,
		Transactions24h: pool.Transactions24h,
		Volume24h:       pool.Volume24h,
		MintAuthority:   info.MintAuthority,
		FreezeAuthority: info.FreezeAuthority,
		Top10Pct:        info.Top10Pct,
		GTScore:         info.GTScore,
	}

	var (
		dist domain.HolderDistribution
		sig  domain.DistributionSignals
	)
	if mint != "" {
		dist = p.holders.Analyze(ctx, mint)
		sig = p.patterns.Detect(ctx, mint)
		record.TopHolderPct = dist.TopHolderPct
		record.Top20Pct = dist.Top20Pct
		record.EntropyScore = sig.EntropyScore
	}

	return record, domain.NewSignalSnapshot(record, sig, dist.LPPct, domain.SnapshotSourceDiscovery, now)
}

func (p *Pass) appendHistory(ctx context.Context, snap *domain.SignalSnapshot) {
	if p.history == nil || snap.MintAddress == "" {
		return
	}
	if err := p.history.Insert(ctx, snap); err != nil {
		p.logger.Warn("append signal snapshot failed", zap.String("pool", snap.PoolAddress), zap.Error(err))
	}
}
