// Package refresh re-evaluates tracked tokens whose data has gone stale,
// updating those that still qualify and evicting the rest.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-token-radar/internal/discovery"
	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/gecko"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/storage"
)

// Defaults.
const (
	DefaultStaleAfter = 3 * time.Minute
	DefaultDelay      = time.Second
)

// Outcome of refreshing one token.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeRemoved Outcome = "removed"
	OutcomeSkipped Outcome = "skipped" // transient upstream failure, retried next tick
	OutcomeFailed  Outcome = "failed"  // storage failure
)

// Market refreshes pool metrics and resolves the pool's mint.
type Market interface {
	MarketMetrics(ctx context.Context, pool string) (*domain.PoolMarket, error)
	MintAddress(ctx context.Context, pool string) (string, error)
}

// HoneypotChecker probes a mint for sell restrictions.
type HoneypotChecker interface {
	Check(ctx context.Context, mint string) domain.HoneypotResult
}

// Options configures a Pass. Holders and Honeypot are optional; a nil
// analyzer leaves its fields untouched.
type Options struct {
	Market     Market
	Patterns   discovery.PatternDetector
	Holders    discovery.HolderAnalyzer
	Honeypot   HoneypotChecker
	Tokens     storage.TokenStore
	History    storage.SignalSnapshotStore // optional
	Keep       discovery.KeepCriteria
	StaleAfter time.Duration
	Delay      time.Duration // between refreshed tokens, negative disables
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     *zap.Logger
}

// Result summarizes one refresh pass.
type Result struct {
	Checked int `json:"checked"`
	Stale   int `json:"stale"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Pass refreshes stale tracked tokens one at a time.
type Pass struct {
	market     Market
	patterns   discovery.PatternDetector
	holders    discovery.HolderAnalyzer
	honeypot   HoneypotChecker
	tokens     storage.TokenStore
	history    storage.SignalSnapshotStore
	keep       discovery.KeepCriteria
	staleAfter time.Duration
	delay      time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *zap.Logger
}

// NewPass creates a refresh pass.
func NewPass(opts Options) *Pass {
	if opts.Keep == (discovery.KeepCriteria{}) {
		opts.Keep = discovery.DefaultKeepCriteria()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	switch {
	case opts.Delay == 0:
		opts.Delay = DefaultDelay
	case opts.Delay < 0:
		opts.Delay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pass{
		market:     opts.Market,
		patterns:   opts.Patterns,
		holders:    opts.Holders,
		honeypot:   opts.Honeypot,
		tokens:     opts.Tokens,
		history:    opts.History,
		keep:       opts.Keep,
		staleAfter: opts.StaleAfter,
		delay:      opts.Delay,
		now:        opts.Now,
		sleep:      opts.Sleep,
		logger:     opts.Logger.Named("refresh"),
	}
}

// IsStale reports whether r is due for a refresh at now.
func (p *Pass) IsStale(r *domain.TokenRecord, now time.Time) bool {
	return now.Sub(r.LastUpdated) > p.staleAfter
}

// Run executes one pass over every stored token.
func (p *Pass) Run(ctx context.Context) (Result, error) {
	start := p.now()
	res, err := p.run(ctx)

	status := "ok"
	if err != nil {
		status = "failed"
	}
	observability.RecordPass("refresh", status, p.now().Sub(start).Seconds(), p.now().Unix())
	p.logger.Info("refresh pass finished",
		zap.Int("checked", res.Checked),
		zap.Int("stale", res.Stale),
		zap.Int("updated", res.Updated),
		zap.Int("removed", res.Removed),
		zap.Int("skipped", res.Skipped),
		zap.Error(err))
	return res, err
}

func (p *Pass) run(ctx context.Context) (Result, error) {
	var res Result

	records, err := p.tokens.ListAll(ctx)
	if err != nil {
		return res, fmt.Errorf("list tokens: %w", err)
	}
	res.Checked = len(records)

	for _, r := range records {
		if !p.IsStale(r, p.now()) {
			continue
		}
		if res.Stale > 0 && p.delay > 0 {
			if err := p.sleep(ctx, p.delay); err != nil {
				return res, err
			}
		}
		res.Stale++

		outcome := p.refreshOne(ctx, r)
		observability.RecordRefreshOutcome(string(outcome))
		switch outcome {
		case OutcomeUpdated:
			res.Updated++
		case OutcomeRemoved:
			res.Removed++
		case OutcomeSkipped:
			res.Skipped++
		case OutcomeFailed:
			res.Failed++
		}
	}

	observability.SetTrackedTokens(res.Checked - res.Removed)
	return res, nil
}

func (p *Pass) refreshOne(ctx context.Context, r *domain.TokenRecord) Outcome {
	log := p.logger.With(zap.String("pool", r.Address), zap.String("name", r.Name))

	market, err := p.market.MarketMetrics(ctx, r.Address)
	switch {
	case errors.Is(err, gecko.ErrPoolNotFound):
		return p.remove(ctx, r, "pool no longer listed")
	case err != nil:
		log.Warn("market refresh failed, keeping record", zap.Error(err))
		return OutcomeSkipped
	}

	if !p.keep.Keeps(market) {
		return p.remove(ctx, r, "no longer meets criteria")
	}

	mint, err := p.market.MintAddress(ctx, r.Address)
	switch {
	case err != nil && !errors.Is(err, gecko.ErrMintNotFound):
		log.Warn("mint lookup failed, keeping record", zap.Error(err))
		return OutcomeSkipped
	case err != nil || mint == "":
		return p.remove(ctx, r, "mint unresolved")
	}

	now := p.now().UTC()
	update := &domain.TokenUpdate{
		MintAddress:     &mint,
		FDVUSD:          &market.FDVUSD,
		ReserveUSD:      &market.ReserveUSD,
		Transactions24h: &market.Transactions24h,
		Volume24h:       &market.Volume24h,
		LastUpdated:     &now,
	}

	sig := p.patterns.Detect(ctx, mint)
	if sig.Status == domain.StatusOK {
		update.EntropyScore = &sig.EntropyScore
	}

	var dist domain.HolderDistribution
	if p.holders != nil {
		dist = p.holders.Analyze(ctx, mint)
		if dist.Status == domain.StatusOK {
			update.TopHolderPct = &dist.TopHolderPct
			update.Top20Pct = &dist.Top20Pct
		}
	}

	if p.honeypot != nil {
		hp := p.honeypot.Check(ctx, mint)
		if hp.Status == domain.StatusOK {
			update.IsHoneypot = &hp.IsPossibleHoneypot
		}
	}

	if err := p.tokens.UpdateFields(ctx, r.Address, update); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug("record vanished during refresh")
			return OutcomeRemoved
		}
		log.Error("update token failed", zap.Error(err))
		return OutcomeFailed
	}

	if p.history != nil {
		updated := *r
		update.Apply(&updated)
		snap := domain.NewSignalSnapshot(&updated, sig, dist.LPPct, domain.SnapshotSourceRefresh, now)
		if err := p.history.Insert(ctx, snap); err != nil {
			log.Warn("append signal snapshot failed", zap.Error(err))
		}
	}

	log.Debug("token refreshed", zap.String("mint", mint), zap.Float64("entropy", sig.EntropyScore))
	return OutcomeUpdated
}

func (p *Pass) remove(ctx context.Context, r *domain.TokenRecord, reason string) Outcome {
	if err := p.tokens.Delete(ctx, r.Address); err != nil {
		p.logger.Error("delete token failed", zap.String("pool", r.Address), zap.Error(err))
		return OutcomeFailed
	}
	p.logger.Info("token removed", zap.String("pool", r.Address), zap.String("name", r.Name), zap.String("reason", reason))
	return OutcomeRemoved
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
