// Package lp resolves the addresses controlled by a token's liquidity pools.
//
// Pools are discovered from aggregator quote routes in both directions
// against each counter-asset; the token accounts those pools own are then
// looked up on-chain (or derived offline when the lookup fails).
package lp

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/jupiter"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/solana"
)

// Defaults.
const (
	DefaultProbeAmount = 1_000_000
	DefaultSlippageBps = 100
	DefaultConcurrency = 4
)

// CounterAssets are probed in this order.
var CounterAssets = []string{domain.SOLMint, domain.USDCMint}

// Quoter returns swap quotes.
type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
}

// AccountLister lists the token accounts an owner holds for a mint.
type AccountLister interface {
	GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]solana.TokenAccount, error)
}

// Config holds resolver parameters.
type Config struct {
	ProbeAmount uint64
	SlippageBps int
	Concurrency int
}

// DefaultConfig returns the default resolver parameters.
func DefaultConfig() Config {
	return Config{
		ProbeAmount: DefaultProbeAmount,
		SlippageBps: DefaultSlippageBps,
		Concurrency: DefaultConcurrency,
	}
}

// Resolver finds LP-controlled addresses for a mint.
type Resolver struct {
	quoter   Quoter
	accounts AccountLister
	cfg      Config
	logger   *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(quoter Quoter, accounts AccountLister, cfg Config, logger *zap.Logger) *Resolver {
	if cfg.ProbeAmount == 0 {
		cfg.ProbeAmount = DefaultProbeAmount
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = DefaultSlippageBps
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		quoter:   quoter,
		accounts: accounts,
		cfg:      cfg,
		logger:   logger.Named("lp"),
	}
}

// Resolve returns the LP address set of mint against one counter-asset.
func (r *Resolver) Resolve(ctx context.Context, mint, counter string) *domain.LPAddressSet {
	return r.resolve(ctx, mint, []string{counter})[0]
}

// ResolveAll returns one LP address set per entry of CounterAssets, in order.
func (r *Resolver) ResolveAll(ctx context.Context, mint string) []*domain.LPAddressSet {
	return r.resolve(ctx, mint, CounterAssets)
}

// branch is one quote direction against one counter-asset.
type branch struct {
	counter string
	reverse bool
	pools   []jupiter.PoolRef
	err     error
}

func (b *branch) name() string {
	dir := "forward"
	if b.reverse {
		dir = "reverse"
	}
	return fmt.Sprintf("%s %s", counterName(b.counter), dir)
}

func (r *Resolver) resolve(ctx context.Context, mint string, counters []string) []*domain.LPAddressSet {
	branches := make([]*branch, 0, 2*len(counters))
	for _, c := range counters {
		branches = append(branches, &branch{counter: c}, &branch{counter: c, reverse: true})
	}

	// A plain group: one failing branch must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for _, b := range branches {
		g.Go(func() error {
			b.pools, b.err = r.quotePools(ctx, mint, b.counter, b.reverse)
			return nil
		})
	}
	_ = g.Wait()

	sets := make([]*domain.LPAddressSet, len(counters))
	for i, counter := range counters {
		sets[i] = r.merge(ctx, mint, counter, branches[2*i], branches[2*i+1])
		observability.RecordAnalysis("lp", string(sets[i].Status))
	}
	return sets
}

func (r *Resolver) quotePools(ctx context.Context, mint, counter string, reverse bool) ([]jupiter.PoolRef, error) {
	req := jupiter.QuoteRequest{
		InputMint:   counter,
		OutputMint:  mint,
		Amount:      r.cfg.ProbeAmount,
		SlippageBps: r.cfg.SlippageBps,
	}
	if reverse {
		req.InputMint, req.OutputMint = mint, counter
	}
	q, err := r.quoter.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	return q.Pools(), nil
}

// merge unions the route hops of both directions, then appends the token
// accounts owned by each discovered pool.
func (r *Resolver) merge(ctx context.Context, mint, counter string, fwd, rev *branch) *domain.LPAddressSet {
	set := &domain.LPAddressSet{
		Mint:         mint,
		CounterAsset: counter,
		Addresses:    []domain.LPAddress{},
		Status:       domain.StatusOK,
	}
	seen := make(map[string]struct{})
	add := func(addr, label string, method domain.LPMethod) {
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		set.Addresses = append(set.Addresses, domain.LPAddress{Address: addr, Label: label, Method: method})
	}

	failed := 0
	for _, b := range []*branch{fwd, rev} {
		if b.err != nil {
			failed++
			set.Errors = append(set.Errors, fmt.Sprintf("%s quote: %v", b.name(), b.err))
			r.logger.Debug("quote branch failed",
				zap.String("mint", mint),
				zap.String("branch", b.name()),
				zap.Error(b.err))
			continue
		}
		for _, p := range b.pools {
			add(p.Address, p.Label, domain.LPMethodRouteHop)
		}
	}
	if failed == 2 {
		set.Status = domain.StatusFailed
		return set
	}

	pools := make([]domain.LPAddress, len(set.Addresses))
	copy(pools, set.Addresses)
	for _, acc := range r.poolAccounts(ctx, mint, pools) {
		add(acc.Address, acc.Label, acc.Method)
	}

	r.logger.Debug("lp addresses resolved",
		zap.String("mint", mint),
		zap.String("counter", counterName(counter)),
		zap.Int("count", len(set.Addresses)))
	return set
}

// poolAccounts looks up the token accounts each pool owns for mint. Results
// keep pool order regardless of completion order.
func (r *Resolver) poolAccounts(ctx context.Context, mint string, pools []domain.LPAddress) []domain.LPAddress {
	results := make([][]domain.LPAddress, len(pools))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, pool := range pools {
		g.Go(func() error {
			results[i] = r.ownedAccounts(ctx, mint, pool)
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.LPAddress
	for _, accs := range results {
		out = append(out, accs...)
	}
	return out
}

func (r *Resolver) ownedAccounts(ctx context.Context, mint string, pool domain.LPAddress) []domain.LPAddress {
	label := fmt.Sprintf("LP Token Account (%s)", labelOrUnknown(pool.Label))

	accounts, err := r.accounts.GetTokenAccountsByOwner(ctx, pool.Address, mint)
	if err == nil {
		out := make([]domain.LPAddress, 0, len(accounts))
		for _, acc := range accounts {
			out = append(out, domain.LPAddress{Address: acc.Pubkey, Label: label, Method: domain.LPMethodTokenAccount})
		}
		return out
	}

	r.logger.Debug("token account lookup failed, deriving associated accounts",
		zap.String("pool", pool.Address),
		zap.Error(err))

	var out []domain.LPAddress
	for _, program := range []string{solana.TokenProgramID, solana.Token2022ProgramID} {
		ata, derr := solana.FindAssociatedTokenAddress(pool.Address, mint, program)
		if derr != nil {
			continue
		}
		out = append(out, domain.LPAddress{Address: ata, Label: label, Method: domain.LPMethodDerivedATA})
	}
	return out
}

func labelOrUnknown(label string) string {
	if label == "" {
		return "Unknown"
	}
	return label
}

func counterName(mint string) string {
	switch mint {
	case domain.SOLMint:
		return "SOL"
	case domain.USDCMint:
		return "USDC"
	default:
		return mint
	}
}
