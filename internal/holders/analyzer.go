// Package holders computes holder concentration over genuine (non-LP)
// largest accounts of a mint.
package holders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/solana"
)

// Defaults.
const (
	DefaultTopHolderCount = 20
	DefaultDumpThreshold  = 0.10

	// Used when the supply lookup fails.
	FallbackSupply   = 1_000_000_000
	FallbackDecimals = 9
)

var hundred = decimal.NewFromInt(100)

// ErrLPUnresolved is returned when LP resolution failed for every counter-asset.
var ErrLPUnresolved = errors.New("lp addresses unresolved")

// TokenReader reads supply and largest accounts of a mint.
type TokenReader interface {
	GetTokenSupply(ctx context.Context, mint string) (*solana.TokenSupply, error)
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.TokenAccountBalance, error)
}

// LPResolver returns the LP address sets of a mint, one per counter-asset.
type LPResolver interface {
	ResolveAll(ctx context.Context, mint string) []*domain.LPAddressSet
}

// Config holds analyzer parameters.
type Config struct {
	TopHolderCount int
	DumpThreshold  float64 // fraction of supply, e.g. 0.10
}

// Analyzer computes HolderDistribution for a mint.
type Analyzer struct {
	rpc    TokenReader
	lp     LPResolver
	cfg    Config
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(rpc TokenReader, lp LPResolver, cfg Config, logger *zap.Logger) *Analyzer {
	if cfg.TopHolderCount <= 0 {
		cfg.TopHolderCount = DefaultTopHolderCount
	}
	if cfg.DumpThreshold <= 0 {
		cfg.DumpThreshold = DefaultDumpThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{rpc: rpc, lp: lp, cfg: cfg, logger: logger.Named("holders")}
}

// Analyze never returns an error: failures produce a zeroed result with
// Status failed.
func (a *Analyzer) Analyze(ctx context.Context, mint string) domain.HolderDistribution {
	res, err := a.analyze(ctx, mint)
	if err != nil {
		a.logger.Warn("holder analysis failed", zap.String("mint", mint), zap.Error(err))
		observability.RecordAnalysis("holders", string(domain.StatusFailed))
		failed := Failed(err)
		failed.LPStatus, failed.LPErrors = res.LPStatus, res.LPErrors
		return failed
	}
	observability.RecordAnalysis("holders", string(domain.StatusOK))
	return res
}

func (a *Analyzer) analyze(ctx context.Context, mint string) (domain.HolderDistribution, error) {
	lpSets := a.lp.ResolveAll(ctx, mint)
	if status, errs := LPOutcome(lpSets); status == domain.StatusFailed {
		res := domain.HolderDistribution{LPStatus: status, LPErrors: errs}
		return res, fmt.Errorf("%w: %s", ErrLPUnresolved, strings.Join(errs, "; "))
	}

	supply, decimals, estimated := a.supply(ctx, mint)

	largest, err := a.rpc.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return domain.HolderDistribution{}, fmt.Errorf("get largest accounts: %w", err)
	}
	balances, err := Normalize(largest, decimals)
	if err != nil {
		return domain.HolderDistribution{}, err
	}

	res := Summarize(balances, supply, lpSets, a.cfg)
	res.SupplyEstimated = estimated

	a.logger.Debug("holder distribution",
		zap.String("mint", mint),
		zap.Int("accounts", len(balances)),
		zap.Int("lp_holders", len(res.LPHolders)),
		zap.Float64("top_holder_pct", res.TopHolderPct),
		zap.Float64("lp_pct", res.LPPct))
	return res, nil
}

// supply returns the normalized supply and decimals, or the fallback pair
// when the lookup fails.
func (a *Analyzer) supply(ctx context.Context, mint string) (decimal.Decimal, int32, bool) {
	s, err := a.rpc.GetTokenSupply(ctx, mint)
	if err == nil {
		raw, perr := decimal.NewFromString(s.Amount)
		if perr == nil {
			return raw.Shift(-int32(s.Decimals)), int32(s.Decimals), false
		}
		err = perr
	}
	a.logger.Debug("supply lookup failed, using fallback", zap.String("mint", mint), zap.Error(err))
	return decimal.NewFromInt(FallbackSupply), FallbackDecimals, true
}

// Normalize converts raw largest-account amounts to token units, keeping order.
func Normalize(accounts []solana.TokenAccountBalance, decimals int32) ([]domain.HolderBalance, error) {
	out := make([]domain.HolderBalance, 0, len(accounts))
	for _, acc := range accounts {
		raw, err := decimal.NewFromString(acc.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount of %s: %w", acc.Address, err)
		}
		out = append(out, domain.HolderBalance{Address: acc.Address, Amount: raw.Shift(-decimals)})
	}
	return out, nil
}

// lpIndex is the case-insensitive union of LP address sets.
type lpIndex struct {
	addresses []string          // first-seen spelling, in order
	labels    map[string]string // by first-seen spelling
	byLower   map[string]string // lowercase -> first-seen spelling
}

func newLPIndex(sets []*domain.LPAddressSet) *lpIndex {
	idx := &lpIndex{
		addresses: []string{},
		labels:    map[string]string{},
		byLower:   map[string]string{},
	}
	for _, set := range sets {
		if set == nil {
			continue
		}
		for _, a := range set.Addresses {
			key := strings.ToLower(a.Address)
			if _, ok := idx.byLower[key]; ok {
				continue
			}
			idx.byLower[key] = a.Address
			idx.addresses = append(idx.addresses, a.Address)
			idx.labels[a.Address] = a.Label
		}
	}
	return idx
}

func (idx *lpIndex) label(addr string) (string, bool) {
	orig, ok := idx.byLower[strings.ToLower(addr)]
	if !ok {
		return "", false
	}
	if l := idx.labels[orig]; l != "" {
		return l, true
	}
	return "Unknown LP", true
}

// Summarize classifies balances into LP and genuine holders and computes
// concentration against supply. Balances must already be sorted descending.
func Summarize(balances []domain.HolderBalance, supply decimal.Decimal, lpSets []*domain.LPAddressSet, cfg Config) domain.HolderDistribution {
	if cfg.TopHolderCount <= 0 {
		cfg.TopHolderCount = DefaultTopHolderCount
	}
	if cfg.DumpThreshold <= 0 {
		cfg.DumpThreshold = DefaultDumpThreshold
	}
	idx := newLPIndex(lpSets)
	lpStatus, lpErrors := LPOutcome(lpSets)

	res := domain.HolderDistribution{
		Status:       domain.StatusOK,
		LPStatus:     lpStatus,
		LPErrors:     lpErrors,
		LPAddresses:  idx.addresses,
		LPLabels:     idx.labels,
		LPCount:      len(idx.addresses),
		LPHolders:    []domain.LPHolder{},
		ActualSupply: supply.InexactFloat64(),
	}

	lpTotal := decimal.Zero
	genuine := make([]domain.HolderBalance, 0, len(balances))
	for _, b := range balances {
		if label, isLP := idx.label(b.Address); isLP {
			lpTotal = lpTotal.Add(b.Amount)
			res.LPHolders = append(res.LPHolders, domain.LPHolder{
				Address: b.Address,
				Amount:  b.Amount.InexactFloat64(),
				Label:   label,
			})
			continue
		}
		genuine = append(genuine, b)
	}
	res.LPTotalAmount = lpTotal.InexactFloat64()

	if len(genuine) > cfg.TopHolderCount {
		genuine = genuine[:cfg.TopHolderCount]
	}
	topN := decimal.Zero
	for _, b := range genuine {
		topN = topN.Add(b.Amount)
	}

	res.LPPct = percentOf(lpTotal, supply)
	res.Top20Pct = percentOf(topN, supply)
	if len(genuine) > 0 {
		res.TopHolderPct = percentOf(genuine[0].Amount, supply)
	}
	res.DumpRisk = res.TopHolderPct >= cfg.DumpThreshold*100
	return res
}

// LPOutcome folds per-counter-asset LP sets into one status. It is failed
// only when at least one set was resolved and every set failed; errors of
// failed sets are returned either way.
func LPOutcome(sets []*domain.LPAddressSet) (domain.Status, []string) {
	var errs []string
	resolved, failed := 0, 0
	for _, set := range sets {
		if set == nil {
			continue
		}
		resolved++
		if set.Status != domain.StatusFailed {
			continue
		}
		failed++
		if len(set.Errors) == 0 {
			errs = append(errs, set.CounterAsset+": lp resolution failed")
			continue
		}
		for _, e := range set.Errors {
			errs = append(errs, set.CounterAsset+": "+e)
		}
	}
	if resolved > 0 && failed == resolved {
		return domain.StatusFailed, errs
	}
	return domain.StatusOK, errs
}

// Failed returns the zero-valued result for a failed analysis.
func Failed(err error) domain.HolderDistribution {
	return domain.HolderDistribution{
		Status:      domain.StatusFailed,
		LPAddresses: []string{},
		LPLabels:    map[string]string{},
		LPHolders:   []domain.LPHolder{},
		Error:       err.Error(),
	}
}

func percentOf(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}
