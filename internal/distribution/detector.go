// Package distribution computes independent rug-pull heuristics over the
// largest balances of a mint. LP accounts are intentionally included.
package distribution

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/holders"
	"solana-token-radar/internal/observability"
)

// Thresholds.
const (
	DefaultTopCount     = 20
	LowEntropyThreshold = 2.5
	CliffRatio          = 3
	UniformMinRepeats   = 3
	DecimalMinIntegers  = 3
)

var cliffRatio = decimal.NewFromInt(CliffRatio)

// Detect computes the signals over balances sorted descending.
func Detect(balances []decimal.Decimal) domain.DistributionSignals {
	sig := domain.DistributionSignals{Status: domain.StatusOK}

	sig.UniformBalance = hasRepeatedValue(balances, UniformMinRepeats)

	if len(balances) >= 2 && balances[1].IsPositive() {
		sig.CliffDistribution = balances[0].Div(balances[1]).GreaterThan(cliffRatio)
	}

	integers := 0
	for _, b := range balances {
		if b.IsInteger() {
			integers++
		}
	}
	sig.DecimalPattern = integers >= DecimalMinIntegers

	sig.EntropyScore = Entropy(balances)
	sig.LowEntropy = sig.EntropyScore < LowEntropyThreshold
	return sig
}

// Entropy is the base-2 Shannon entropy of the balance proportions,
// rounded to 3 decimals. Zero when the total is not positive.
func Entropy(balances []decimal.Decimal) float64 {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b)
	}
	if !total.IsPositive() {
		return 0
	}

	var h float64
	for _, b := range balances {
		if !b.IsPositive() {
			continue
		}
		p := b.Div(total).InexactFloat64()
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	h = math.Round(h*1000) / 1000
	if h < 0 {
		return 0
	}
	return h
}

func hasRepeatedValue(balances []decimal.Decimal, n int) bool {
	for i := range balances {
		count := 0
		for j := range balances {
			if balances[i].Equal(balances[j]) {
				count++
			}
		}
		if count >= n {
			return true
		}
	}
	return false
}

// Failed returns the zero-valued signals for a failed detection.
func Failed(err error) domain.DistributionSignals {
	return domain.DistributionSignals{Status: domain.StatusFailed, Error: err.Error()}
}

// Detector fetches the largest balances of a mint and runs Detect.
type Detector struct {
	rpc      holders.TokenReader
	topCount int
	logger   *zap.Logger
}

// NewDetector creates a detector over the top topCount balances.
func NewDetector(rpc holders.TokenReader, topCount int, logger *zap.Logger) *Detector {
	if topCount <= 0 {
		topCount = DefaultTopCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{rpc: rpc, topCount: topCount, logger: logger.Named("distribution")}
}

// Detect never returns an error: any fetch or parse failure produces
// zeroed signals with Status failed.
func (d *Detector) Detect(ctx context.Context, mint string) domain.DistributionSignals {
	amounts, err := d.topBalances(ctx, mint)
	if err != nil {
		d.logger.Warn("distribution detection failed", zap.String("mint", mint), zap.Error(err))
		observability.RecordAnalysis("distribution", string(domain.StatusFailed))
		return Failed(err)
	}
	observability.RecordAnalysis("distribution", string(domain.StatusOK))
	return Detect(amounts)
}

func (d *Detector) topBalances(ctx context.Context, mint string) ([]decimal.Decimal, error) {
	largest, err := d.rpc.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get largest accounts: %w", err)
	}
	supply, err := d.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get token supply: %w", err)
	}

	if len(largest) > d.topCount {
		largest = largest[:d.topCount]
	}
	balances, err := holders.Normalize(largest, int32(supply.Decimals))
	if err != nil {
		return nil, err
	}

	amounts := make([]decimal.Decimal, len(balances))
	for i, b := range balances {
		amounts[i] = b.Amount
	}
	return amounts, nil
}
