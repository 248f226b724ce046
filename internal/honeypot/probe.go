// Package honeypot simulates a buy/sell round trip through swap quotes to
// flag tokens whose sell path is penalized.
package honeypot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/jupiter"
	"solana-token-radar/internal/observability"
)

// Defaults.
const (
	DefaultNotional    = 100_000_000 // lamports, 0.1 SOL
	DefaultSlippageBps = 150

	SevereRecoveryPct   = 80.0
	CriticalRecoveryPct = 50.0
	MinMeaningfulImpact = 0.1 // percent
	MaxImpactRatio      = 3.0
	MaxImpactGap        = 1.0 // percentage points
)

// Quoter returns swap quotes.
type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
}

// Config holds probe parameters.
type Config struct {
	Notional    uint64
	SlippageBps int
}

// Probe runs honeypot checks.
type Probe struct {
	quoter Quoter
	cfg    Config
	logger *zap.Logger
}

// NewProbe creates a probe.
func NewProbe(quoter Quoter, cfg Config, logger *zap.Logger) *Probe {
	if cfg.Notional == 0 {
		cfg.Notional = DefaultNotional
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = DefaultSlippageBps
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{quoter: quoter, cfg: cfg, logger: logger.Named("honeypot")}
}

// Check quotes a SOL buy of mint, then a sell of the received amount, and
// evaluates the round trip. A failed leg yields Status failed with no verdict.
func (p *Probe) Check(ctx context.Context, mint string) domain.HoneypotResult {
	buy, err := p.quoter.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   domain.SOLMint,
		OutputMint:  mint,
		Amount:      p.cfg.Notional,
		SlippageBps: p.cfg.SlippageBps,
	})
	if err != nil {
		return p.failed(mint, fmt.Errorf("buy error: %w", err))
	}
	if buy.OutAmount == 0 {
		return p.failed(mint, fmt.Errorf("buy error: quote returned no tokens"))
	}

	sell, err := p.quoter.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   mint,
		OutputMint:  domain.SOLMint,
		Amount:      buy.OutAmount,
		SlippageBps: p.cfg.SlippageBps,
	})
	if err != nil {
		return p.failed(mint, fmt.Errorf("sell error: %w", err))
	}

	res := Evaluate(p.cfg.Notional, buy.OutAmount, sell.OutAmount, buy.PriceImpactPct, sell.PriceImpactPct)
	p.logger.Debug("honeypot check",
		zap.String("mint", mint),
		zap.Uint64("tokens_out", buy.OutAmount),
		zap.Uint64("sol_back", sell.OutAmount),
		zap.Float64("recovery_pct", res.RecoveryPct),
		zap.Bool("flagged", res.IsPossibleHoneypot))
	observability.RecordAnalysis("honeypot", string(domain.StatusOK))
	return res
}

func (p *Probe) failed(mint string, err error) domain.HoneypotResult {
	p.logger.Warn("honeypot check failed", zap.String("mint", mint), zap.Error(err))
	observability.RecordAnalysis("honeypot", string(domain.StatusFailed))
	return domain.HoneypotResult{Status: domain.StatusFailed, Error: err.Error()}
}

// Evaluate applies the verdict rules to one round trip. Impacts are in
// percent. Rules run in order and later rules only ever raise severity:
//
//  1. recovery below 80% flags a severe sell penalty;
//  2. otherwise, when both impacts exceed 0.1%, a sell/buy impact ratio
//     above 3 with a gap above 1 point flags asymmetric impact;
//  3. recovery below 50% always flags as critical.
func Evaluate(notional, tokenOut, solReceived uint64, impactBuy, impactSell float64) domain.HoneypotResult {
	res := domain.HoneypotResult{
		Status:          domain.StatusOK,
		PriceImpactBuy:  impactBuy,
		PriceImpactSell: impactSell,
	}
	if tokenOut > 0 {
		res.BuyPrice = float64(notional) / float64(tokenOut)
	}
	if solReceived > 0 {
		res.SellPrice = float64(tokenOut) / float64(solReceived)
	}
	if notional > 0 {
		res.RecoveryPct = float64(solReceived) / float64(notional) * 100
	}

	if impactBuy > 0 {
		res.SlippageRatio = impactSell / impactBuy
	} else {
		res.SlippageRatio = impactSell * 2
	}

	switch {
	case res.RecoveryPct < SevereRecoveryPct:
		res.IsPossibleHoneypot = true
		res.WarningMessage = fmt.Sprintf("Severe sell penalty detected: only %.1f%% recovery", res.RecoveryPct)
	case impactBuy > MinMeaningfulImpact && impactSell > MinMeaningfulImpact:
		if res.SlippageRatio > MaxImpactRatio && impactSell-impactBuy > MaxImpactGap {
			res.IsPossibleHoneypot = true
			res.WarningMessage = fmt.Sprintf("Sell impact %.1fx higher than buy impact", res.SlippageRatio)
		}
	}

	if res.RecoveryPct < CriticalRecoveryPct {
		res.IsPossibleHoneypot = true
		res.WarningMessage = fmt.Sprintf("CRITICAL: Extreme sell penalty (%.1f%% recovery)", res.RecoveryPct)
	}
	return res
}
