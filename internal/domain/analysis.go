package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tells a genuine result apart from a zero-valued failure.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// LPMethod describes how an LP address was discovered.
type LPMethod string

const (
	LPMethodRouteHop     LPMethod = "route_hop"     // pool/market key named by a route hop
	LPMethodTokenAccount LPMethod = "token_account" // token account owned by a pool, via RPC
	LPMethodDerivedATA   LPMethod = "derived_ata"   // associated token account derived offline
)

// LPAddress is one liquidity-pool-controlled address.
type LPAddress struct {
	Address string   `json:"address"`
	Label   string   `json:"label"`
	Method  LPMethod `json:"method"`
}

// LPAddressSet is the LP topology for one (mint, counter-asset) pair.
// Recomputed on every analysis and never persisted.
type LPAddressSet struct {
	Mint         string      `json:"mint"`
	CounterAsset string      `json:"counter_asset"`
	Addresses    []LPAddress `json:"addresses"`
	Status       Status      `json:"status"`
	Errors       []string    `json:"errors,omitempty"` // failed branches, informational
}

// Found reports whether any LP address was detected.
func (s *LPAddressSet) Found() bool {
	return s != nil && len(s.Addresses) > 0
}

// HolderBalance is one largest-account entry normalized by 10^decimals.
type HolderBalance struct {
	Address string
	Amount  decimal.Decimal
}

// LPHolder is a largest-account entry classified as LP-owned.
type LPHolder struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Label   string  `json:"label"`
}

// HolderDistribution is the concentration summary over genuine holders.
type HolderDistribution struct {
	Status          Status            `json:"status"`
	TopHolderPct    float64           `json:"top_holder"`
	Top20Pct        float64           `json:"top_20_holders"`
	DumpRisk        bool              `json:"dump_risk_flag"`
	LPAddresses     []string          `json:"lp_addresses"`
	LPLabels        map[string]string `json:"lp_labels"`
	LPCount         int               `json:"lp_count"`
	LPHolders       []LPHolder        `json:"lp_holders"`
	LPTotalAmount   float64           `json:"lp_total_amount"`
	LPPct           float64           `json:"lp_pct"`
	LPStatus        Status            `json:"lp_status,omitempty"` // failed when no counter-asset resolved
	LPErrors        []string          `json:"lp_errors,omitempty"`
	ActualSupply    float64           `json:"actual_supply"`
	SupplyEstimated bool              `json:"supply_estimated"` // supply lookup failed, fallback used
	Error           string            `json:"error,omitempty"`
}

// DistributionSignals are independent rug-pull heuristics over the top balances.
type DistributionSignals struct {
	Status            Status  `json:"status"`
	EntropyScore      float64 `json:"entropy_score"`
	UniformBalance    bool    `json:"uniform_balance"`
	CliffDistribution bool    `json:"cliff_distribution"`
	DecimalPattern    bool    `json:"decimal_pattern"`
	LowEntropy        bool    `json:"low_entropy"`
	Error             string  `json:"error,omitempty"`
}

// HoneypotResult is the outcome of a simulated buy/sell round trip.
type HoneypotResult struct {
	Status             Status  `json:"status"`
	BuyPrice           float64 `json:"buy_price"`
	SellPrice          float64 `json:"sell_price"`
	PriceImpactBuy     float64 `json:"price_impact_buy"`
	PriceImpactSell    float64 `json:"price_impact_sell"`
	SlippageRatio      float64 `json:"slippage_ratio"`
	RecoveryPct        float64 `json:"recovery_pct"`
	IsPossibleHoneypot bool    `json:"is_possible_honeypot"`
	WarningMessage     string  `json:"warning_message"`
	Error              string  `json:"error,omitempty"`
}

// SignalSnapshot is a point-in-time analytics row kept as history.
// Corresponds to signal_snapshots table in ClickHouse.
type SignalSnapshot struct {
	PoolAddress       string  `json:"pool_address"`
	MintAddress       string  `json:"mint_address"`
	TimestampMs       int64   `json:"timestamp_ms"`
	Source            string  `json:"source"` // discovery | refresh
	FDVUSD            float64 `json:"fdv_usd"`
	ReserveUSD        float64 `json:"reserve_in_usd"`
	Volume24h         float64 `json:"volume_24h"`
	TopHolderPct      float64 `json:"top_holder"`
	Top20Pct          float64 `json:"top_20_holders"`
	LPPct             float64 `json:"lp_pct"`
	EntropyScore      float64 `json:"entropy_score"`
	UniformBalance    bool    `json:"uniform_balance"`
	CliffDistribution bool    `json:"cliff_distribution"`
	DecimalPattern    bool    `json:"decimal_pattern"`
	LowEntropy        bool    `json:"low_entropy"`
	IsHoneypot        bool    `json:"is_honeypot"`
}

// Snapshot sources.
const (
	SnapshotSourceDiscovery = "discovery"
	SnapshotSourceRefresh   = "refresh"
)

// NewSignalSnapshot builds a snapshot from a record at time t.
func NewSignalSnapshot(r *TokenRecord, sig DistributionSignals, lpPct float64, source string, t time.Time) *SignalSnapshot {
	return &SignalSnapshot{
		PoolAddress:       r.Address,
		MintAddress:       r.MintAddress,
		TimestampMs:       t.UnixMilli(),
		Source:            source,
		FDVUSD:            r.FDVUSD,
		ReserveUSD:        r.ReserveUSD,
		Volume24h:         r.Volume24h,
		TopHolderPct:      r.TopHolderPct,
		Top20Pct:          r.Top20Pct,
		LPPct:             lpPct,
		EntropyScore:      sig.EntropyScore,
		UniformBalance:    sig.UniformBalance,
		CliffDistribution: sig.CliffDistribution,
		DecimalPattern:    sig.DecimalPattern,
		LowEntropy:        sig.LowEntropy,
		IsHoneypot:        r.IsHoneypot,
	}
}
