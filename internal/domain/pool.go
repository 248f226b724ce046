package domain

import "time"

// Well-known counter-asset mints.
const (
	SOLMint  = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// PoolSummary is one row of the new-pools discovery feed.
type PoolSummary struct {
	Address         string
	Name            string
	CreatedAt       time.Time // zero if the feed omitted or mangled it
	FDVUSD          float64
	ReserveUSD      float64
	Transactions24h int64 // buys + sells
	Volume24h       float64
}

// PoolMarket holds refreshed market metrics for a tracked pool.
type PoolMarket struct {
	FDVUSD          float64
	ReserveUSD      float64
	Transactions24h int64
	Volume24h       float64
	FetchedAt       time.Time
}

// PoolInfo holds token-level details reported for a pool.
type PoolInfo struct {
	MintAddress     string  `json:"mint_address"`
	MintAuthority   bool    `json:"mint_authority"`
	FreezeAuthority bool    `json:"freeze_authority"`
	Top10Pct        float64 `json:"top_10_holders"`
	GTScore         float64 `json:"gt_score"`
	RateLimited     bool    `json:"-"` // final attempt was answered with 429
}

// IsZero reports whether the provider returned no quality data at all.
func (p PoolInfo) IsZero() bool {
	return p.GTScore == 0 && p.Top10Pct == 0
}
