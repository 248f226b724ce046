package domain

import "time"

// TokenRecord is one tracked pool/token row.
// Corresponds to tokens table in PostgreSQL.
type TokenRecord struct {
	Address         string    `json:"address"`      // PRIMARY KEY, pool address
	Name            string    `json:"name"`         // pool name, e.g. "FOO / SOL"
	MintAddress     string    `json:"mint_address"` // non-counter-asset mint, empty if unresolved
	CreatedAt       time.Time `json:"created_at"`   // pool creation time reported by the feed
	FirstSeen       time.Time `json:"first_seen"`
	LastUpdated     time.Time `json:"last_updated"`
	FDVUSD          float64   `json:"fdv_usd"`
	ReserveUSD      float64   `json:"reserve_in_usd"`
	Transactions24h int64     `json:"transactions_24h"`
	Volume24h       float64   `json:"volume_24h"`
	MintAuthority   bool      `json:"mint_authority"`
	FreezeAuthority bool      `json:"freeze_authority"`
	Top10Pct        float64   `json:"top_10_holders"` // provider-reported top-10 concentration
	TopHolderPct    float64   `json:"top_holder"`     // largest genuine holder, % of supply
	Top20Pct        float64   `json:"top_20_holders"` // top-20 genuine holders, % of supply
	GTScore         float64   `json:"gt_score"`
	EntropyScore    float64   `json:"entropy_score"`
	IsHoneypot      bool      `json:"is_honeypot"`
}

// TokenUpdate is a partial update of a TokenRecord.
// Nil fields are left untouched by stores.
type TokenUpdate struct {
	Name            *string
	MintAddress     *string
	FDVUSD          *float64
	ReserveUSD      *float64
	Transactions24h *int64
	Volume24h       *float64
	MintAuthority   *bool
	FreezeAuthority *bool
	Top10Pct        *float64
	TopHolderPct    *float64
	Top20Pct        *float64
	GTScore         *float64
	EntropyScore    *float64
	IsHoneypot      *bool
	LastUpdated     *time.Time // applied as max(stored, new)
}

// IsEmpty reports whether the update carries no fields.
func (u *TokenUpdate) IsEmpty() bool {
	return u == nil || (u.Name == nil && u.MintAddress == nil && u.FDVUSD == nil &&
		u.ReserveUSD == nil && u.Transactions24h == nil && u.Volume24h == nil &&
		u.MintAuthority == nil && u.FreezeAuthority == nil && u.Top10Pct == nil &&
		u.TopHolderPct == nil && u.Top20Pct == nil && u.GTScore == nil &&
		u.EntropyScore == nil && u.IsHoneypot == nil && u.LastUpdated == nil)
}

// Apply copies the non-nil fields of u onto r.
func (u *TokenUpdate) Apply(r *TokenRecord) {
	if u == nil || r == nil {
		return
	}
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.MintAddress != nil {
		r.MintAddress = *u.MintAddress
	}
	if u.FDVUSD != nil {
		r.FDVUSD = *u.FDVUSD
	}
	if u.ReserveUSD != nil {
		r.ReserveUSD = *u.ReserveUSD
	}
	if u.Transactions24h != nil {
		r.Transactions24h = *u.Transactions24h
	}
	if u.Volume24h != nil {
		r.Volume24h = *u.Volume24h
	}
	if u.MintAuthority != nil {
		r.MintAuthority = *u.MintAuthority
	}
	if u.FreezeAuthority != nil {
		r.FreezeAuthority = *u.FreezeAuthority
	}
	if u.Top10Pct != nil {
		r.Top10Pct = *u.Top10Pct
	}
	if u.TopHolderPct != nil {
		r.TopHolderPct = *u.TopHolderPct
	}
	if u.Top20Pct != nil {
		r.Top20Pct = *u.Top20Pct
	}
	if u.GTScore != nil {
		r.GTScore = *u.GTScore
	}
	if u.EntropyScore != nil {
		r.EntropyScore = *u.EntropyScore
	}
	if u.IsHoneypot != nil {
		r.IsHoneypot = *u.IsHoneypot
	}
	if u.LastUpdated != nil && u.LastUpdated.After(r.LastUpdated) {
		r.LastUpdated = *u.LastUpdated
	}
}
