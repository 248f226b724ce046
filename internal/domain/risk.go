package domain

import "encoding/json"

// Risk is one entry of a third-party risk report.
type Risk struct {
	Name        string  `json:"name"`
	Value       string  `json:"value,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Level       string  `json:"level,omitempty"`
}

// InsiderNetwork is a cluster of wallets linked to the token creator.
type InsiderNetwork struct {
	Type            string  `json:"type"`
	TokenAmount     float64 `json:"token_amount"`     // normalized by decimals
	TokenPercentage float64 `json:"token_percentage"` // % of raw supply
	DistributedTo   int64   `json:"distributed_to"`
}

// RiskReport is the filtered risk report for a mint.
type RiskReport struct {
	Risks           []Risk            `json:"risks"`
	CreatorTokens   []json.RawMessage `json:"creator_tokens"` // passed through untouched
	InsiderNetworks []InsiderNetwork  `json:"insider_networks"`
}

// MintInfo is the decoded on-chain mint account.
type MintInfo struct {
	Mint            string   `json:"mint"`
	Program         string   `json:"program"`
	MintAuthority   string   `json:"mint_authority,omitempty"`
	FreezeAuthority string   `json:"freeze_authority,omitempty"`
	Supply          uint64   `json:"supply"`
	Decimals        uint8    `json:"decimals"`
	IsInitialized   bool     `json:"is_initialized"`
	RiskyExtensions []string `json:"risky_extensions"`
}
