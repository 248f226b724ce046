package solana

import "context"

// TokenRPC defines the Solana JSON-RPC methods used by the analytics pipeline.
type TokenRPC interface {
	// GetTokenSupply returns the raw total supply and decimals of a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)

	// GetTokenLargestAccounts returns the largest token accounts of a mint,
	// sorted by raw amount descending as reported by the node.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)

	// GetTokenAccountsByOwner returns token accounts held by owner for mint.
	GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if account not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}
