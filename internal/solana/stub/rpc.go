// Package stub provides an in-memory TokenRPC for tests.
package stub

import (
	"context"
	"errors"
	"sync"

	"solana-token-radar/internal/solana"
)

// ErrNotFound is returned for mints with no configured supply or accounts.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.TokenRPC from fixed maps. A non-nil Err is
// returned by every call.
type RPCClient struct {
	mu sync.Mutex

	Supplies map[string]*solana.TokenSupply
	Largest  map[string][]solana.TokenAccountBalance
	Owned    map[string][]solana.TokenAccount // keyed by owner + "/" + mint
	Accounts map[string]*solana.AccountInfo
	Err      error

	calls map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Supplies: make(map[string]*solana.TokenSupply),
		Largest:  make(map[string][]solana.TokenAccountBalance),
		Owned:    make(map[string][]solana.TokenAccount),
		Accounts: make(map[string]*solana.AccountInfo),
		calls:    make(map[string]int),
	}
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *RPCClient) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return c.Err
}

// GetTokenSupply returns the configured supply of mint.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenSupply, error) {
	if err := c.record("getTokenSupply"); err != nil {
		return nil, err
	}
	s, ok := c.Supplies[mint]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

// GetTokenLargestAccounts returns the configured largest accounts of mint.
func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	if err := c.record("getTokenLargestAccounts"); err != nil {
		return nil, err
	}
	accounts, ok := c.Largest[mint]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]solana.TokenAccountBalance(nil), accounts...), nil
}

// GetTokenAccountsByOwner returns the configured accounts of owner for mint,
// or none.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner, mint string) ([]solana.TokenAccount, error) {
	if err := c.record("getTokenAccountsByOwner"); err != nil {
		return nil, err
	}
	return append([]solana.TokenAccount(nil), c.Owned[owner+"/"+mint]...), nil
}

// GetAccountInfo returns the configured account, or nil if absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.record("getAccountInfo"); err != nil {
		return nil, err
	}
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	copied := *info
	return &copied, nil
}

var _ solana.TokenRPC = (*RPCClient)(nil)
