package lp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/jupiter"
	"solana-token-radar/internal/solana"
)

const testMint = "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"

// Real base58 pool keys so the derived-account fallback can run.
const (
	poolRaydium = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
	poolOrca    = "HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"
)

type quoteKey struct{ in, out string }

type fakeQuoter struct {
	mu     sync.Mutex
	quotes map[quoteKey]*jupiter.Quote
	errs   map[quoteKey]error
	calls  []jupiter.QuoteRequest
}

func (f *fakeQuoter) Quote(_ context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	k := quoteKey{req.InputMint, req.OutputMint}
	if err := f.errs[k]; err != nil {
		return nil, err
	}
	if q, ok := f.quotes[k]; ok {
		return q, nil
	}
	return &jupiter.Quote{}, nil
}

type fakeLister struct {
	accounts map[string][]solana.TokenAccount
	errs     map[string]error
}

func (f *fakeLister) GetTokenAccountsByOwner(_ context.Context, owner, _ string) ([]solana.TokenAccount, error) {
	if err := f.errs[owner]; err != nil {
		return nil, err
	}
	return f.accounts[owner], nil
}

func hop(addr, label string) jupiter.Hop {
	return jupiter.Hop{AMMKey: addr, Label: label}
}

func newFakes() (*fakeQuoter, *fakeLister) {
	q := &fakeQuoter{
		quotes: map[quoteKey]*jupiter.Quote{},
		errs:   map[quoteKey]error{},
	}
	l := &fakeLister{
		accounts: map[string][]solana.TokenAccount{},
		errs:     map[string]error{},
	}
	return q, l
}

func addresses(set *domain.LPAddressSet) []string {
	out := make([]string, 0, len(set.Addresses))
	for _, a := range set.Addresses {
		out = append(out, a.Address)
	}
	return out
}

func TestResolver_UnionsBothDirections(t *testing.T) {
	q, l := newFakes()
	q.quotes[quoteKey{domain.SOLMint, testMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{hop(poolRaydium, "Raydium")}}
	q.quotes[quoteKey{testMint, domain.SOLMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{
		hop(poolRaydium, "Raydium"),
		hop(poolOrca, "Orca"),
	}}
	l.accounts[poolRaydium] = []solana.TokenAccount{{Pubkey: "VaultA"}}

	r := NewResolver(q, l, DefaultConfig(), nil)
	set := r.Resolve(context.Background(), testMint, domain.SOLMint)

	assert.Equal(t, domain.StatusOK, set.Status)
	assert.True(t, set.Found())
	assert.Equal(t, []string{poolRaydium, poolOrca, "VaultA"}, addresses(set))
	assert.Equal(t, domain.LPMethodRouteHop, set.Addresses[0].Method)
	assert.Equal(t, "LP Token Account (Raydium)", set.Addresses[2].Label)
	assert.Equal(t, domain.LPMethodTokenAccount, set.Addresses[2].Method)

	for _, c := range q.calls {
		assert.Equal(t, uint64(DefaultProbeAmount), c.Amount)
		assert.Equal(t, DefaultSlippageBps, c.SlippageBps)
	}
}

func TestResolver_CaseInsensitiveDedupeKeepsFirstSpelling(t *testing.T) {
	q, l := newFakes()
	q.quotes[quoteKey{domain.SOLMint, testMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{hop("PoolABC", "First")}}
	q.quotes[quoteKey{testMint, domain.SOLMint}] = &jupiter.Quote{
		MarketInfos: []jupiter.Hop{{LPAddress: "poolabc", Label: "Second"}},
	}

	r := NewResolver(q, l, DefaultConfig(), nil)
	set := r.Resolve(context.Background(), testMint, domain.SOLMint)

	require.Len(t, set.Addresses, 1)
	assert.Equal(t, "PoolABC", set.Addresses[0].Address)
	assert.Equal(t, "First", set.Addresses[0].Label)
}

func TestResolver_Idempotent(t *testing.T) {
	q, l := newFakes()
	q.quotes[quoteKey{domain.SOLMint, testMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{
		hop(poolOrca, "Orca"), hop(poolRaydium, "Raydium"),
	}}
	l.accounts[poolOrca] = []solana.TokenAccount{{Pubkey: "V1"}, {Pubkey: "V2"}}

	r := NewResolver(q, l, DefaultConfig(), nil)
	first := r.ResolveAll(context.Background(), testMint)
	second := r.ResolveAll(context.Background(), testMint)
	assert.Equal(t, first, second)
}

func TestResolver_BranchFailureIsIsolated(t *testing.T) {
	q, l := newFakes()
	q.errs[quoteKey{domain.SOLMint, testMint}] = &jupiter.QuoteError{Message: "Could not find any route"}
	q.quotes[quoteKey{testMint, domain.SOLMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{hop(poolOrca, "Orca")}}

	r := NewResolver(q, l, DefaultConfig(), nil)
	set := r.Resolve(context.Background(), testMint, domain.SOLMint)

	assert.Equal(t, domain.StatusOK, set.Status)
	assert.Equal(t, []string{poolOrca}, addresses(set))
	require.Len(t, set.Errors, 1)
	assert.Contains(t, set.Errors[0], "SOL forward")
}

func TestResolver_AllBranchesFailed(t *testing.T) {
	q, l := newFakes()
	boom := errors.New("upstream down")
	q.errs[quoteKey{domain.USDCMint, testMint}] = boom
	q.errs[quoteKey{testMint, domain.USDCMint}] = boom

	r := NewResolver(q, l, DefaultConfig(), nil)
	sets := r.ResolveAll(context.Background(), testMint)

	require.Len(t, sets, 2)
	assert.Equal(t, domain.SOLMint, sets[0].CounterAsset)
	assert.Equal(t, domain.StatusOK, sets[0].Status, "empty but successful")
	assert.False(t, sets[0].Found())

	assert.Equal(t, domain.USDCMint, sets[1].CounterAsset)
	assert.Equal(t, domain.StatusFailed, sets[1].Status)
	assert.False(t, sets[1].Found())
	assert.Len(t, sets[1].Errors, 2)
}

func TestResolver_DerivedAccountFallback(t *testing.T) {
	q, l := newFakes()
	q.quotes[quoteKey{domain.SOLMint, testMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{hop(poolRaydium, "Raydium")}}
	l.errs[poolRaydium] = errors.New("rpc unavailable")

	r := NewResolver(q, l, DefaultConfig(), nil)
	set := r.Resolve(context.Background(), testMint, domain.SOLMint)

	wantClassic, err := solana.FindAssociatedTokenAddress(poolRaydium, testMint, solana.TokenProgramID)
	require.NoError(t, err)
	want2022, err := solana.FindAssociatedTokenAddress(poolRaydium, testMint, solana.Token2022ProgramID)
	require.NoError(t, err)

	assert.Equal(t, []string{poolRaydium, wantClassic, want2022}, addresses(set))
	assert.Equal(t, domain.LPMethodDerivedATA, set.Addresses[1].Method)
	assert.Equal(t, domain.LPMethodDerivedATA, set.Addresses[2].Method)
}

func TestResolver_FixedMergeOrderUnderConcurrency(t *testing.T) {
	q, l := newFakes()
	q.quotes[quoteKey{domain.SOLMint, testMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{hop("A", "a")}}
	q.quotes[quoteKey{testMint, domain.SOLMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{hop("B", "b")}}
	q.quotes[quoteKey{domain.USDCMint, testMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{hop("C", "c")}}
	q.quotes[quoteKey{testMint, domain.USDCMint}] = &jupiter.Quote{RoutePlan: []jupiter.Hop{hop("D", "d")}}

	r := NewResolver(q, l, Config{Concurrency: 4}, nil)
	for i := 0; i < 20; i++ {
		sets := r.ResolveAll(context.Background(), testMint)
		assert.Equal(t, []string{"A", "B"}, addresses(sets[0]))
		assert.Equal(t, []string{"C", "D"}, addresses(sets[1]))
	}
}
