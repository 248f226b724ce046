package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/storage/memory"
)

type fakeFeed struct {
	pools   []domain.PoolSummary
	poolErr error
	info    map[string]domain.PoolInfo
	mints   map[string]string
	calls   []string
}

func (f *fakeFeed) NewPools(context.Context) ([]domain.PoolSummary, error) {
	return f.pools, f.poolErr
}

func (f *fakeFeed) PoolInfo(_ context.Context, pool string) domain.PoolInfo {
	f.calls = append(f.calls, pool)
	return f.info[pool]
}

func (f *fakeFeed) MintAddress(_ context.Context, pool string) (string, error) {
	if m, ok := f.mints[pool]; ok {
		return m, nil
	}
	return "", errors.New("mint not found")
}

type fakeHolders struct{ calls int }

func (f *fakeHolders) Analyze(context.Context, string) domain.HolderDistribution {
	f.calls++
	return domain.HolderDistribution{Status: domain.StatusOK, TopHolderPct: 4.5, Top20Pct: 31, LPPct: 40}
}

type fakePatterns struct{}

func (fakePatterns) Detect(context.Context, string) domain.DistributionSignals {
	return domain.DistributionSignals{Status: domain.StatusOK, EntropyScore: 3.25}
}

func qualifying(addr string, volume float64) domain.PoolSummary {
	return domain.PoolSummary{
		Address:         addr,
		Name:            addr + " / SOL",
		CreatedAt:       time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		FDVUSD:          50000,
		ReserveUSD:      10000,
		Transactions24h: 100,
		Volume24h:       volume,
	}
}

func TestCriteria_Qualifies(t *testing.T) {
	c := DefaultCriteria()
	base := qualifying("P", 5000)
	assert.True(t, c.Qualifies(base))

	tests := []struct {
		name   string
		mutate func(p *domain.PoolSummary)
		want   bool
	}{
		{"fdv at lower bound", func(p *domain.PoolSummary) { p.FDVUSD = 5000; p.ReserveUSD = 1000 }, true},
		{"fdv below range", func(p *domain.PoolSummary) { p.FDVUSD = 4999 }, false},
		{"fdv at upper bound", func(p *domain.PoolSummary) { p.FDVUSD = 500000 }, true},
		{"fdv above range", func(p *domain.PoolSummary) { p.FDVUSD = 500001 }, false},
		{"reserve too low", func(p *domain.PoolSummary) { p.ReserveUSD = 999 }, false},
		{"too few transactions", func(p *domain.PoolSummary) { p.Transactions24h = 24 }, false},
		{"volume too low", func(p *domain.PoolSummary) { p.Volume24h = 999 }, false},
		{"fdv equals reserve", func(p *domain.PoolSummary) { p.FDVUSD = 10000 }, false},
		{"ratio below 1.2", func(p *domain.PoolSummary) { p.FDVUSD = 11999 }, false},
		{"ratio exactly 1.2", func(p *domain.PoolSummary) { p.FDVUSD = 12000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			assert.Equal(t, tt.want, c.Qualifies(p))
		})
	}
}

func TestKeepCriteria_Keeps(t *testing.T) {
	k := DefaultKeepCriteria()
	assert.True(t, k.Keeps(&domain.PoolMarket{FDVUSD: 3000, ReserveUSD: 500, Volume24h: 1000}))
	assert.True(t, k.Keeps(&domain.PoolMarket{FDVUSD: 100_000_000, ReserveUSD: 500, Volume24h: 1000}))
	assert.False(t, k.Keeps(&domain.PoolMarket{FDVUSD: 2999, ReserveUSD: 500, Volume24h: 1000}))
	assert.False(t, k.Keeps(&domain.PoolMarket{FDVUSD: 100_000_001, ReserveUSD: 500, Volume24h: 1000}))
	assert.False(t, k.Keeps(&domain.PoolMarket{FDVUSD: 5000, ReserveUSD: 499, Volume24h: 1000}))
	assert.False(t, k.Keeps(&domain.PoolMarket{FDVUSD: 5000, ReserveUSD: 500, Volume24h: 999}))
	assert.False(t, k.Keeps(nil))
}

func newTestPass(feed *fakeFeed, holders *fakeHolders, now time.Time) (*Pass, *memory.TokenStore, *memory.SignalSnapshotStore) {
	tokens := memory.NewTokenStore()
	history := memory.NewSignalSnapshotStore()
	pass := NewPass(Options{
		Feed:     feed,
		Holders:  holders,
		Patterns: fakePatterns{},
		Tokens:   tokens,
		History:  history,
		Now:      func() time.Time { return now },
	})
	return pass, tokens, history
}

func TestPass_InsertsQualifiedByVolume(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rejected := qualifying("Rejected", 5000)
	rejected.Transactions24h = 3

	feed := &fakeFeed{
		pools: []domain.PoolSummary{qualifying("Low", 2000), rejected, qualifying("High", 90000)},
		info: map[string]domain.PoolInfo{
			"High": {MintAuthority: true, Top10Pct: 22.5, GTScore: 70},
		},
		mints: map[string]string{"High": "MintHigh", "Low": "MintLow"},
	}
	holders := &fakeHolders{}
	pass, tokens, history := newTestPass(feed, holders, now)

	res, err := pass.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Fetched: 3, Qualified: 2, Inserted: 2}, res)
	assert.Equal(t, []string{"High", "Low"}, feed.calls, "processed by volume desc")
	assert.Equal(t, 2, holders.calls)

	all, err := tokens.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	var high *domain.TokenRecord
	for _, r := range all {
		if r.Address == "High" {
			high = r
		}
	}
	require.NotNil(t, high)
	assert.Equal(t, "MintHigh", high.MintAddress)
	assert.True(t, high.MintAuthority)
	assert.Equal(t, 22.5, high.Top10Pct)
	assert.Equal(t, 70.0, high.GTScore)
	assert.Equal(t, 4.5, high.TopHolderPct)
	assert.Equal(t, 31.0, high.Top20Pct)
	assert.Equal(t, 3.25, high.EntropyScore)
	assert.Equal(t, now, high.FirstSeen)
	assert.Equal(t, now, high.LastUpdated)
	assert.False(t, high.IsHoneypot)

	snaps, err := history.GetByPool(context.Background(), "High", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, domain.SnapshotSourceDiscovery, snaps[0].Source)
	assert.Equal(t, 40.0, snaps[0].LPPct)
}

func TestPass_SkipsTrackedAndNeverOverwrites(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		pools: []domain.PoolSummary{qualifying("Existing", 5000)},
		mints: map[string]string{"Existing": "Mint"},
	}
	holders := &fakeHolders{}
	pass, tokens, _ := newTestPass(feed, holders, now)

	_, err := tokens.InsertIfAbsent(context.Background(), &domain.TokenRecord{Address: "Existing", Name: "kept", FDVUSD: 1})
	require.NoError(t, err)

	res, err := pass.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Inserted)
	assert.Zero(t, holders.calls, "tracked pools are not re-analyzed")

	all, _ := tokens.ListAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].Name)
	assert.Equal(t, 1.0, all[0].FDVUSD)
}

func TestPass_UnresolvedMintStillInserted(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pool := qualifying("NoMint", 5000)
	pool.CreatedAt = time.Time{}
	feed := &fakeFeed{pools: []domain.PoolSummary{pool}}
	holders := &fakeHolders{}
	pass, tokens, history := newTestPass(feed, holders, now)

	res, err := pass.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Zero(t, holders.calls)

	all, _ := tokens.ListAll(context.Background())
	require.Len(t, all, 1)
	assert.Empty(t, all[0].MintAddress)
	assert.Zero(t, all[0].TopHolderPct)
	assert.Equal(t, now, all[0].CreatedAt, "missing creation time falls back to now")

	snaps, _ := history.GetByPool(context.Background(), "NoMint", 0)
	assert.Empty(t, snaps)
}

func TestPass_FeedFailure(t *testing.T) {
	feed := &fakeFeed{poolErr: errors.New("upstream down")}
	pass, _, _ := newTestPass(feed, &fakeHolders{}, time.Now())

	_, err := pass.Run(context.Background())
	assert.ErrorContains(t, err, "upstream down")
}
