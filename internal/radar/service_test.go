package radar

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-radar/internal/discovery"
	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/refresh"
	"solana-token-radar/internal/solana"
	"solana-token-radar/internal/solana/stub"
	"solana-token-radar/internal/storage/memory"
)

const testMint = domain.USDCMint

type countingDiscovery struct{ runs atomic.Int32 }

func (d *countingDiscovery) Run(context.Context) (discovery.Result, error) {
	d.runs.Add(1)
	return discovery.Result{Fetched: 1}, nil
}

type countingRefresh struct{ runs atomic.Int32 }

func (r *countingRefresh) Run(context.Context) (refresh.Result, error) {
	r.runs.Add(1)
	return refresh.Result{Checked: 1}, nil
}

type stubAnalytics struct{}

func (stubAnalytics) Analyze(context.Context, string) domain.HolderDistribution {
	return domain.HolderDistribution{Status: domain.StatusOK, TopHolderPct: 9.5}
}

func (stubAnalytics) Detect(context.Context, string) domain.DistributionSignals {
	return domain.DistributionSignals{Status: domain.StatusOK, EntropyScore: 4.2}
}

func (stubAnalytics) Check(context.Context, string) domain.HoneypotResult {
	return domain.HoneypotResult{Status: domain.StatusOK, RecoveryPct: 97}
}

func (stubAnalytics) ResolveAll(_ context.Context, mint string) []*domain.LPAddressSet {
	return []*domain.LPAddressSet{{Mint: mint, CounterAsset: domain.SOLMint, Status: domain.StatusOK}}
}

type stubRugcheck struct{ err error }

func (s stubRugcheck) Report(context.Context, string) (*domain.RiskReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.RiskReport{Risks: []domain.Risk{{Name: "Mutable metadata"}}}, nil
}

func accountsWith(info *solana.AccountInfo) *stub.RPCClient {
	rpc := stub.NewRPCClient()
	if info != nil {
		rpc.Accounts[testMint] = info
	}
	return rpc
}

func newTestService(opts Options) *Service {
	if opts.Tokens == nil {
		opts.Tokens = memory.NewTokenStore()
	}
	if opts.Discovery == nil {
		opts.Discovery = &countingDiscovery{}
	}
	if opts.Refresh == nil {
		opts.Refresh = &countingRefresh{}
	}
	opts.Holders = stubAnalytics{}
	opts.Patterns = stubAnalytics{}
	opts.Honeypot = stubAnalytics{}
	opts.LP = stubAnalytics{}
	return New(opts)
}

func mintData(t *testing.T, supply uint64, decimals uint8, withAuthority bool) string {
	t.Helper()
	raw := make([]byte, solana.MintLayoutSize)
	if withAuthority {
		binary.LittleEndian.PutUint32(raw[0:4], 1)
		raw[4] = 7
	}
	binary.LittleEndian.PutUint64(raw[36:44], supply)
	raw[44] = decimals
	raw[45] = 1
	return base64.StdEncoding.EncodeToString(raw)
}

func TestService_Analytics(t *testing.T) {
	svc := newTestService(Options{})
	ctx := context.Background()

	dist, err := svc.AnalyzeHolderDistribution(ctx, testMint)
	require.NoError(t, err)
	assert.Equal(t, 9.5, dist.TopHolderPct)

	sig, err := svc.DetectDistributionPatterns(ctx, testMint)
	require.NoError(t, err)
	assert.Equal(t, 4.2, sig.EntropyScore)

	hp, err := svc.CheckHoneypot(ctx, testMint)
	require.NoError(t, err)
	assert.Equal(t, 97.0, hp.RecoveryPct)

	sets, err := svc.ResolveLPAddresses(ctx, testMint)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, testMint, sets[0].Mint)
}

func TestService_RejectsMalformedAddress(t *testing.T) {
	svc := newTestService(Options{})
	ctx := context.Background()

	_, err := svc.AnalyzeHolderDistribution(ctx, "not-base58!")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = svc.CheckHoneypot(ctx, "abc")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = svc.SignalHistory(ctx, "", 10)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestService_TrackedTokensAndClear(t *testing.T) {
	tokens := memory.NewTokenStore()
	svc := newTestService(Options{Tokens: tokens})
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, addr := range []string{"PoolA", "PoolB"} {
		_, err := tokens.InsertIfAbsent(ctx, &domain.TokenRecord{Address: addr, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	records, err := svc.TrackedTokens(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "PoolB", records[0].Address, "newest created first")

	assert.Equal(t, StoreStatus{Status: "connected", TokenCount: 2}, svc.Status(ctx))

	require.NoError(t, svc.ClearAll(ctx))
	records, err = svc.TrackedTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestService_OnDemandPasses(t *testing.T) {
	d := &countingDiscovery{}
	r := &countingRefresh{}
	svc := newTestService(Options{Discovery: d, Refresh: r})

	dres, err := svc.RunDiscoveryPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dres.Fetched)

	rres, err := svc.RunRefreshPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rres.Checked)

	assert.Equal(t, int32(1), d.runs.Load())
	assert.Equal(t, int32(1), r.runs.Load())
}

func TestService_StartStop(t *testing.T) {
	d := &countingDiscovery{}
	r := &countingRefresh{}
	svc := newTestService(Options{
		Discovery:         d,
		Refresh:           r,
		DiscoveryInterval: time.Hour,
		RefreshInterval:   time.Hour,
	})
	assert.False(t, svc.Running())

	assert.True(t, svc.Start())
	assert.False(t, svc.Start())
	assert.True(t, svc.Running())

	assert.Eventually(t, func() bool {
		return d.runs.Load() == 1 && r.runs.Load() == 1
	}, time.Second, 5*time.Millisecond, "initial passes run on start")

	assert.True(t, svc.Stop())
	assert.False(t, svc.Stop())
	assert.False(t, svc.Running())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx))
}

func TestService_RugcheckReport(t *testing.T) {
	svc := newTestService(Options{Rugcheck: stubRugcheck{}})
	report, err := svc.RugcheckReport(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, report.Risks, 1)

	svc = newTestService(Options{Rugcheck: stubRugcheck{err: errors.New("status 503")}})
	_, err = svc.RugcheckReport(context.Background(), testMint)
	assert.ErrorContains(t, err, "status 503")

	svc = newTestService(Options{})
	_, err = svc.RugcheckReport(context.Background(), testMint)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestService_MintInfo(t *testing.T) {
	info := &solana.AccountInfo{Owner: solana.TokenProgramID, Data: mintData(t, 1_000_000, 6, true)}
	svc := newTestService(Options{Accounts: accountsWith(info)})

	got, err := svc.MintInfo(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, testMint, got.Mint)
	assert.Equal(t, solana.TokenProgramID, got.Program)
	assert.Equal(t, uint64(1_000_000), got.Supply)
	assert.Equal(t, uint8(6), got.Decimals)
	assert.True(t, got.IsInitialized)
	assert.NotEmpty(t, got.MintAuthority)
	assert.Empty(t, got.FreezeAuthority)
	assert.Empty(t, got.RiskyExtensions)
	assert.NotNil(t, got.RiskyExtensions)
}

func TestService_MintInfoErrors(t *testing.T) {
	svc := newTestService(Options{Accounts: accountsWith(nil)})
	_, err := svc.MintInfo(context.Background(), testMint)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	down := accountsWith(nil)
	down.Err = errors.New("rpc down")
	svc = newTestService(Options{Accounts: down})
	_, err = svc.MintInfo(context.Background(), testMint)
	assert.ErrorContains(t, err, "rpc down")
	assert.Equal(t, 1, down.Calls("getAccountInfo"))

	system := &solana.AccountInfo{Owner: "11111111111111111111111111111111", Data: mintData(t, 1, 0, false)}
	svc = newTestService(Options{Accounts: accountsWith(system)})
	_, err = svc.MintInfo(context.Background(), testMint)
	assert.ErrorIs(t, err, ErrNotMint)

	short := &solana.AccountInfo{Owner: solana.TokenProgramID, Data: base64.StdEncoding.EncodeToString([]byte{1, 2, 3})}
	svc = newTestService(Options{Accounts: accountsWith(short)})
	_, err = svc.MintInfo(context.Background(), testMint)
	assert.ErrorContains(t, err, "parse mint")
}

func TestService_SignalHistory(t *testing.T) {
	history := memory.NewSignalSnapshotStore()
	svc := newTestService(Options{History: history})
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, history.Insert(ctx, &domain.SignalSnapshot{PoolAddress: testMint, TimestampMs: i}))
	}

	snaps, err := svc.SignalHistory(ctx, testMint, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(3), snaps[0].TimestampMs)

	svc = newTestService(Options{})
	snaps, err = svc.SignalHistory(ctx, testMint, 0)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
