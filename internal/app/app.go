// Package app wires configuration into stores, upstream clients and the
// radar service. Both binaries build their components through it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-token-radar/internal/config"
	"solana-token-radar/internal/discovery"
	"solana-token-radar/internal/distribution"
	"solana-token-radar/internal/fetch"
	"solana-token-radar/internal/gecko"
	"solana-token-radar/internal/holders"
	"solana-token-radar/internal/honeypot"
	"solana-token-radar/internal/jupiter"
	"solana-token-radar/internal/lp"
	"solana-token-radar/internal/radar"
	"solana-token-radar/internal/refresh"
	"solana-token-radar/internal/rugcheck"
	"solana-token-radar/internal/solana"
	"solana-token-radar/internal/storage"
	chstore "solana-token-radar/internal/storage/clickhouse"
	"solana-token-radar/internal/storage/memory"
	"solana-token-radar/internal/storage/migrations"
	pgstore "solana-token-radar/internal/storage/postgres"
)

// Stores holds the storage implementations.
type Stores struct {
	Tokens  storage.TokenStore
	History storage.SignalSnapshotStore
}

// NewStores opens the configured stores and applies migrations. The returned
// cleanup closes every connection that was opened.
func NewStores(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Stores, func(), error) {
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		return &Stores{
			Tokens:  memory.NewTokenStore(),
			History: memory.NewSignalSnapshotStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Info("postgres schema ready", zap.Strings("applied", applied))
	stores := &Stores{Tokens: pgstore.NewTokenStore(pool)}
	cleanup := pool.Close

	if cfg.ClickhouseDSN == "" {
		logger.Info("clickhouse not configured, signal history kept in memory")
		stores.History = memory.NewSignalSnapshotStore()
		return stores, cleanup, nil
	}

	conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	logger.Info("clickhouse schema ready", zap.Strings("applied", applied))
	stores.History = chstore.NewSignalSnapshotStore(conn)
	cleanup = func() {
		_ = conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// Clients holds the upstream clients. Each owns the pacer for its host.
type Clients struct {
	RPC      *solana.HTTPClient
	Gecko    *gecko.Client
	Jupiter  *jupiter.Client
	Rugcheck *rugcheck.Client
}

// NewClients builds upstream clients sharing one retry policy.
func NewClients(cfg config.UpstreamConfig, logger *zap.Logger) *Clients {
	policy := cfg.RetryPolicy()
	timeout := fetch.WithTimeout(cfg.Timeout)
	return &Clients{
		RPC: solana.NewHTTPClient(cfg.RPCEndpoint,
			solana.WithTimeout(cfg.Timeout),
			solana.WithRetryPolicy(policy),
			solana.WithPacer(fetch.NewPacer(cfg.RPCInterval)),
			solana.WithLogger(logger),
		),
		Gecko: gecko.NewClient(
			gecko.WithBaseURL(cfg.GeckoBaseURL),
			gecko.WithInterval(cfg.GeckoInterval),
			gecko.WithPoolInfoTTL(cfg.PoolInfoTTL),
			gecko.WithRetryPolicy(policy),
			gecko.WithFetchOptions(timeout),
			gecko.WithLogger(logger),
		),
		Jupiter: jupiter.NewClient(
			jupiter.WithBaseURL(cfg.JupiterBaseURL),
			jupiter.WithInterval(cfg.JupiterInterval),
			jupiter.WithRetryPolicy(policy),
			jupiter.WithFetchOptions(timeout),
			jupiter.WithLogger(logger),
		),
		Rugcheck: rugcheck.NewClient(
			rugcheck.WithBaseURL(cfg.RugcheckBaseURL),
			rugcheck.WithInterval(cfg.RugcheckInterval),
			rugcheck.WithRetryPolicy(policy),
			rugcheck.WithFetchOptions(timeout),
			rugcheck.WithLogger(logger),
		),
	}
}

// Options for NewService.
type Options struct {
	Config  *config.Config
	Stores  *Stores
	Clients *Clients

	// Context handed to scheduled passes.
	Context context.Context
	Logger  *zap.Logger
}

// NewService assembles analyzers and passes into a radar service.
func NewService(opts Options) *radar.Service {
	cfg := opts.Config
	c := opts.Clients
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver := lp.NewResolver(c.Jupiter, c.RPC, lp.Config{
		ProbeAmount: cfg.Analysis.LPProbeAmount,
		SlippageBps: cfg.Analysis.LPSlippageBps,
		Concurrency: cfg.Analysis.LPConcurrency,
	}, logger)
	holderAnalyzer := holders.NewAnalyzer(c.RPC, resolver, holders.Config{
		TopHolderCount: cfg.Analysis.TopHolderCount,
		DumpThreshold:  cfg.Analysis.DumpThreshold,
	}, logger)
	detector := distribution.NewDetector(c.RPC, cfg.Analysis.TopHolderCount, logger)
	probe := honeypot.NewProbe(c.Jupiter, honeypot.Config{
		Notional:    cfg.Analysis.HoneypotNotional,
		SlippageBps: cfg.Analysis.HoneypotSlippageBps,
	}, logger)

	delay := cfg.Scheduler.Delay
	if delay == 0 {
		delay = -1 // configured zero means no delay
	}

	return radar.New(radar.Options{
		Tokens:  opts.Stores.Tokens,
		History: opts.Stores.History,
		Discovery: discovery.NewPass(discovery.Options{
			Feed:     c.Gecko,
			Holders:  holderAnalyzer,
			Patterns: detector,
			Tokens:   opts.Stores.Tokens,
			History:  opts.Stores.History,
			Criteria: cfg.Criteria.Discovery,
			Logger:   logger,
		}),
		Refresh: refresh.NewPass(refresh.Options{
			Market:     c.Gecko,
			Patterns:   detector,
			Holders:    holderAnalyzer,
			Honeypot:   probe,
			Tokens:     opts.Stores.Tokens,
			History:    opts.Stores.History,
			Keep:       cfg.Criteria.Keep,
			StaleAfter: cfg.Scheduler.StaleAfter,
			Delay:      delay,
			Logger:     logger,
		}),
		Holders:           holderAnalyzer,
		Patterns:          detector,
		Honeypot:          probe,
		LP:                resolver,
		Rugcheck:          c.Rugcheck,
		Accounts:          c.RPC,
		DiscoveryInterval: cfg.Scheduler.DiscoveryInterval,
		RefreshInterval:   cfg.Scheduler.RefreshInterval,
		Context:           opts.Context,
		Logger:            logger,
	})
}
